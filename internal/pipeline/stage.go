package pipeline

// Stage is a step of a run. Stages advance strictly in order; Failed is reachable from
// any stage before Completed.
type Stage int

// Stages, in order.
const (
	StageReceived Stage = iota
	StageOriginalUploaded
	StageParseSubmitted
	StageParsePolling
	StageParseDone
	StageTextUploaded
	StageAgentResolved
	StageExtractSubmitted
	StageExtractPolling
	StageExtractDone
	StageNormalized
	StageCompleted
	StageFailed
)

var stageNames = map[Stage]string{
	StageReceived:         "received",
	StageOriginalUploaded: "original_uploaded",
	StageParseSubmitted:   "parse_submitted",
	StageParsePolling:     "parse_polling",
	StageParseDone:        "parse_done",
	StageTextUploaded:     "text_uploaded",
	StageAgentResolved:    "agent_resolved",
	StageExtractSubmitted: "extract_submitted",
	StageExtractPolling:   "extract_polling",
	StageExtractDone:      "extract_done",
	StageNormalized:       "normalized",
	StageCompleted:        "completed",
	StageFailed:           "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// terminal reports whether no further transition is possible.
func (s Stage) terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransition reports whether a run may move from s to next.
func (s Stage) CanTransition(next Stage) bool {
	if s.terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	return next == s+1
}
