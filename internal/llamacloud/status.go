package llamacloud

import (
	"encoding/json"
	"strings"
)

// JobStatus is the status string reported by a LlamaCloud job. The set of values is
// owned by the remote service and may grow; see Phase for how values are interpreted.
type JobStatus string

// Known job statuses.
const (
	StatusPending        JobStatus = "PENDING"
	StatusSuccess        JobStatus = "SUCCESS"
	StatusPartialSuccess JobStatus = "PARTIAL_SUCCESS"
	StatusErrored        JobStatus = "ERROR"
	StatusCancelled      JobStatus = "CANCELLED"
)

// Phase is the local interpretation of a JobStatus.
type Phase int

// Phase values.
const (
	PhasePending Phase = iota
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Phase maps the status onto a phase. Any value not listed here, including ones the
// service introduces later, is still pending.
func (s JobStatus) Phase() Phase {
	switch JobStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case StatusSuccess, StatusPartialSuccess:
		return PhaseSucceeded
	case StatusErrored, StatusCancelled, "CANCELED":
		return PhaseFailed
	default:
		return PhasePending
	}
}

// Job is a status snapshot of a remote job.
type Job struct {
	ID     string          `json:"id"`
	Status JobStatus       `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

// ErrorDetail returns the failure detail carried by the status payload, if any.
func (j Job) ErrorDetail() string {
	return errorDetail(j.Raw)
}

// decodeJob decodes a status payload, keeping the raw bytes for later inspection.
func decodeJob(raw []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, err
	}
	job.Raw = append(json.RawMessage(nil), raw...)
	return job, nil
}

// errorDetail looks for the fields LlamaCloud uses to explain a failed job.
func errorDetail(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}

	for _, key := range []string{"error_message", "error", "detail", "message"} {
		value, ok := fields[key]
		if !ok || isNull(value) {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		return string(value)
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
