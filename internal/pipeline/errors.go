package pipeline

import (
	"fmt"
)

// ConfigurationError means the pipeline refused to start. No remote call was made.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NoStructuredDataError means an extraction finished but no structured data could be
// found in its result, nor behind its download_url.
type NoStructuredDataError struct {
	JobID string
}

func (e *NoStructuredDataError) Error() string {
	return fmt.Sprintf("extraction job %s returned no structured data", e.JobID)
}

// StageError attributes a run failure to the stage that could not be reached.
type StageError struct {
	Stage Stage
	RunID string
	JobID string
	Cause error
}

func (e *StageError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("run %s failed at %s (job %s): %v", e.RunID, e.Stage, e.JobID, e.Cause)
	}
	return fmt.Sprintf("run %s failed at %s: %v", e.RunID, e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
