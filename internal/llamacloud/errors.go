package llamacloud

import (
	"errors"
	"fmt"
)

// Service names the remote collaborator an error came from.
type Service string

// Service constants identify the LlamaCloud APIs used by the client.
const (
	ServiceParse   Service = "parse"
	ServiceExtract Service = "extract"
	ServiceFiles   Service = "files"
)

// ResponseError is the cause attached to an operation error when the remote
// service answered with a non-2xx status.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, or 0 when the failure
// happened before a response was received.
func StatusCode(err error) int {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// SubmitError represents a failed job submission (parse or extraction).
type SubmitError struct {
	Service Service
	Message string
	Cause   error
}

func (e *SubmitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s submit failed: %s: %v", e.Service, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s submit failed: %s", e.Service, e.Message)
}

func (e *SubmitError) Unwrap() error {
	return e.Cause
}

// StatusError represents a transport or non-2xx failure while reading job status.
type StatusError struct {
	Service Service
	JobID   string
	Message string
	Cause   error
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s status check failed for job %s: %s: %v", e.Service, e.JobID, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s status check failed for job %s: %s", e.Service, e.JobID, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// FetchError represents a failure fetching a completed job's result,
// or a result download referenced by URL.
type FetchError struct {
	Service Service
	JobID   string
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	target := "job " + e.JobID
	if e.URL != "" {
		target = e.URL
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s result fetch failed for %s: %s: %v", e.Service, target, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s result fetch failed for %s: %s", e.Service, target, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// UploadError represents a failed upload to the Files API.
type UploadError struct {
	Service  Service
	Filename string
	Message  string
	Cause    error
}

func (e *UploadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s upload failed for %s: %s: %v", e.Service, e.Filename, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s upload failed for %s: %s", e.Service, e.Filename, e.Message)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// AgentError represents a failure resolving the default extraction agent.
// It is never retryable: without an agent no extraction can run.
type AgentError struct {
	Message string
	Cause   error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction agent lookup failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction agent lookup failed: %s", e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Cause
}
