package intake

import "fmt"

// Reason classifies a rejected upload.
type Reason string

// Rejection reasons.
const (
	ReasonMissingFile     Reason = "missing_file"
	ReasonEmptyFile       Reason = "empty_file"
	ReasonTooLarge        Reason = "too_large"
	ReasonUnsupportedType Reason = "unsupported_type"
)

// RejectedError reports an upload that failed validation. Nothing was stored.
type RejectedError struct {
	Reason   Reason
	Filename string
	Message  string
}

func (e *RejectedError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("upload %s rejected: %s", e.Filename, e.Message)
	}
	return fmt.Sprintf("upload rejected: %s", e.Message)
}

// StorageError reports a failure writing or removing a transient file.
type StorageError struct {
	Path    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient storage %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("transient storage %s: %s", e.Path, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}
