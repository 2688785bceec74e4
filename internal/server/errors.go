package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonathan/docextract/internal/intake"
	"github.com/jonathan/docextract/internal/llamacloud"
	"github.com/jonathan/docextract/internal/pipeline"
	"github.com/jonathan/docextract/internal/polling"
	"github.com/jonathan/docextract/internal/schemas"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		configErr     *pipeline.ConfigurationError
		schemaLoadErr *schemas.SchemaLoadError
		rejected      *intake.RejectedError
		storageErr    *intake.StorageError
		submitErr     *llamacloud.SubmitError
		statusErr     *llamacloud.StatusError
		fetchErr      *llamacloud.FetchError
		uploadErr     *llamacloud.UploadError
		agentErr      *llamacloud.AgentError
		jobFailed     *polling.JobFailedError
		noData        *pipeline.NoStructuredDataError
		validationErr *schemas.ValidationError
		timeoutErr    *polling.TimeoutError
	)

	switch {
	case errors.As(err, &configErr), errors.As(err, &schemaLoadErr), errors.As(err, &storageErr):
		return http.StatusInternalServerError
	case errors.As(err, &rejected):
		if rejected.Reason == intake.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.As(err, &submitErr), errors.As(err, &statusErr), errors.As(err, &fetchErr),
		errors.As(err, &uploadErr), errors.As(err, &agentErr):
		return http.StatusBadGateway
	case errors.As(err, &jobFailed), errors.As(err, &noData), errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
