package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/jonathan/docextract/internal/intake"
	"github.com/jonathan/docextract/internal/pipeline"
	"github.com/jonathan/docextract/internal/schemas"
)

// ProcessResponse is the body of every /api/process response.
type ProcessResponse struct {
	OK            bool                 `json:"ok"`
	ExtractedData json.RawMessage      `json:"extractedData,omitempty"`
	RunID         string               `json:"runId,omitempty"`
	Shape         string               `json:"shape,omitempty"`
	Warnings      []schemas.FieldError `json:"warnings,omitempty"`
	Error         string               `json:"error,omitempty"`
	Stage         string               `json:"stage,omitempty"`
}

// HealthResponse is the body of /api/health.
type HealthResponse struct {
	OK         bool   `json:"ok"`
	SchemaPath string `json:"schemaPath,omitempty"`
	Loaded     *bool  `json:"loaded,omitempty"`
}

// handleHealth reports liveness; with ?schema=1 it also reports the extraction schema.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{OK: true}
	if r.URL.Query().Get("schema") != "" {
		loaded := s.schema != nil
		resp.SchemaPath = s.schemaPath
		resp.Loaded = &loaded
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleProcess accepts a multipart upload in field "file", runs it and returns the
// extracted data.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	doc, err := s.acceptUpload(w, r)
	if err != nil {
		s.processError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	result, err := s.processor.ProcessDocumentWithProgress(ctx, doc, s.schema, nil)
	if err != nil {
		s.processError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, successResponse(result))
}

// handleProcessStream is handleProcess reporting stage transitions as server-sent events
// before the final result.
func (s *Server) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	doc, err := s.acceptUpload(w, r)
	if err != nil {
		s.processError(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		_ = s.intake.Remove(doc.Path)
		s.jsonResponse(w, http.StatusInternalServerError, ProcessResponse{OK: false, Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	result, err := s.processor.ProcessDocumentWithProgress(ctx, doc, s.schema, func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent("stage", event); err != nil {
			s.logger.Warn("http.sse_write_failed", "error", err)
		}
	})
	if err != nil {
		s.logger.Error("http.process_failed", "error", err, "status", HTTPStatus(err))
		sse.WriteError(errorResponse(err))
		return
	}

	sse.WriteComplete(successResponse(result))
}

// acceptUpload stores the "file" part of a multipart request. The schema is checked
// first so nothing is stored when the pipeline cannot run.
func (s *Server) acceptUpload(w http.ResponseWriter, r *http.Request) (pipeline.Document, error) {
	if s.schema == nil {
		return pipeline.Document{}, &pipeline.ConfigurationError{
			Message: "extraction schema not loaded from " + s.schemaPath,
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.intake.MaxBytes()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return pipeline.Document{}, &intake.RejectedError{
			Reason:  intake.ReasonMissingFile,
			Message: "expected a multipart/form-data body with a file field",
		}
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pipeline.Document{}, uploadReadError(err)
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		doc, err := s.intake.Accept(part, part.FileName(), part.Header.Get("Content-Type"))
		_ = part.Close()
		if err != nil {
			return pipeline.Document{}, uploadReadError(err)
		}
		return doc, nil
	}

	return pipeline.Document{}, &intake.RejectedError{
		Reason:  intake.ReasonMissingFile,
		Message: `no file uploaded in form field "file"`,
	}
}

// uploadReadError turns a body size overrun into a rejection.
func uploadReadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return &intake.RejectedError{Reason: intake.ReasonTooLarge, Message: "request body too large"}
	}
	var rejected *intake.RejectedError
	var storageErr *intake.StorageError
	if errors.As(err, &rejected) || errors.As(err, &storageErr) {
		return err
	}
	if errors.Is(err, multipart.ErrMessageTooLarge) {
		return &intake.RejectedError{Reason: intake.ReasonTooLarge, Message: "multipart headers too large"}
	}
	return &intake.RejectedError{Reason: intake.ReasonMissingFile, Message: "malformed multipart body: " + err.Error()}
}

// processError logs err and writes the matching error response.
func (s *Server) processError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	attrs := []any{"error", err, "status", status, "path", r.URL.Path}
	if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		s.logger.Error("http.process_failed", attrs...)
	} else {
		s.logger.Warn("http.process_rejected", attrs...)
	}
	s.jsonResponse(w, status, errorResponse(err))
}

func successResponse(result *pipeline.Result) ProcessResponse {
	return ProcessResponse{
		OK:            true,
		ExtractedData: result.Data,
		RunID:         result.RunID,
		Shape:         string(result.Shape),
		Warnings:      result.Warnings,
	}
}

func errorResponse(err error) ProcessResponse {
	resp := ProcessResponse{OK: false, Error: strings.TrimSpace(err.Error())}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		resp.RunID = stageErr.RunID
		resp.Stage = stageErr.Stage.String()
	}
	return resp
}
