// Package pipeline runs a document through LlamaParse and LlamaExtract and returns the
// structured data extracted from it.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/docextract/internal/llamacloud"
	"github.com/jonathan/docextract/internal/normalize"
	"github.com/jonathan/docextract/internal/polling"
	"github.com/jonathan/docextract/internal/schemas"
)

// DefaultMaxConcurrentRuns caps simultaneous runs when Options leaves it unset.
const DefaultMaxConcurrentRuns = 4

// RemoteClient is the subset of the LlamaCloud client a run needs.
type RemoteClient interface {
	Configured() error
	DefaultScope() llamacloud.Scope
	SubmitParseJob(ctx context.Context, data []byte, filename, mimeType string) (string, error)
	GetParseJob(ctx context.Context, jobID string) (llamacloud.Job, error)
	FetchParseResult(ctx context.Context, jobID string) (string, error)
	UploadFile(ctx context.Context, data []byte, filename, mimeType string) (string, error)
	GetDefaultExtractionAgent(ctx context.Context) (llamacloud.Agent, error)
	SubmitExtractionJob(ctx context.Context, agentID, fileID string, schema json.RawMessage, scope llamacloud.Scope) (string, error)
	GetExtractionJob(ctx context.Context, jobID string, scope llamacloud.Scope) (llamacloud.Job, error)
	FetchExtractionResult(ctx context.Context, jobID string, scope llamacloud.Scope) (json.RawMessage, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// ArtifactStore holds a run's local transient files.
type ArtifactStore interface {
	WriteText(baseName, text string) (string, error)
	Remove(path string) error
}

// Document is an uploaded document held in transient local storage.
type Document struct {
	Path     string `json:"-"`
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// JobKind names the remote service a job runs on.
type JobKind string

// Job kinds.
const (
	JobKindParse   JobKind = "parse"
	JobKindExtract JobKind = "extract"
)

// RemoteJob records a job submitted during a run.
type RemoteJob struct {
	ID        string               `json:"id"`
	Kind      JobKind              `json:"kind"`
	Status    llamacloud.JobStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// Result is the outcome of a completed run.
type Result struct {
	RunID          string               `json:"run_id"`
	Seq            uint64               `json:"seq"`
	Data           json.RawMessage      `json:"data"`
	Shape          normalize.Shape      `json:"shape"`
	Downloaded     bool                 `json:"downloaded,omitempty"`
	OriginalFileID string               `json:"original_file_id"`
	TextFileID     string               `json:"text_file_id"`
	AgentID        string               `json:"agent_id"`
	Jobs           []RemoteJob          `json:"jobs"`
	Warnings       []schemas.FieldError `json:"warnings,omitempty"`
	Duration       time.Duration        `json:"duration"`
}

// ProgressEvent reports a stage transition.
type ProgressEvent struct {
	RunID   string `json:"run_id"`
	Stage   Stage  `json:"-"`
	Name    string `json:"stage"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProgressCallback is called on every stage transition of a run.
type ProgressCallback func(event ProgressEvent)

// Options configures a Pipeline.
type Options struct {
	ParsePoll         polling.Options
	ExtractPoll       polling.Options
	SchemaStrict      bool
	MaxConcurrentRuns int
	OnProgress        ProgressCallback
}

// DefaultOptions returns the default polling cadences and concurrency ceiling.
func DefaultOptions() Options {
	return Options{
		ParsePoll:         polling.Options{Interval: polling.DefaultParseInterval, Timeout: polling.DefaultParseTimeout},
		ExtractPoll:       polling.Options{Interval: polling.DefaultExtractInterval, Timeout: polling.DefaultExtractTimeout},
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
	}
}

// Pipeline runs documents. A Pipeline is safe for concurrent use; runs share nothing
// but the correlation counter.
type Pipeline struct {
	client  RemoteClient
	store   ArtifactStore
	counter *Counter
	sem     *semaphore.Weighted
	opts    Options
	logger  *slog.Logger
}

// New creates a Pipeline. A nil counter or logger gets a default.
func New(client RemoteClient, store ArtifactStore, counter *Counter, opts Options, logger *slog.Logger) *Pipeline {
	defaults := DefaultOptions()
	if opts.ParsePoll.Interval <= 0 {
		opts.ParsePoll.Interval = defaults.ParsePoll.Interval
	}
	if opts.ParsePoll.Timeout <= 0 {
		opts.ParsePoll.Timeout = defaults.ParsePoll.Timeout
	}
	if opts.ExtractPoll.Interval <= 0 {
		opts.ExtractPoll.Interval = defaults.ExtractPoll.Interval
	}
	if opts.ExtractPoll.Timeout <= 0 {
		opts.ExtractPoll.Timeout = defaults.ExtractPoll.Timeout
	}
	if opts.MaxConcurrentRuns <= 0 {
		opts.MaxConcurrentRuns = defaults.MaxConcurrentRuns
	}
	if counter == nil {
		counter = NewCounter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:  client,
		store:   store,
		counter: counter,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		opts:    opts,
		logger:  logger,
	}
}

// run is the state of one ProcessDocument call.
type run struct {
	p      *Pipeline
	id     string
	seq    uint64
	stage  Stage
	start  time.Time
	logger *slog.Logger
	// progress receives stage transitions, if set
	progress ProgressCallback
	// local files to remove when the run ends
	artifacts []string
}

// advance moves the run to next and reports it.
func (r *run) advance(next Stage, jobID, message string) {
	if next != StageReceived && !r.stage.CanTransition(next) {
		r.logger.Warn("pipeline.invalid_transition", "from", r.stage.String(), "to", next.String())
	}
	r.stage = next

	attrs := []any{"stage", next.String(), "elapsed_ms", time.Since(r.start).Milliseconds()}
	if jobID != "" {
		attrs = append(attrs, "job_id", jobID)
	}
	r.logger.Info("pipeline.stage", attrs...)

	if r.progress != nil {
		r.progress(ProgressEvent{
			RunID:   r.id,
			Stage:   next,
			Name:    next.String(),
			JobID:   jobID,
			Message: message,
		})
	}
}

// fail moves the run to Failed and wraps cause with the stage it was trying to reach.
func (r *run) fail(target Stage, jobID string, cause error) error {
	r.logger.Error("pipeline.failed",
		"stage", target.String(), "job_id", jobID, "error", cause,
		"elapsed_ms", time.Since(r.start).Milliseconds(),
	)
	r.advance(StageFailed, jobID, cause.Error())
	return &StageError{Stage: target, RunID: r.id, JobID: jobID, Cause: cause}
}

// cleanup removes local transient files. Failures are logged only.
func (r *run) cleanup() {
	for _, path := range r.artifacts {
		if err := r.p.store.Remove(path); err != nil {
			r.logger.Warn("pipeline.cleanup_failed", "path", path, "error", err)
		}
	}
}

// ProcessDocument parses doc, extracts structured data from the parsed text using
// schema and returns it. The local copy of doc and any intermediate file are removed
// before returning, whatever the outcome. Cancelling ctx aborts the run, including a
// wait between status checks.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc Document, schema *schemas.Schema) (*Result, error) {
	return p.ProcessDocumentWithProgress(ctx, doc, schema, p.opts.OnProgress)
}

// ProcessDocumentWithProgress is ProcessDocument reporting this run's stage transitions
// to onProgress instead of Options.OnProgress.
func (p *Pipeline) ProcessDocumentWithProgress(ctx context.Context, doc Document, schema *schemas.Schema, onProgress ProgressCallback) (*Result, error) {
	r := &run{
		p:        p,
		id:       uuid.NewString(),
		seq:      p.counter.Next(),
		stage:    StageReceived,
		start:    time.Now(),
		progress: onProgress,
	}
	r.logger = p.logger.With("run_id", r.id, "seq", r.seq)
	if doc.Path != "" {
		r.artifacts = append(r.artifacts, doc.Path)
	}
	defer r.cleanup()

	if schema == nil {
		return nil, &ConfigurationError{Message: "extraction schema is not loaded"}
	}
	if err := p.client.Configured(); err != nil {
		return nil, &ConfigurationError{Message: "remote client is not configured", Cause: err}
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, r.fail(StageReceived, "", fmt.Errorf("waiting for a free run slot: %w", err))
	}
	defer p.sem.Release(1)

	r.logger.Info("pipeline.started", "filename", doc.Filename, "mime_type", doc.MIMEType, "bytes", doc.Size)
	r.advance(StageReceived, "", doc.Filename)

	result, err := r.execute(ctx, doc, schema)
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(r.start)
	r.advance(StageCompleted, "", "")
	r.logger.Info("pipeline.completed", "shape", string(result.Shape), "elapsed_ms", result.Duration.Milliseconds())
	return result, nil
}

// execute drives the stages after Received.
func (r *run) execute(ctx context.Context, doc Document, schema *schemas.Schema) (*Result, error) {
	result := &Result{RunID: r.id, Seq: r.seq}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, r.fail(StageOriginalUploaded, "", fmt.Errorf("read document: %w", err))
	}
	filename := doc.Filename
	if filename == "" {
		filename = filepath.Base(doc.Path)
	}

	// Original document, kept remotely for traceability.
	originalFileID, err := r.p.client.UploadFile(ctx, data, filename, doc.MIMEType)
	if err != nil {
		return nil, r.fail(StageOriginalUploaded, "", err)
	}
	result.OriginalFileID = originalFileID
	r.advance(StageOriginalUploaded, "", originalFileID)

	// Parse.
	parseJobID, err := r.p.client.SubmitParseJob(ctx, data, filename, doc.MIMEType)
	if err != nil {
		return nil, r.fail(StageParseSubmitted, "", err)
	}
	parseJob := RemoteJob{ID: parseJobID, Kind: JobKindParse, Status: llamacloud.StatusPending, CreatedAt: time.Now()}
	r.advance(StageParseSubmitted, parseJobID, "")

	r.advance(StageParsePolling, parseJobID, "")
	finalParse, err := polling.UntilTerminal(ctx, parseJobID, r.p.client.GetParseJob, classify,
		r.pollOptions(r.p.opts.ParsePoll, parseJobID))
	if err != nil {
		return nil, r.fail(StageParseDone, parseJobID, err)
	}
	parseJob.Status = finalParse.Status
	result.Jobs = append(result.Jobs, parseJob)

	text, err := r.p.client.FetchParseResult(ctx, parseJobID)
	if err != nil {
		return nil, r.fail(StageParseDone, parseJobID, err)
	}
	r.advance(StageParseDone, parseJobID, fmt.Sprintf("%d characters", len(text)))

	// Parsed text as a new remote file.
	textPath, err := r.p.store.WriteText(filename, text)
	if err != nil {
		return nil, r.fail(StageTextUploaded, "", err)
	}
	r.artifacts = append(r.artifacts, textPath)

	textFileID, err := r.p.client.UploadFile(ctx, []byte(text), textFilename(filename), "text/markdown")
	if err != nil {
		return nil, r.fail(StageTextUploaded, "", err)
	}
	result.TextFileID = textFileID
	r.advance(StageTextUploaded, "", textFileID)

	// Extract. The agent's scope wins over the configured one from here on.
	agent, err := r.p.client.GetDefaultExtractionAgent(ctx)
	if err != nil {
		return nil, r.fail(StageAgentResolved, "", err)
	}
	scope := agent.Scope(r.p.client.DefaultScope())
	result.AgentID = agent.ID
	r.advance(StageAgentResolved, "", agent.ID)

	extractJobID, err := r.p.client.SubmitExtractionJob(ctx, agent.ID, textFileID, schema.Raw(), scope)
	if err != nil {
		return nil, r.fail(StageExtractSubmitted, "", err)
	}
	extractJob := RemoteJob{ID: extractJobID, Kind: JobKindExtract, Status: llamacloud.StatusPending, CreatedAt: time.Now()}
	r.advance(StageExtractSubmitted, extractJobID, "")

	r.advance(StageExtractPolling, extractJobID, "")
	getExtractJob := func(ctx context.Context, jobID string) (llamacloud.Job, error) {
		return r.p.client.GetExtractionJob(ctx, jobID, scope)
	}
	finalExtract, err := polling.UntilTerminal(ctx, extractJobID, getExtractJob, classify,
		r.pollOptions(r.p.opts.ExtractPoll, extractJobID))
	if err != nil {
		return nil, r.fail(StageExtractDone, extractJobID, err)
	}
	extractJob.Status = finalExtract.Status
	result.Jobs = append(result.Jobs, extractJob)

	payload, err := r.p.client.FetchExtractionResult(ctx, extractJobID, scope)
	if err != nil {
		return nil, r.fail(StageExtractDone, extractJobID, err)
	}
	r.advance(StageExtractDone, extractJobID, "")

	// Normalize.
	if err := r.normalize(ctx, extractJobID, payload, result); err != nil {
		return nil, r.fail(StageNormalized, extractJobID, err)
	}

	if err := schema.Validate(result.Data); err != nil {
		var validationErr *schemas.ValidationError
		if !errors.As(err, &validationErr) || r.p.opts.SchemaStrict {
			return nil, r.fail(StageNormalized, extractJobID, err)
		}
		result.Warnings = validationErr.Errors
		r.logger.Warn("pipeline.schema_mismatch", "job_id", extractJobID, "violations", len(validationErr.Errors))
	}
	r.advance(StageNormalized, extractJobID, string(result.Shape))

	return result, nil
}

// normalize fills result.Data from an extraction payload, following download_url when
// the payload itself carries no data.
func (r *run) normalize(ctx context.Context, jobID string, payload json.RawMessage, result *Result) error {
	if data, shape, ok := normalize.Normalize(payload); ok {
		result.Data, result.Shape = data, shape
		return nil
	}

	downloadURL, ok := normalize.DownloadURL(payload)
	if !ok {
		return &NoStructuredDataError{JobID: jobID}
	}

	r.logger.Info("pipeline.download", "job_id", jobID)
	body, err := r.p.client.Download(ctx, downloadURL)
	if err != nil {
		return err
	}
	result.Downloaded = true

	if data, shape, ok := normalize.Normalize(body); ok {
		result.Data, result.Shape = data, shape
		return nil
	}
	if data, ok := normalize.Verbatim(body); ok {
		result.Data, result.Shape = data, normalize.ShapeVerbatim
		return nil
	}
	return &NoStructuredDataError{JobID: jobID}
}

// pollOptions adds status logging to the configured cadence.
func (r *run) pollOptions(opts polling.Options, jobID string) polling.Options {
	opts.OnPoll = func(attempt int, status string) {
		r.logger.Debug("pipeline.poll", "job_id", jobID, "attempt", attempt, "status", status,
			"elapsed_ms", time.Since(r.start).Milliseconds())
	}
	return opts
}

// classify maps a job snapshot onto a polling state.
func classify(job llamacloud.Job) (polling.State, string, string) {
	status := string(job.Status)
	switch job.Status.Phase() {
	case llamacloud.PhaseSucceeded:
		return polling.Succeeded, status, ""
	case llamacloud.PhaseFailed:
		detail := job.ErrorDetail()
		if detail == "" {
			detail = "remote job reported failure without detail"
		}
		return polling.Failed, status, detail
	default:
		return polling.Pending, status, ""
	}
}

// textFilename names the uploaded parsed-text blob after the original document.
func textFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if stem == "" {
		stem = "document"
	}
	return stem + ".parsed.md"
}
