package main

import (
	"fmt"
	"log/slog"

	"github.com/jonathan/docextract/internal/config"
	"github.com/jonathan/docextract/internal/intake"
	"github.com/jonathan/docextract/internal/llamacloud"
	"github.com/jonathan/docextract/internal/pipeline"
	"github.com/jonathan/docextract/internal/polling"
)

// components are the collaborators shared by serve and process.
type components struct {
	cfg      *config.Config
	client   *llamacloud.Client
	store    *intake.Store
	pipeline *pipeline.Pipeline
}

// buildComponents wires the client, transient store and pipeline from cfg.
func buildComponents(cfg *config.Config, logger *slog.Logger) (*components, error) {
	client := llamacloud.New(llamacloud.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Scope: llamacloud.Scope{
			OrganizationID: cfg.OrganizationID,
			ProjectID:      cfg.ProjectID,
		},
		Timeout:         cfg.HTTPTimeout,
		ParseResultType: cfg.ParseResultType,
	}, nil, logger.With("component", "llamacloud"))

	store, err := intake.NewStore(intake.Config{
		Dir:      cfg.UploadDir,
		MaxBytes: cfg.MaxUploadBytes,
	}, logger.With("component", "intake"))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	p := pipeline.New(client, store, pipeline.NewCounter(), pipelineOptions(cfg), logger.With("component", "pipeline"))

	return &components{cfg: cfg, client: client, store: store, pipeline: p}, nil
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		ParsePoll:         polling.Options{Interval: cfg.ParsePollInterval, Timeout: cfg.ParsePollTimeout},
		ExtractPoll:       polling.Options{Interval: cfg.ExtractPollInterval, Timeout: cfg.ExtractPollTimeout},
		SchemaStrict:      cfg.SchemaStrict,
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
	}
}

