package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/docextract/internal/config"
	"github.com/jonathan/docextract/internal/logger"
	"github.com/jonathan/docextract/internal/schemas"
	"github.com/jonathan/docextract/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server exposing /api/health, /api/process and /api/process/stream.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT and the config file)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.New("docextract", cmd.ErrOrStderr())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	// A missing schema does not stop the server; /api/health reports it and
	// /api/process refuses to run.
	schemaPath := cfg.SchemaPath
	schema, err := schemas.Load(schemaPath)
	if err != nil {
		log.Error("schema.load_failed", "path", schemaPath, "error", err)
	} else {
		log.Info("schema.loaded", "path", schema.Path(), "title", schema.Summary().Title)
	}

	if cfg.APIKey == "" {
		log.Warn("config.api_key_missing", "hint", "set LLAMACLOUD_API_KEY; /api/process will fail until it is set")
	}

	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	log.Info("intake.ready", "dir", c.store.Dir(), "max_bytes", cfg.MaxUploadBytes)

	srv := server.New(server.Config{
		Port:       cfg.Port,
		SchemaPath: cfg.SchemaPath,
		RunTimeout: runTimeout(cfg),
	}, c.pipeline, c.store, schema, log.With("component", "server"))

	ctx, stop := signal.NotifyContext(background(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// runTimeout covers both polling budgets plus the HTTP calls around them.
func runTimeout(cfg *config.Config) time.Duration {
	return cfg.ParsePollTimeout + cfg.ExtractPollTimeout + 6*cfg.HTTPTimeout
}

// background returns ctx, or a fresh context when cobra was run without one.
func background(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
