package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/docextract/internal/config"
	"github.com/jonathan/docextract/internal/logger"
	"github.com/jonathan/docextract/internal/observability"
	"github.com/jonathan/docextract/internal/pipeline"
	"github.com/jonathan/docextract/internal/schemas"
)

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Run one document through parse and extraction",
	Long:  "Parse a local PDF, DOCX, PPTX or text file with LlamaParse, extract structured data with LlamaExtract and print the result as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var (
	processOutputFile string
	processDataOnly   bool
	processStrict     bool
	processVerbose    bool
)

func init() {
	processCmd.Flags().StringVarP(&processOutputFile, "out", "o", "", "Write the JSON result to this file instead of stdout")
	processCmd.Flags().BoolVar(&processDataOnly, "data-only", false, "Print only the extracted data, without run metadata")
	processCmd.Flags().BoolVar(&processStrict, "strict", false, "Fail when the extracted data does not match the schema")
	processCmd.Flags().BoolVarP(&processVerbose, "verbose", "v", false, "Print stage transitions and a result summary to stderr")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.New("docextract", cmd.ErrOrStderr())

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if processStrict {
		cfg.SchemaStrict = true
	}

	schema, err := schemas.Load(cfg.SchemaPath)
	if err != nil {
		return err
	}

	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	doc, err := c.store.AcceptFile(args[0])
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.ErrOrStderr())

	var onProgress pipeline.ProgressCallback
	if processVerbose {
		onProgress = printer.PrintStage
	}

	ctx, stop := signal.NotifyContext(background(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := c.pipeline.ProcessDocumentWithProgress(ctx, doc, schema, onProgress)
	if err != nil {
		return err
	}

	if processVerbose {
		printer.PrintResult(result)
		printer.PrintWarnings(result.Warnings)
	} else {
		for _, w := range result.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %s\n", w.Field, w.Message)
		}
	}

	return writeResult(cmd, result)
}

func writeResult(cmd *cobra.Command, result *pipeline.Result) error {
	var (
		out []byte
		err error
	)
	if processDataOnly {
		out, err = json.MarshalIndent(result.Data, "", "  ")
	} else {
		out, err = json.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	out = append(out, '\n')

	if processOutputFile == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(processOutputFile, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (run %s)\n", processOutputFile, result.RunID)
	return nil
}
