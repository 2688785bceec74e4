// Package main provides the entry point for the document extraction service and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docextract",
	Short: "Document extraction via LlamaParse and LlamaExtract",
	Long: "docextract parses an uploaded document with LlamaParse, extracts structured data from the parsed text " +
		"with LlamaExtract against a JSON Schema, and returns the result over HTTP or on the command line.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file (environment variables override it)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
