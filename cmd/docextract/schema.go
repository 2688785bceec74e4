package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/docextract/internal/config"
	"github.com/jonathan/docextract/internal/observability"
	"github.com/jonathan/docextract/internal/schemas"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Load the extraction schema and print a summary",
	Long:  "Load and compile the configured extraction schema, then print its title, type, properties and required fields.",
	RunE:  runSchema,
}

var (
	schemaPathFlag string
	schemaRaw      bool
	schemaPretty   bool
)

func init() {
	schemaCmd.Flags().StringVar(&schemaPathFlag, "path", "", "Schema file (overrides EXTRACTION_SCHEMA_PATH and the config file)")
	schemaCmd.Flags().BoolVar(&schemaRaw, "raw", false, "Print the schema document instead of a summary")
	schemaCmd.Flags().BoolVar(&schemaPretty, "pretty", false, "Print the summary as a box instead of JSON")

	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, _ []string) error {
	path := schemaPathFlag
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		path = cfg.SchemaPath
	}

	schema, err := schemas.Load(path)
	if err != nil {
		return err
	}

	if schemaPretty && !schemaRaw {
		observability.NewPrinter(cmd.OutOrStdout()).PrintSchemaSummary(schema.Summary())
		return nil
	}

	var out []byte
	if schemaRaw {
		out, err = json.MarshalIndent(schema.Raw(), "", "  ")
	} else {
		out, err = json.MarshalIndent(schema.Summary(), "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
