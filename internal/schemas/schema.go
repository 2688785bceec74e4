// Package schemas loads the extraction JSON Schema and validates extracted data against it.
package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ResolveSchemaPath attempts to find a schema file relative to the working directory or
// up to two parent directories, so commands and tests can run from nested directories.
// Returns the first path that exists, or empty string if none found.
func ResolveSchemaPath(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		if _, err := os.Stat(relativePath); err == nil {
			return relativePath
		}
		return ""
	}

	candidates := []string{
		relativePath,
		filepath.Join("..", relativePath),
		filepath.Join("..", "..", relativePath),
	}

	for _, candidate := range candidates {
		if absPath, err := filepath.Abs(candidate); err == nil {
			if _, err := os.Stat(absPath); err == nil {
				return absPath
			}
		}
	}

	return ""
}

// Schema is a compiled extraction schema. It is immutable once loaded and safe for
// concurrent use.
type Schema struct {
	path     string
	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// Load reads and compiles the schema at path.
func Load(path string) (*Schema, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &SchemaLoadError{Path: path, Message: "schema path is empty"}
	}

	resolved := ResolveSchemaPath(path)
	if resolved == "" {
		return nil, &SchemaLoadError{Path: path, Message: "schema file not found"}
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &SchemaLoadError{Path: resolved, Message: "failed to read schema file", Cause: err}
	}

	return Parse(resolved, content)
}

// Parse compiles schema content. path is used for reporting only.
func Parse(path string, content []byte) (*Schema, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, &SchemaLoadError{Path: path, Message: "schema file is empty"}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "schema is not a JSON object", Cause: err}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return nil, &SchemaLoadError{Path: path, Message: "failed to compile schema", Cause: err}
	}

	return &Schema{
		path:     path,
		raw:      append(json.RawMessage(nil), trimmed...),
		compiled: compiled,
	}, nil
}

// Path returns the file the schema was loaded from.
func (s *Schema) Path() string {
	return s.path
}

// Raw returns the schema document as sent to the extraction service.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Summary describes a schema for display.
type Summary struct {
	Path       string   `json:"path"`
	Title      string   `json:"title,omitempty"`
	Type       string   `json:"type,omitempty"`
	Properties []string `json:"properties"`
	Required   []string `json:"required,omitempty"`
	Bytes      int      `json:"bytes"`
}

// Summary reports the schema's title and top-level properties.
func (s *Schema) Summary() Summary {
	var doc struct {
		Title      string                     `json:"title"`
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	_ = json.Unmarshal(s.raw, &doc)

	props := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		props = append(props, name)
	}
	sort.Strings(props)

	return Summary{
		Path:       s.path,
		Title:      doc.Title,
		Type:       doc.Type,
		Properties: props,
		Required:   doc.Required,
		Bytes:      len(s.raw),
	}
}

// Validate checks data against the schema. It returns a *ValidationError listing every
// violation, or an error when data is not JSON.
func (s *Schema) Validate(data json.RawMessage) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to validate document: %w", err)
	}
	return toValidationError(result)
}

func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
