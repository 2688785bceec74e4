package schemas

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Valid(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "insurance.schema.json"))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(s.Path()))
	assert.True(t, json.Valid(s.Raw()))

	summary := s.Summary()
	assert.Equal(t, "InsurancePolicy", summary.Title)
	assert.Equal(t, "object", summary.Type)
	assert.Contains(t, summary.Properties, "policy_number")
	assert.Equal(t, []string{"policy_number"}, summary.Required)
	assert.Equal(t, len(s.Raw()), summary.Bytes)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.schema.json"))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("  ")
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoad_Malformed(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "malformed.json")
	require.NoError(t, os.WriteFile(path, []byte("{ invalid json }"), 0644))

	_, err := Load(path)
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, path, loadErr.Path)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty", "   ", "empty"},
		{"array", `[1,2]`, "not a JSON object"},
		{"bad type keyword", `{"type": 42}`, "compile"},
		{"minimal", `{"type":"object"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse("inline", []byte(tt.content))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "inline", s.Path())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "insurance.schema.json"))
	require.NoError(t, err)

	valid, err := os.ReadFile(filepath.Join("testdata", "valid_result.json"))
	require.NoError(t, err)
	assert.NoError(t, s.Validate(valid))

	err = s.Validate(json.RawMessage(`{"insurer": 7}`))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.GreaterOrEqual(t, len(validationErr.Errors), 2)

	fields := make([]string, 0, len(validationErr.Errors))
	for _, fe := range validationErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "insurer")
	assert.Contains(t, err.Error(), "policy_number")
}

func TestSchema_Validate_NotJSON(t *testing.T) {
	s, err := Parse("inline", []byte(`{"type":"object"}`))
	require.NoError(t, err)

	err = s.Validate(json.RawMessage(`not json`))
	require.Error(t, err)
	_, isValidation := err.(*ValidationError)
	assert.False(t, isValidation)
}

func TestValidate_TypeMismatch(t *testing.T) {
	schema, err := Parse("inline", []byte(`{"type":"object","properties":{"n":{"type":"number"}},"required":["n"]}`))
	require.NoError(t, err)

	assert.NoError(t, schema.Validate([]byte(`{"n": 1}`)))

	err = schema.Validate([]byte(`{"n": "one"}`))
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Len(t, validationErr.Errors, 1)
	assert.Equal(t, "n", validationErr.Errors[0].Field)
}

func TestResolveSchemaPath(t *testing.T) {
	assert.NotEmpty(t, ResolveSchemaPath(filepath.Join("testdata", "insurance.schema.json")))
	assert.Empty(t, ResolveSchemaPath(filepath.Join("testdata", "nope.json")))

	abs, err := filepath.Abs(filepath.Join("testdata", "insurance.schema.json"))
	require.NoError(t, err)
	assert.Equal(t, abs, ResolveSchemaPath(abs))
}
