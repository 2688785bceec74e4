package schema

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/jonathan/docextract/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schemaFiles = []string{
	"insurance.schema.json",
}

func TestSchemaFiles_ValidJSON(t *testing.T) {
	for _, schemaFile := range schemaFiles {
		t.Run(schemaFile, func(t *testing.T) {
			data, err := os.ReadFile(schemaFile)
			require.NoError(t, err, "should be able to read schema file")

			var v map[string]interface{}
			assert.NoError(t, json.Unmarshal(data, &v), "schema file should be a JSON object: %s", schemaFile)
		})
	}
}

func TestSchemaFiles_Compile(t *testing.T) {
	for _, schemaFile := range schemaFiles {
		t.Run(schemaFile, func(t *testing.T) {
			s, err := schemas.Load(schemaFile)
			require.NoError(t, err)

			summary := s.Summary()
			assert.Equal(t, "object", summary.Type)
			assert.NotEmpty(t, summary.Properties)
		})
	}
}

func TestInsuranceSchema_AcceptsTypicalExtraction(t *testing.T) {
	s, err := schemas.Load("insurance.schema.json")
	require.NoError(t, err)

	err = s.Validate(json.RawMessage(`{
		"policy_number": "Policy #123",
		"insurer": "Acme Mutual",
		"premium": {"amount": 99.5, "currency": "USD"},
		"coverages": [{"name": "Liability", "limit": "1,000,000"}]
	}`))
	assert.NoError(t, err)
}

func TestInsuranceSchema_RequiresPolicyNumber(t *testing.T) {
	s, err := schemas.Load("insurance.schema.json")
	require.NoError(t, err)

	err = s.Validate(json.RawMessage(`{"insurer": "Acme Mutual"}`))
	var validationErr *schemas.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
