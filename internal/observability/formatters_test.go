package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/docextract/internal/normalize"
	"github.com/jonathan/docextract/internal/pipeline"
	"github.com/jonathan/docextract/internal/schemas"
)

func TestPrintStage(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStage(pipeline.ProgressEvent{Stage: pipeline.StageParseSubmitted, Name: "parse_submitted", JobID: "parse-1"})
	p.PrintStage(pipeline.ProgressEvent{Stage: pipeline.StageCompleted, Name: "completed"})
	p.PrintStage(pipeline.ProgressEvent{Stage: pipeline.StageFailed, Name: "failed", Message: "job parse-1 failed with status ERROR"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "→ parse_submitted    job=parse-1", lines[0])
	assert.Equal(t, "✓ completed", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "✗ failed"))
	assert.Contains(t, lines[2], "status ERROR")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintResult(&pipeline.Result{
		RunID:          "run-1",
		Seq:            3,
		Data:           json.RawMessage(`{"policy_number":"123","insurer":"Acme"}`),
		Shape:          normalize.ShapeData,
		AgentID:        "agent-1",
		OriginalFileID: "file-1",
		TextFileID:     "file-2",
		Jobs: []pipeline.RemoteJob{
			{ID: "parse-1", Kind: pipeline.JobKindParse, Status: "SUCCESS"},
			{ID: "ext-1", Kind: pipeline.JobKindExtract, Status: "SUCCESS"},
		},
		Duration: 1500 * time.Millisecond,
	})
	output := buf.String()

	assert.Contains(t, output, "EXTRACTION RESULT")
	assert.Contains(t, output, "run-1 (#3)")
	assert.Contains(t, output, "1.5s")
	assert.Contains(t, output, "agent-1")
	assert.Contains(t, output, "parse-1")
	assert.Contains(t, output, "Extracted 2 fields")
	assert.Contains(t, output, `insurer: "Acme"`)
}

func TestPrintResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintResult(nil)
	assert.Empty(t, buf.String())
}

func TestPrintWarnings(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintWarnings(nil)
		assert.Contains(t, buf.String(), "RESULT MATCHES SCHEMA")
	})

	t.Run("some", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintWarnings([]schemas.FieldError{
			{Field: "(root)", Message: "policy_number is required"},
			{Field: "premium.amount", Message: "Invalid type. Expected: number, given: string"},
		})
		output := buf.String()
		assert.Contains(t, output, "Found 2 schema mismatches")
		assert.Contains(t, output, "premium.amount")
		assert.Contains(t, output, "policy_number is required")
	})
}

func TestPrintSchemaSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSchemaSummary(schemas.Summary{
		Title:      "InsurancePolicy",
		Type:       "object",
		Properties: []string{"insurer", "policy_number"},
		Required:   []string{"policy_number"},
		Bytes:      512,
	})
	output := buf.String()

	assert.Contains(t, output, "InsurancePolicy")
	assert.Contains(t, output, "Properties (2)")
	assert.Contains(t, output, "policy_number (required)")
	assert.NotContains(t, output, "insurer (required)")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}
