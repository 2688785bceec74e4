// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/docextract/internal/pipeline"
	"github.com/jonathan/docextract/internal/schemas"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to a terminal; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintStage outputs one line per stage transition.
//
//nolint:errcheck // writing to a terminal; errors are not recoverable
func (p *Printer) PrintStage(event pipeline.ProgressEvent) {
	marker := "→"
	switch event.Stage {
	case pipeline.StageCompleted:
		marker = "✓"
	case pipeline.StageFailed:
		marker = "✗"
	}

	line := fmt.Sprintf("%s %-18s", marker, event.Name)
	if event.JobID != "" {
		line += " job=" + event.JobID
	}
	if event.Message != "" {
		line += " " + truncate(event.Message, 60)
	}
	fmt.Fprintln(p.out, strings.TrimRight(line, " "))
}

// PrintResult outputs a summary of a completed run and its top-level extracted fields.
func (p *Printer) PrintResult(result *pipeline.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s (#%d)\n", result.RunID, result.Seq))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", result.Duration.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Shape:     %s", result.Shape))
	if result.Downloaded {
		sb.WriteString(" (downloaded)")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Agent:     %s\n", result.AgentID))
	sb.WriteString(fmt.Sprintf("Files:     %s, %s\n", result.OriginalFileID, result.TextFileID))
	for _, job := range result.Jobs {
		sb.WriteString(fmt.Sprintf("  • %-8s %s %s\n", job.Kind, job.ID, job.Status))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result.Data, &fields); err == nil && len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		sb.WriteString(fmt.Sprintf("\nExtracted %d fields:\n", len(names)))
		count := min(len(names), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s: %s\n", names[i], string(fields[names[i]])))
		}
		if len(names) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(names)-maxItemsToShow))
		}
	}

	p.printBox("EXTRACTION RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintWarnings outputs schema mismatches reported for a result.
//
//nolint:errcheck // writing to a terminal; errors are not recoverable
func (p *Printer) PrintWarnings(warnings []schemas.FieldError) {
	if len(warnings) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ RESULT MATCHES SCHEMA")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d schema mismatches:\n\n", len(warnings)))

	for i, w := range warnings {
		sb.WriteString(fmt.Sprintf("⚠ %s\n", w.Field))
		sb.WriteString(fmt.Sprintf("  %s\n", w.Message))
		if i < len(warnings)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("SCHEMA MISMATCHES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSchemaSummary outputs the extraction schema's title and fields.
func (p *Printer) PrintSchemaSummary(summary schemas.Summary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:    %s\n", summary.Title))
	sb.WriteString(fmt.Sprintf("Type:     %s\n", summary.Type))
	sb.WriteString(fmt.Sprintf("Size:     %d bytes\n", summary.Bytes))

	required := make(map[string]bool, len(summary.Required))
	for _, name := range summary.Required {
		required[name] = true
	}

	if len(summary.Properties) > 0 {
		sb.WriteString(fmt.Sprintf("\nProperties (%d):\n", len(summary.Properties)))
		for _, name := range summary.Properties {
			if required[name] {
				sb.WriteString(fmt.Sprintf("  • %s (required)\n", name))
			} else {
				sb.WriteString(fmt.Sprintf("  • %s\n", name))
			}
		}
	}

	p.printBox("EXTRACTION SCHEMA", strings.TrimSuffix(sb.String(), "\n"))
}
