package llamacloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonathan/docextract/internal/fetch"
)

// SubmitParseJob uploads a document to LlamaParse and returns the parse job id.
func (c *Client) SubmitParseJob(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	body, contentType, err := multipartFile("file", filename, mimeType, data, nil)
	if err != nil {
		return "", &SubmitError{Service: ServiceParse, Message: "build upload", Cause: err}
	}

	raw, _, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/v1/parsing/upload",
		scope:       c.cfg.Scope,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return "", &SubmitError{Service: ServiceParse, Message: "upload document", Cause: err}
	}

	var resp idResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &SubmitError{Service: ServiceParse, Message: "decode response", Cause: err}
	}
	if resp.ID == "" {
		return "", &SubmitError{Service: ServiceParse, Message: "response carried no job id"}
	}

	c.logger.Info("llamacloud.parse.submitted", "job_id", resp.ID, "filename", filename, "bytes", len(data))
	return resp.ID, nil
}

// GetParseJob returns the current status of a parse job. An unrecognized status is
// returned as-is, not as an error.
func (c *Client) GetParseJob(ctx context.Context, jobID string) (Job, error) {
	raw, _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/parsing/job/" + url.PathEscape(jobID),
		scope:  c.cfg.Scope,
	})
	if err != nil {
		return Job{}, &StatusError{Service: ServiceParse, JobID: jobID, Message: "get job", Cause: err}
	}

	job, err := decodeJob(raw)
	if err != nil {
		return Job{}, &StatusError{Service: ServiceParse, JobID: jobID, Message: "decode status", Cause: err}
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return job, nil
}

// FetchParseResult returns the text produced by a completed parse job. The body may be
// raw text or a JSON envelope; both are accepted.
func (c *Client) FetchParseResult(ctx context.Context, jobID string) (string, error) {
	raw, contentType, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/parsing/job/" + url.PathEscape(jobID) + "/result/" + c.cfg.ParseResultType,
		scope:  c.cfg.Scope,
	})
	if err != nil {
		return "", &FetchError{Service: ServiceParse, JobID: jobID, Message: "get result", Cause: err}
	}

	text, err := ExtractText(raw, contentType)
	if err != nil {
		return "", &FetchError{Service: ServiceParse, JobID: jobID, Message: "read result", Cause: err}
	}
	return text, nil
}

// errEmptyText is returned when a parse result carries no text at all.
var errEmptyText = errors.New("parse result is empty")

// textKeys are the envelope fields that may carry parsed text, in preference order.
var textKeys = []string{"markdown", "text", "md", "content"}

// ExtractText pulls the parsed text out of a result body. JSON envelopes are searched
// for known text fields (including per-page results); HTML is flattened to text;
// anything else is taken verbatim.
func ExtractText(body []byte, contentType string) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", errEmptyText
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, `"`) {
		if text, ok := textFromJSON([]byte(trimmed)); ok {
			if strings.TrimSpace(text) == "" {
				return "", errEmptyText
			}
			return text, nil
		}
	}

	if fetch.IsHTML(contentType) || strings.HasPrefix(strings.ToLower(trimmed), "<!doctype html") ||
		strings.HasPrefix(strings.ToLower(trimmed), "<html") {
		text, err := fetch.HTMLToText(trimmed)
		if err != nil {
			return "", fmt.Errorf("convert html: %w", err)
		}
		if text == "" {
			return "", errEmptyText
		}
		return text, nil
	}

	return trimmed, nil
}

// textFromJSON finds text inside a JSON string or envelope. ok is false when the
// body is not JSON or holds no recognizable text field.
func textFromJSON(body []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s, true
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false
	}

	for _, key := range textKeys {
		if v, ok := envelope[key]; ok {
			if err := json.Unmarshal(v, &s); err == nil {
				return s, true
			}
		}
	}

	if v, ok := envelope["html"]; ok {
		if err := json.Unmarshal(v, &s); err == nil {
			if text, err := fetch.HTMLToText(s); err == nil {
				return text, true
			}
		}
	}

	if v, ok := envelope["pages"]; ok {
		var pages []map[string]json.RawMessage
		if err := json.Unmarshal(v, &pages); err == nil && len(pages) > 0 {
			parts := make([]string, 0, len(pages))
			for _, page := range pages {
				for _, key := range []string{"md", "markdown", "text"} {
					if pv, ok := page[key]; ok {
						var ps string
						if err := json.Unmarshal(pv, &ps); err == nil && ps != "" {
							parts = append(parts, ps)
							break
						}
					}
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "\n\n"), true
			}
		}
	}

	return "", false
}
