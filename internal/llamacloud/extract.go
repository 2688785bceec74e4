package llamacloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/jonathan/docextract/internal/fetch"
)

// Agent is an extraction agent as reported by LlamaExtract.
type Agent struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Scope returns the agent's own scope, filling gaps from fallback. The agent's
// identifiers always win.
func (a Agent) Scope(fallback Scope) Scope {
	return Scope{OrganizationID: a.OrganizationID, ProjectID: a.ProjectID}.Or(fallback)
}

// GetDefaultExtractionAgent resolves the default extraction agent for the configured scope.
func (c *Client) GetDefaultExtractionAgent(ctx context.Context) (Agent, error) {
	var agent Agent
	if _, err := c.getJSON(ctx, "/api/v1/extraction/extraction-agents/default", c.cfg.Scope, &agent); err != nil {
		msg := "get default agent"
		if StatusCode(err) == http.StatusNotFound {
			msg = "no default extraction agent configured"
		}
		return Agent{}, &AgentError{Message: msg, Cause: err}
	}
	if agent.ID == "" {
		return Agent{}, &AgentError{Message: "no default extraction agent configured"}
	}

	c.logger.Info("llamacloud.extract.agent_resolved",
		"agent_id", agent.ID, "agent_name", agent.Name, "project_id", agent.ProjectID)
	return agent, nil
}

// extractionJobRequest is the body of POST /extraction/jobs.
type extractionJobRequest struct {
	ExtractionAgentID  string          `json:"extraction_agent_id"`
	FileID             string          `json:"file_id"`
	DataSchemaOverride json.RawMessage `json:"data_schema_override,omitempty"`
}

// SubmitExtractionJob starts an extraction of fileID with agentID, overriding the agent's
// schema with schema. It returns the extraction job id.
func (c *Client) SubmitExtractionJob(ctx context.Context, agentID, fileID string, schema json.RawMessage, scope Scope) (string, error) {
	body := extractionJobRequest{
		ExtractionAgentID:  agentID,
		FileID:             fileID,
		DataSchemaOverride: schema,
	}

	var resp idResponse
	if err := c.postJSON(ctx, "/api/v1/extraction/jobs", scope, body, &resp); err != nil {
		return "", &SubmitError{Service: ServiceExtract, Message: "create extraction job", Cause: err}
	}
	if resp.ID == "" {
		return "", &SubmitError{Service: ServiceExtract, Message: "response carried no job id"}
	}

	c.logger.Info("llamacloud.extract.submitted", "job_id", resp.ID, "agent_id", agentID, "file_id", fileID)
	return resp.ID, nil
}

// GetExtractionJob returns the current status of an extraction job.
func (c *Client) GetExtractionJob(ctx context.Context, jobID string, scope Scope) (Job, error) {
	raw, err := c.getJSON(ctx, "/api/v1/extraction/jobs/"+url.PathEscape(jobID), scope, nil)
	if err != nil {
		return Job{}, &StatusError{Service: ServiceExtract, JobID: jobID, Message: "get job", Cause: err}
	}

	job, err := decodeJob(raw)
	if err != nil {
		return Job{}, &StatusError{Service: ServiceExtract, JobID: jobID, Message: "decode status", Cause: err}
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return job, nil
}

// errNotJSON is returned when an extraction result body is not JSON.
var errNotJSON = errors.New("result is not valid JSON")

// FetchExtractionResult returns the raw result payload of a completed extraction job.
// Its shape varies; see package normalize.
func (c *Client) FetchExtractionResult(ctx context.Context, jobID string, scope Scope) (json.RawMessage, error) {
	raw, err := c.getJSON(ctx, "/api/v1/extraction/jobs/"+url.PathEscape(jobID)+"/result", scope, nil)
	if err != nil {
		return nil, &FetchError{Service: ServiceExtract, JobID: jobID, Message: "get result", Cause: err}
	}
	if !json.Valid(raw) {
		return nil, &FetchError{Service: ServiceExtract, JobID: jobID, Message: "decode result", Cause: errNotJSON}
	}
	return json.RawMessage(raw), nil
}

// Download fetches a result referenced by URL (typically a presigned link, so no
// credentials are sent).
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	res, err := fetch.URL(ctx, rawURL, &fetch.Options{Timeout: c.cfg.Timeout, Client: c.http})
	if err != nil {
		return nil, &FetchError{Service: ServiceExtract, URL: rawURL, Message: "download", Cause: err}
	}

	c.logger.Info("llamacloud.extract.downloaded", "bytes", len(res.Body), "content_type", res.ContentType)
	return res.Body, nil
}
