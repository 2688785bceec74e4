package llamacloud

import (
	"context"
	"encoding/json"
	"net/http"
)

// UploadFile stores a blob through the Files API and returns its file id. The
// configured organization/project scope is sent only when set.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	body, contentType, err := multipartFile("upload_file", filename, mimeType, data, nil)
	if err != nil {
		return "", &UploadError{Service: ServiceFiles, Filename: filename, Message: "build upload", Cause: err}
	}

	raw, _, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/v1/files",
		scope:       c.cfg.Scope,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return "", &UploadError{Service: ServiceFiles, Filename: filename, Message: "upload", Cause: err}
	}

	var resp idResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &UploadError{Service: ServiceFiles, Filename: filename, Message: "decode response", Cause: err}
	}
	if resp.ID == "" {
		return "", &UploadError{Service: ServiceFiles, Filename: filename, Message: "response carried no file id"}
	}

	c.logger.Info("llamacloud.files.uploaded", "file_id", resp.ID, "filename", filename, "bytes", len(data))
	return resp.ID, nil
}
