package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLAMACLOUD_BASE_URL", "LLAMACLOUD_API_KEY", "LLAMA_ORG_ID", "LLAMA_PROJECT_ID",
		"HTTP_TIMEOUT", "EXTRACTION_SCHEMA_PATH", "SCHEMA_STRICT",
		"PARSE_POLL_INTERVAL", "PARSE_POLL_TIMEOUT", "EXTRACT_POLL_INTERVAL", "EXTRACT_POLL_TIMEOUT",
		"PARSE_RESULT_TYPE", "PORT", "UPLOAD_DIR", "MAX_UPLOAD_BYTES", "MAX_CONCURRENT_RUNS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	content := `
base_url: https://llama.example.com
project_id: proj-1
parse_poll_interval: 500ms
extract_poll_timeout: 20m
port: 8081
schema_strict: true
`
	tmpFile := filepath.Join(t.TempDir(), "docextract.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://llama.example.com", cfg.BaseURL)
	assert.Equal(t, "proj-1", cfg.ProjectID)
	assert.Equal(t, 500*time.Millisecond, cfg.ParsePollInterval)
	assert.Equal(t, 20*time.Minute, cfg.ExtractPollTimeout)
	assert.Equal(t, 8081, cfg.Port)
	assert.True(t, cfg.SchemaStrict)
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"organization_id": "org-9",
		"schema_path": "schemas/policy.json",
		"max_concurrent_runs": 2
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "org-9", cfg.OrganizationID)
	assert.Equal(t, "schemas/policy.json", cfg.SchemaPath)
	assert.Equal(t, 2, cfg.MaxConcurrentRuns)
}

func TestLoadConfig_InvalidContent(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("port: [not, a, number"), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultSchemaPath, cfg.SchemaPath)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 1500*time.Millisecond, cfg.ParsePollInterval)
	assert.Equal(t, 5*time.Minute, cfg.ParsePollTimeout)
	assert.Equal(t, 3*time.Second, cfg.ExtractPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.ExtractPollTimeout)
	assert.Equal(t, "markdown", cfg.ParseResultType)
	assert.Empty(t, cfg.APIKey)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLAMACLOUD_API_KEY", "llx-secret")
	t.Setenv("LLAMA_PROJECT_ID", "env-project")
	t.Setenv("EXTRACT_POLL_INTERVAL", "7s")
	t.Setenv("PARSE_RESULT_TYPE", "TEXT")
	t.Setenv("SCHEMA_STRICT", "true")

	tmpFile := filepath.Join(t.TempDir(), "docextract.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("project_id: file-project\nport: 9000\n"), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "llx-secret", cfg.APIKey)
	assert.Equal(t, "env-project", cfg.ProjectID)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 7*time.Second, cfg.ExtractPollInterval)
	assert.Equal(t, "text", cfg.ParseResultType)
	assert.True(t, cfg.SchemaStrict)
}

func TestLoad_InvalidEnvValueKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARSE_POLL_TIMEOUT", "soon")
	t.Setenv("PORT", "eighty")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultParsePollTimeout, cfg.ParsePollTimeout)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad base url", func(c *Config) { c.BaseURL = "not a url" }, "BaseURL"},
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }, "HTTPTimeout"},
		{"negative poll interval", func(c *Config) { c.ParsePollInterval = -time.Second }, "ParsePollInterval"},
		{"unknown result type", func(c *Config) { c.ParseResultType = "pdf" }, "ParseResultType"},
		{"port out of range", func(c *Config) { c.Port = 70000 }, "Port"},
		{"no upload dir", func(c *Config) { c.UploadDir = "" }, "UploadDir"},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentRuns = 0 }, "MaxConcurrentRuns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config error")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Defaults()
	defaults.ProjectID = "default-project"

	partial := Config{
		BaseURL:        "https://custom.example.com",
		OrganizationID: "org-1",
		Port:           8080,
	}

	merged := partial.MergeWithDefaults(defaults)

	// Custom values should be preserved
	assert.Equal(t, "https://custom.example.com", merged.BaseURL)
	assert.Equal(t, "org-1", merged.OrganizationID)
	assert.Equal(t, 8080, merged.Port)

	// Default values should fill in empty fields
	assert.Equal(t, "default-project", merged.ProjectID)
	assert.Equal(t, DefaultSchemaPath, merged.SchemaPath)
	assert.Equal(t, DefaultExtractPollTimeout, merged.ExtractPollTimeout)
	assert.Equal(t, DefaultMaxConcurrentRuns, merged.MaxConcurrentRuns)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{
		APIKey: "key",
		Port:   1234,
	}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "key", merged.APIKey)
	assert.Equal(t, 1234, merged.Port)
	assert.Empty(t, merged.BaseURL)
}
