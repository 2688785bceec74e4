// Package config provides configuration loading and validation for the service and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default values used when neither the config file nor the environment sets a field.
const (
	DefaultBaseURL             = "https://api.cloud.llamaindex.ai"
	DefaultSchemaPath          = "schema/insurance.schema.json"
	DefaultPort                = 4000
	DefaultUploadDir           = "uploads"
	DefaultMaxUploadBytes      = 10 * 1024 * 1024
	DefaultHTTPTimeout         = 2 * time.Minute
	DefaultParsePollInterval   = 1500 * time.Millisecond
	DefaultParsePollTimeout    = 5 * time.Minute
	DefaultExtractPollInterval = 3 * time.Second
	DefaultExtractPollTimeout  = 10 * time.Minute
	DefaultParseResultType     = "markdown"
	DefaultMaxConcurrentRuns   = 4
)

// Config holds every setting the service needs. It can be loaded from a YAML or JSON file
// and is then overlaid with environment variables.
type Config struct {
	// LlamaCloud access
	BaseURL        string        `yaml:"base_url,omitempty" validate:"required,url"`
	APIKey         string        `yaml:"api_key,omitempty"`         // checked on first use, not at load
	OrganizationID string        `yaml:"organization_id,omitempty"` // optional tenant scope
	ProjectID      string        `yaml:"project_id,omitempty"`      // optional tenant scope
	HTTPTimeout    time.Duration `yaml:"http_timeout,omitempty" validate:"gt=0"`

	// Extraction schema
	SchemaPath   string `yaml:"schema_path,omitempty" validate:"required"`
	SchemaStrict bool   `yaml:"schema_strict,omitempty"`

	// Polling
	ParsePollInterval   time.Duration `yaml:"parse_poll_interval,omitempty" validate:"gt=0"`
	ParsePollTimeout    time.Duration `yaml:"parse_poll_timeout,omitempty" validate:"gt=0"`
	ExtractPollInterval time.Duration `yaml:"extract_poll_interval,omitempty" validate:"gt=0"`
	ExtractPollTimeout  time.Duration `yaml:"extract_poll_timeout,omitempty" validate:"gt=0"`
	ParseResultType     string        `yaml:"parse_result_type,omitempty" validate:"oneof=markdown text"`

	// Serving
	Port              int    `yaml:"port,omitempty" validate:"min=1,max=65535"`
	UploadDir         string `yaml:"upload_dir,omitempty" validate:"required"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes,omitempty" validate:"gt=0"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs,omitempty" validate:"min=1"`
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() Config {
	return Config{
		BaseURL:             DefaultBaseURL,
		HTTPTimeout:         DefaultHTTPTimeout,
		SchemaPath:          DefaultSchemaPath,
		ParsePollInterval:   DefaultParsePollInterval,
		ParsePollTimeout:    DefaultParsePollTimeout,
		ExtractPollInterval: DefaultExtractPollInterval,
		ExtractPollTimeout:  DefaultExtractPollTimeout,
		ParseResultType:     DefaultParseResultType,
		Port:                DefaultPort,
		UploadDir:           DefaultUploadDir,
		MaxUploadBytes:      DefaultMaxUploadBytes,
		MaxConcurrentRuns:   DefaultMaxConcurrentRuns,
	}
}

// Load builds the effective configuration: defaults, then the optional config file,
// then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		fileCfg, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg.MergeWithDefaults(cfg)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads configuration from a YAML or JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// JSON is valid YAML, so one decoder covers both formats.
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// ApplyEnv overlays any environment variables that are set onto the config.
func (c *Config) ApplyEnv() {
	c.BaseURL = getEnvString("LLAMACLOUD_BASE_URL", c.BaseURL)
	c.APIKey = getEnvString("LLAMACLOUD_API_KEY", c.APIKey)
	c.OrganizationID = getEnvString("LLAMA_ORG_ID", c.OrganizationID)
	c.ProjectID = getEnvString("LLAMA_PROJECT_ID", c.ProjectID)
	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)

	c.SchemaPath = getEnvString("EXTRACTION_SCHEMA_PATH", c.SchemaPath)
	c.SchemaStrict = getEnvBool("SCHEMA_STRICT", c.SchemaStrict)

	c.ParsePollInterval = getEnvDuration("PARSE_POLL_INTERVAL", c.ParsePollInterval)
	c.ParsePollTimeout = getEnvDuration("PARSE_POLL_TIMEOUT", c.ParsePollTimeout)
	c.ExtractPollInterval = getEnvDuration("EXTRACT_POLL_INTERVAL", c.ExtractPollInterval)
	c.ExtractPollTimeout = getEnvDuration("EXTRACT_POLL_TIMEOUT", c.ExtractPollTimeout)
	c.ParseResultType = strings.ToLower(getEnvString("PARSE_RESULT_TYPE", c.ParseResultType))

	c.Port = getEnvInt("PORT", c.Port)
	c.UploadDir = getEnvString("UPLOAD_DIR", c.UploadDir)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.MaxConcurrentRuns = getEnvInt("MAX_CONCURRENT_RUNS", c.MaxConcurrentRuns)
}

// Validate checks that the configuration has valid values.
// The API key is not required here: the health endpoint and the schema command work without it,
// and the pipeline refuses to run when it is missing.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %s", describeValidationErrors(err))
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.OrganizationID == "" {
		result.OrganizationID = defaults.OrganizationID
	}
	if result.ProjectID == "" {
		result.ProjectID = defaults.ProjectID
	}
	if result.SchemaPath == "" {
		result.SchemaPath = defaults.SchemaPath
	}
	if result.ParseResultType == "" {
		result.ParseResultType = defaults.ParseResultType
	}
	if result.UploadDir == "" {
		result.UploadDir = defaults.UploadDir
	}

	// Numeric and duration fields: use default if zero
	if result.HTTPTimeout == 0 {
		result.HTTPTimeout = defaults.HTTPTimeout
	}
	if result.ParsePollInterval == 0 {
		result.ParsePollInterval = defaults.ParsePollInterval
	}
	if result.ParsePollTimeout == 0 {
		result.ParsePollTimeout = defaults.ParsePollTimeout
	}
	if result.ExtractPollInterval == 0 {
		result.ExtractPollInterval = defaults.ExtractPollInterval
	}
	if result.ExtractPollTimeout == 0 {
		result.ExtractPollTimeout = defaults.ExtractPollTimeout
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if result.MaxConcurrentRuns == 0 {
		result.MaxConcurrentRuns = defaults.MaxConcurrentRuns
	}

	// Bool fields: cannot distinguish unset from false, so an explicit true wins
	result.SchemaStrict = result.SchemaStrict || defaults.SchemaStrict

	return result
}

// describeValidationErrors turns validator errors into one readable line.
func describeValidationErrors(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
