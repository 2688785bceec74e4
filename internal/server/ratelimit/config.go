package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultLimit applies per minute to endpoints without their own configuration.
const DefaultLimit = 600

// Defaults for the pipeline endpoints.
const (
	defaultProcessLimit  = 30
	defaultProcessWindow = time.Hour
	defaultProcessBurst  = 5
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
	Bucket string        // Endpoints naming the same bucket share one per-client allowance
}

// processBucket groups the endpoints that each start a full pipeline run.
const processBucket = "process"

// processEndpoints returns the limits for every endpoint that runs the pipeline. Each
// call runs two remote jobs, so they share one bucket.
func processEndpoints(limit int, window time.Duration, burst int) []EndpointConfig {
	var configs []EndpointConfig
	for _, path := range []string{"/api/process", "/api/process/stream"} {
		configs = append(configs, EndpointConfig{
			Path: path, Method: "POST", Limit: limit, Window: window, Burst: burst, Bucket: processBucket,
		})
	}
	return configs
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", DefaultLimit),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: processEndpoints(
			getEnvInt("RATE_LIMIT_PROCESS_LIMIT", defaultProcessLimit),
			getEnvDuration("RATE_LIMIT_PROCESS_WINDOW", defaultProcessWindow),
			getEnvInt("RATE_LIMIT_PROCESS_BURST", defaultProcessBurst),
		),
	}
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
