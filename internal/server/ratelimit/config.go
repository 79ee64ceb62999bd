package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig overrides the default rate for one route.
type EndpointConfig struct {
	Path   string  // Exact path, or a prefix when it ends with "/"
	Method string  // HTTP method
	RPS    float64 // Sustained requests per second; 0 means unlimited
	Burst  int     // Bucket size; defaults to 1
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultRPS      float64
	DefaultBurst    int
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig builds a configuration where the optimization endpoints are
// limited to rps with the given burst and every other endpoint gets a
// lenient default.
func NewConfig(rps float64, burst int) *Config {
	return &Config{
		Enabled:         true,
		DefaultRPS:      20,
		DefaultBurst:    40,
		CleanupInterval: 10 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(rps, burst),
	}
}

// DefaultEndpointConfigs returns the per-route limits. Endpoints that call
// the model share the strict rate; health and metrics are unlimited.
func DefaultEndpointConfigs(rps float64, burst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/optimize", Method: "POST", RPS: rps, Burst: burst},
		{Path: "/optimize/stream", Method: "POST", RPS: rps, Burst: burst},
		{Path: "/resumes/", Method: "POST", RPS: rps, Burst: burst},
		{Path: "/health", Method: "GET"},
		{Path: "/metrics", Method: "GET"},
	}
}

// ApplyEnv overrides cfg from RATE_LIMIT_ENABLED, RATE_LIMIT_WHITELIST,
// RATE_LIMIT_BLACKLIST and RATE_LIMIT_CLEANUP_INTERVAL.
func ApplyEnv(cfg *Config) *Config {
	cfg.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.CleanupInterval = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	for ip := range parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")) {
		cfg.Whitelist[ip] = true
	}
	for ip := range parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")) {
		cfg.Blacklist[ip] = true
	}
	return cfg
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
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
