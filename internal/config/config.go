// Package config provides configuration loading and validation for the CLI
// and HTTP server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/resume-optimizer/internal/llm"
)

// Config is the file-level configuration. Fields absent from the JSON file
// keep the values from Default; CLI flags and environment variables are
// merged on top by the caller.
type Config struct {
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	Verbose     bool   `json:"verbose,omitempty"`      // Print the result breakdown and debug logs
	LogJSON     bool   `json:"log_json,omitempty"`     // Emit structured JSON logs
	UseBrowser  bool   `json:"use_browser,omitempty"`  // Fetch job URLs with a headless browser

	LLM      LLMSettings      `json:"llm"`
	Pipeline PipelineSettings `json:"pipeline"`
	Server   ServerSettings   `json:"server"`
}

// LLMSettings configures the generative and embedding backends.
type LLMSettings struct {
	Models         map[string]string `json:"models,omitempty"` // tier -> model id
	EmbeddingModel string            `json:"embedding_model,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	MaxRetries     int               `json:"max_retries"`
	RetryDelayMS   int               `json:"retry_delay_ms,omitempty"`
	Breaker        BreakerSettings   `json:"breaker"`
}

// BreakerSettings configures the circuit breaker around the model client.
type BreakerSettings struct {
	Enabled          bool    `json:"enabled"`
	MaxRequests      uint32  `json:"max_requests,omitempty"`
	IntervalSeconds  int     `json:"interval_seconds,omitempty"`
	TimeoutSeconds   int     `json:"timeout_seconds,omitempty"`
	MinRequests      uint32  `json:"min_requests,omitempty"`
	FailureThreshold float64 `json:"failure_threshold,omitempty"`
}

// PipelineSettings configures the optimization stages. Model fields accept a
// tier name (lite, standard, advanced) or a literal model id.
type PipelineSettings struct {
	ScoreThreshold     float64 `json:"score_threshold"`
	MaxRewriteAttempts int     `json:"max_rewrite_attempts"`

	AnalyzerModel string `json:"analyzer_model,omitempty"`
	RewriterModel string `json:"rewriter_model,omitempty"`
	ScorerModel   string `json:"scorer_model,omitempty"`
	GapModel      string `json:"gap_model,omitempty"`

	RewriterTemperature float32 `json:"rewriter_temperature"`
	GapTemperature      float32 `json:"gap_temperature"`

	RetrieverTopK            int     `json:"retriever_top_k,omitempty"`
	RetrieverTimeoutSeconds  int     `json:"retriever_timeout_seconds,omitempty"`
	RelevanceThreshold       float64 `json:"relevance_threshold"`
	RewriteTopK              int     `json:"rewrite_top_k,omitempty"`
	ChunkCharBudget          int     `json:"chunk_char_budget,omitempty"`
	ScoreConfidenceThreshold float64 `json:"score_confidence_threshold"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr                  string   `json:"addr,omitempty"`
	AllowedOrigins        []string `json:"allowed_origins,omitempty"`
	RateLimitRPS          float64  `json:"rate_limit_rps,omitempty"`
	RateLimitBurst        int      `json:"rate_limit_burst,omitempty"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LLM: LLMSettings{
			Models: map[string]string{
				string(llm.TierLite):     llm.DefaultModelLite,
				string(llm.TierStandard): llm.DefaultModelStandard,
				string(llm.TierAdvanced): llm.DefaultModelAdvanced,
			},
			EmbeddingModel: llm.DefaultEmbeddingModel,
			TimeoutSeconds: 30,
			MaxRetries:     2,
			RetryDelayMS:   300,
			Breaker: BreakerSettings{
				Enabled:          true,
				MaxRequests:      1,
				IntervalSeconds:  60,
				TimeoutSeconds:   30,
				MinRequests:      5,
				FailureThreshold: 0.6,
			},
		},
		Pipeline: PipelineSettings{
			ScoreThreshold:           0.75,
			MaxRewriteAttempts:       2,
			AnalyzerModel:            string(llm.TierLite),
			RewriterModel:            string(llm.TierStandard),
			ScorerModel:              string(llm.TierLite),
			GapModel:                 string(llm.TierStandard),
			RewriterTemperature:      0.4,
			GapTemperature:           0.2,
			RetrieverTopK:            10,
			RetrieverTimeoutSeconds:  30,
			RelevanceThreshold:       0.3,
			RewriteTopK:              8,
			ChunkCharBudget:          600,
			ScoreConfidenceThreshold: 0.7,
		},
		Server: ServerSettings{
			Addr:                  ":8080",
			AllowedOrigins:        []string{"*"},
			RateLimitRPS:          2,
			RateLimitBurst:        5,
			RequestTimeoutSeconds: 120,
		},
	}
}

// LoadConfig loads configuration from a JSON file on top of Default.
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

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields like the API key since those
// can still arrive from flags or the environment.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		return fmt.Errorf("config error: 'pipeline.score_threshold' must be in [0,1]")
	}
	if p.MaxRewriteAttempts < 0 {
		return fmt.Errorf("config error: 'pipeline.max_rewrite_attempts' must be non-negative")
	}
	if p.RelevanceThreshold < 0 || p.RelevanceThreshold > 1 {
		return fmt.Errorf("config error: 'pipeline.relevance_threshold' must be in [0,1]")
	}
	if p.ScoreConfidenceThreshold < 0 || p.ScoreConfidenceThreshold > 1 {
		return fmt.Errorf("config error: 'pipeline.score_confidence_threshold' must be in [0,1]")
	}
	if p.RetrieverTopK < 0 || p.RetrieverTimeoutSeconds < 0 || p.RewriteTopK < 0 || p.ChunkCharBudget < 0 {
		return fmt.Errorf("config error: pipeline limits must be non-negative")
	}
	if p.RewriterTemperature < 0 || p.GapTemperature < 0 {
		return fmt.Errorf("config error: temperatures must be non-negative")
	}

	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("config error: 'llm.max_retries' must be non-negative")
	}
	if c.LLM.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'llm.timeout_seconds' must be non-negative")
	}
	if t := c.LLM.Breaker.FailureThreshold; t < 0 || t > 1 {
		return fmt.Errorf("config error: 'llm.breaker.failure_threshold' must be in [0,1]")
	}

	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("config error: server rate limits must be non-negative")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty string fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Server.Addr == "" {
		result.Server.Addr = defaults.Server.Addr
	}
	if result.LLM.EmbeddingModel == "" {
		result.LLM.EmbeddingModel = defaults.LLM.EmbeddingModel
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// LLMConfig converts the settings into a client configuration.
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	for tier, model := range c.LLM.Models {
		if model != "" {
			cfg = cfg.WithModel(llm.ModelTier(tier), model)
		}
	}
	if c.LLM.EmbeddingModel != "" {
		cfg.EmbeddingModel = c.LLM.EmbeddingModel
	}
	if c.LLM.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.LLM.TimeoutSeconds) * time.Second
	}
	cfg.MaxRetries = c.LLM.MaxRetries
	if c.LLM.RetryDelayMS > 0 {
		cfg.RetryDelay = time.Duration(c.LLM.RetryDelayMS) * time.Millisecond
	}

	b := c.LLM.Breaker
	cfg.Breaker = llm.BreakerConfig{
		Enabled:          b.Enabled,
		MaxRequests:      b.MaxRequests,
		Interval:         time.Duration(b.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(b.TimeoutSeconds) * time.Second,
		MinRequests:      b.MinRequests,
		FailureThreshold: b.FailureThreshold,
	}
	return cfg
}
