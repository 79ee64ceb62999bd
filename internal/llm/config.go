// Package llm provides the generative text and embedding capabilities used by
// the pipeline, with model tiers, retries and a circuit breaker.
package llm

import "time"

// ModelTier names a capability level so stages can ask for "a cheap model"
// without hard-coding a model ID.
type ModelTier string

const (
	// TierLite is for extraction and scoring at zero or low temperature.
	TierLite ModelTier = "lite"
	// TierStandard is for rewriting and gap analysis.
	TierStandard ModelTier = "standard"
	// TierAdvanced is reserved for callers that override a stage with a stronger model.
	TierAdvanced ModelTier = "advanced"
)

// Default model IDs per tier.
const (
	DefaultModelLite      = "gemini-2.5-flash-lite"
	DefaultModelStandard  = "gemini-2.5-flash"
	DefaultModelAdvanced  = "gemini-2.5-pro"
	DefaultEmbeddingModel = "text-embedding-004"
)

// Provider represents an LLM provider.
type Provider string

// ProviderGemini is the only provider wired today.
const ProviderGemini Provider = "gemini"

// Config holds model selection and call policy.
type Config struct {
	Provider       Provider
	Models         map[ModelTier]string
	EmbeddingModel string

	// Timeout bounds a single generate attempt.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries int
	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration

	Breaker BreakerConfig
}

// BreakerConfig tunes the circuit breaker around the generator.
type BreakerConfig struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     DefaultModelLite,
			TierStandard: DefaultModelStandard,
			TierAdvanced: DefaultModelAdvanced,
		},
		EmbeddingModel: DefaultEmbeddingModel,
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		RetryDelay:     300 * time.Millisecond,
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			MinRequests:      5,
			FailureThreshold: 0.6,
		},
	}
}

// GetModel returns the model name for a tier, falling back to the standard
// and then the lite tier.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// ResolveModel accepts either a tier name or a concrete model ID.
func (c *Config) ResolveModel(name string) string {
	switch ModelTier(name) {
	case TierLite, TierStandard, TierAdvanced:
		return c.GetModel(ModelTier(name))
	case "":
		return c.GetModel(TierStandard)
	default:
		return name
	}
}

// WithModel returns a copy of the config with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}
