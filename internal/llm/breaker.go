package llm

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerClient stops calling the provider after a run of failures and lets
// a probe through once the breaker timeout elapses.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[*Response]
}

// NewBreakerClient wraps next. A disabled config returns next unchanged.
func NewBreakerClient(next Client, cfg BreakerConfig, logger *zap.Logger) Client {
	if !cfg.Enabled {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "llm-generate",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerClient{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*Response](settings),
	}
}

// Generate runs the call through the breaker.
func (b *BreakerClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := b.cb.Execute(func() (*Response, error) {
		return b.next.Generate(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &APICallError{Model: req.Model, Message: "circuit breaker open", Retryable: true, Cause: err}
	}
	return resp, err
}

// State returns the breaker state name.
func (b *BreakerClient) State() string {
	return b.cb.State().String()
}

// Close closes the wrapped client.
func (b *BreakerClient) Close() error {
	return b.next.Close()
}
