package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

var retryMarkers = []string{
	"unavailable",
	"resource exhausted",
	"resourceexhausted",
	"deadline exceeded",
	"internal error",
	"error 429",
	"error 500",
	"error 502",
	"error 503",
	"error 504",
	"http status 5",
	"connection reset",
	"connection refused",
	"connection closed",
	"broken pipe",
	"tls handshake timeout",
	"eof",
}

// RetryingClient bounds every attempt with a timeout and retries transient
// failures with exponential backoff.
type RetryingClient struct {
	base       Client
	timeout    time.Duration
	maxRetries int
	delay      time.Duration
	logger     *zap.Logger
}

// NewRetryingClient wraps base. A zero timeout leaves attempts unbounded.
func NewRetryingClient(base Client, timeout time.Duration, maxRetries int, delay time.Duration, logger *zap.Logger) *RetryingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryingClient{base: base, timeout: timeout, maxRetries: maxRetries, delay: delay, logger: logger}
}

// Generate calls the wrapped client up to 1+maxRetries times.
func (r *RetryingClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := r.delay << (attempt - 1)
			r.logger.Warn("retrying llm call",
				zap.String("model", req.Model),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", wait),
				zap.Error(lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := r.once(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !ShouldRetry(err) {
			break
		}
	}

	var apiErr *APICallError
	if errors.As(lastErr, &apiErr) && !apiErr.Retryable {
		return nil, lastErr
	}
	if ctx.Err() != nil {
		return nil, lastErr
	}
	return nil, &APICallError{
		Model:     req.Model,
		Message:   "retries exhausted",
		Retryable: true,
		Cause:     lastErr,
	}
}

func (r *RetryingClient) once(ctx context.Context, req *Request) (*Response, error) {
	if r.timeout <= 0 {
		return r.base.Generate(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.base.Generate(attemptCtx, req)
}

// Close closes the wrapped client.
func (r *RetryingClient) Close() error {
	return r.base.Close()
}

// ShouldRetry reports whether err looks transient: timeouts, throttling,
// 5xx responses and dropped connections.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APICallError
	if errors.As(err, &apiErr) && !apiErr.Retryable {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range retryMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
