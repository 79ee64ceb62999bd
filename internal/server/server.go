package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/server/ratelimit"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

// Optimizer runs the optimization pipeline for one input.
type Optimizer interface {
	Run(ctx context.Context, in types.Input) (*types.FinalResult, error)
}

// SessionStore persists optimization sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, in db.SessionInput) (uuid.UUID, error)
	MarkProcessing(ctx context.Context, tenantID string, id uuid.UUID) error
	CompleteSession(ctx context.Context, tenantID string, id uuid.UUID, result any) error
	FailSession(ctx context.Context, tenantID string, id uuid.UUID, stage, message string) error
	GetSession(ctx context.Context, tenantID string, id uuid.UUID) (*db.Session, error)
}

// ResumeIndexer embeds and stores resume sections for retrieval.
type ResumeIndexer interface {
	IndexResume(ctx context.Context, tenantID, resumeID string, sections []types.ResumeSection) (int, error)
}

// JobFetcher downloads a job posting's description.
type JobFetcher interface {
	JobDescription(ctx context.Context, url string) (*fetch.Result, error)
}

// Deps are the collaborators a Server dispatches to. Optimizer and Auth are
// required; endpoints backed by a nil dependency answer 503.
type Deps struct {
	Optimizer Optimizer
	Auth      middleware.TokenValidator
	Sessions  SessionStore
	Indexer   ResumeIndexer
	Fetcher   JobFetcher
	Metrics   http.Handler
	// Health reports backend reachability for GET /health.
	Health func(ctx context.Context) error
}

// Server is the HTTP API.
type Server struct {
	httpServer *http.Server
	deps       Deps
	settings   config.ServerSettings
	logger     *zap.Logger
	limiter    *ratelimit.Limiter
	validate   *validator.Validate
	timeout    time.Duration
}

// New builds a Server and its routes.
func New(settings config.ServerSettings, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Optimizer == nil {
		return nil, fmt.Errorf("server requires an optimizer")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("server requires a token validator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		deps:     deps,
		settings: settings,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.ApplyEnv(ratelimit.NewConfig(settings.RateLimitRPS, settings.RateLimitBurst))),
		validate: types.NewValidator(),
		timeout:  time.Duration(settings.RequestTimeoutSeconds) * time.Second,
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}

	auth := middleware.AuthMiddleware(deps.Auth)
	mux := http.NewServeMux()
	mux.Handle("POST /optimize", auth(http.HandlerFunc(s.handleOptimize)))
	mux.Handle("POST /optimize/stream", auth(http.HandlerFunc(s.handleOptimizeStream)))
	mux.Handle("GET /sessions/{id}", auth(http.HandlerFunc(s.handleGetSession)))
	mux.Handle("POST /resumes/{id}/index", auth(http.HandlerFunc(s.handleIndexResume)))
	mux.HandleFunc("GET /health", s.handleHealth)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              settings.Addr,
		Handler:           s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.timeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS answers preflight requests and sets CORS headers for allowed
// origins.
func (s *Server) withCORS(next http.Handler) http.Handler {
	wildcard := slices.Contains(s.settings.AllowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case wildcard:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.settings.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients that exceed their bucket with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.limiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		}
		if !allowed {
			retry := int(info.RetryAfter.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.logger.Info("rate limit exceeded",
				zap.String("client", clientID(r)),
				zap.String("path", r.URL.Path))
			s.jsonResponse(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging logs every request with its status and duration.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}

// statusRecorder captures the response status. It forwards Flush so event
// streams keep working behind the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// clientID is the remote IP of the request.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// errorResponse writes err with the status HTTPStatus assigns it.
func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.jsonResponse(w, status, errorBody(err))
}

func (s *Server) unavailable(w http.ResponseWriter, what string) {
	s.jsonResponse(w, http.StatusServiceUnavailable, ErrorResponse{Error: what + " is not configured"})
}
