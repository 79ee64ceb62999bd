package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/server/middleware"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// OptimizeRequest is the body of POST /optimize and POST /optimize/stream.
// Either jd_text or jd_url must be given; jd_text wins when both are.
type OptimizeRequest struct {
	ResumeID           string                `json:"resume_id,omitempty"`
	JDText             string                `json:"jd_text,omitempty" validate:"required_without=JDURL"`
	JDURL              string                `json:"jd_url,omitempty" validate:"omitempty,url"`
	ResumeSections     []types.ResumeSection `json:"resume_sections" validate:"dive"`
	ScoreThreshold     *float64              `json:"score_threshold,omitempty"`
	MaxRewriteAttempts *int                  `json:"max_rewrite_attempts,omitempty"`
}

// OptimizeResponse is the body of a successful POST /optimize.
type OptimizeResponse struct {
	SessionID string             `json:"session_id"`
	Status    db.SessionStatus   `json:"status"`
	Result    *types.FinalResult `json:"result"`
}

// IndexRequest is the body of POST /resumes/{id}/index.
type IndexRequest struct {
	Sections []types.ResumeSection `json:"sections" validate:"required,min=1,dive"`
}

// IndexResponse reports how many chunks were stored.
type IndexResponse struct {
	ResumeID string `json:"resume_id"`
	Chunks   int    `json:"chunks"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())

	var req OptimizeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	result, sessionID, err := s.optimize(r.Context(), principal, req)
	if err != nil {
		status := HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("optimization failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		body := errorBody(err)
		body.SessionID = sessionID
		s.jsonResponse(w, status, body)
		return
	}

	s.jsonResponse(w, http.StatusOK, OptimizeResponse{
		SessionID: sessionID,
		Status:    db.SessionCompleted,
		Result:    result,
	})
}

func (s *Server) handleOptimizeStream(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())

	var req OptimizeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.jsonResponse(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	// Progress callbacks run on this goroutine, so writes never interleave.
	ctx := pipeline.ContextWithProgress(r.Context(), func(e pipeline.ProgressEvent) {
		if err := sse.WriteEvent(EventProgress, e); err != nil {
			s.logger.Debug("dropping progress event", zap.Error(err))
		}
	})

	result, sessionID, err := s.optimize(ctx, principal, req)
	if err != nil {
		body := errorBody(err)
		body.SessionID = sessionID
		sse.WriteError(body)
		sse.WriteComplete(sessionID, string(db.SessionFailed))
		return
	}
	_ = sse.WriteEvent(EventResult, result)
	sse.WriteComplete(sessionID, string(db.SessionCompleted))
}

// optimize resolves the job description, records the session and runs the
// pipeline. The returned session id is set whenever a session was created.
func (s *Server) optimize(ctx context.Context, principal middleware.Principal, req OptimizeRequest) (*types.FinalResult, string, error) {
	jdText := req.JDText
	if jdText == "" {
		if s.deps.Fetcher == nil {
			return nil, "", &types.ValidationError{Field: "jd_url", Message: "fetching job postings is not enabled"}
		}
		posting, err := s.deps.Fetcher.JobDescription(ctx, req.JDURL)
		if err != nil {
			return nil, "", err
		}
		jdText = posting.Text
	}

	in := types.Input{
		TenantID:           principal.TenantID,
		UserID:             principal.UserID,
		ResumeID:           req.ResumeID,
		JDText:             jdText,
		ResumeSections:     req.ResumeSections,
		ScoreThreshold:     req.ScoreThreshold,
		MaxRewriteAttempts: req.MaxRewriteAttempts,
	}

	id := uuid.New()
	if s.deps.Sessions != nil {
		var err error
		id, err = s.deps.Sessions.CreateSession(ctx, db.SessionInput{
			TenantID: principal.TenantID,
			UserID:   principal.UserID,
			ResumeID: req.ResumeID,
			JDText:   jdText,
			Input:    req,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create session: %w", err)
		}
		if err := s.deps.Sessions.MarkProcessing(ctx, principal.TenantID, id); err != nil {
			return nil, id.String(), fmt.Errorf("failed to start session: %w", err)
		}
	}
	in.SessionID = id.String()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, runErr := s.deps.Optimizer.Run(runCtx, in)

	if s.deps.Sessions != nil {
		// The outcome is recorded even when the client has gone away.
		persistCtx := context.WithoutCancel(ctx)
		if runErr != nil {
			failedStage, _ := stage.FailedStage(runErr)
			if err := s.deps.Sessions.FailSession(persistCtx, principal.TenantID, id, failedStage.String(), runErr.Error()); err != nil {
				s.logger.Error("failed to record session failure", zap.String("session_id", in.SessionID), zap.Error(err))
			}
		} else if err := s.deps.Sessions.CompleteSession(persistCtx, principal.TenantID, id, result); err != nil {
			return nil, in.SessionID, fmt.Errorf("failed to store result: %w", err)
		}
	}
	return result, in.SessionID, runErr
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		s.unavailable(w, "session storage")
		return
	}
	principal, _ := middleware.PrincipalFrom(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, &types.ValidationError{Field: "id", Message: "invalid session id"})
		return
	}

	session, err := s.deps.Sessions.GetSession(r.Context(), principal.TenantID, id)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, session)
}

func (s *Server) handleIndexResume(w http.ResponseWriter, r *http.Request) {
	if s.deps.Indexer == nil {
		s.unavailable(w, "resume indexing")
		return
	}
	principal, _ := middleware.PrincipalFrom(r.Context())
	resumeID := r.PathValue("id")

	var req IndexRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	n, err := s.deps.Indexer.IndexResume(r.Context(), principal.TenantID, resumeID, req.Sections)
	if err != nil {
		s.errorResponse(w, fmt.Errorf("failed to index resume %s: %w", resumeID, err))
		return
	}
	s.jsonResponse(w, http.StatusOK, IndexResponse{ResumeID: resumeID, Chunks: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &types.ValidationError{Field: "body", Message: "request body too large"}
		}
		return &types.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return types.ValidateStruct(s.validate, v)
}
