package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateSession stores a pending session and returns its ID.
func (db *DB) CreateSession(ctx context.Context, in SessionInput) (uuid.UUID, error) {
	inputJSON, err := json.Marshal(in.Input)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal session input: %w", err)
	}

	var resumeID *string
	if in.ResumeID != "" {
		resumeID = &in.ResumeID
	}

	var id uuid.UUID
	err = db.pool.QueryRow(ctx,
		`INSERT INTO optimization_sessions (tenant_id, user_id, resume_id, status, jd_text, input)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		in.TenantID, in.UserID, resumeID, SessionPending, in.JDText, inputJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// MarkProcessing moves a pending session to processing.
func (db *DB) MarkProcessing(ctx context.Context, tenantID string, id uuid.UUID) error {
	return db.transition(ctx, tenantID, id, SessionProcessing,
		`UPDATE optimization_sessions SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND tenant_id = $3 AND status = ANY($4)`)
}

// CompleteSession stores the result and marks the session completed.
func (db *DB) CompleteSession(ctx context.Context, tenantID string, id uuid.UUID, result any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal session result: %w", err)
	}
	return db.transition(ctx, tenantID, id, SessionCompleted,
		`UPDATE optimization_sessions SET status = $1, result = $5, updated_at = NOW(), completed_at = NOW()
		 WHERE id = $2 AND tenant_id = $3 AND status = ANY($4)`,
		resultJSON)
}

// FailSession records the failure and marks the session failed. stage may be
// empty when the failure did not come from a pipeline stage.
func (db *DB) FailSession(ctx context.Context, tenantID string, id uuid.UUID, stage, message string) error {
	var failedStage *string
	if stage != "" {
		failedStage = &stage
	}
	return db.transition(ctx, tenantID, id, SessionFailed,
		`UPDATE optimization_sessions SET status = $1, error_message = $5, failed_stage = $6,
		        updated_at = NOW(), completed_at = NOW()
		 WHERE id = $2 AND tenant_id = $3 AND status = ANY($4)`,
		message, failedStage)
}

// transition runs an update guarded by the allowed source statuses of next.
// When nothing is updated it tells a missing session from a forbidden move.
func (db *DB) transition(ctx context.Context, tenantID string, id uuid.UUID, next SessionStatus, query string, extra ...any) error {
	args := append([]any{next, id, tenantID, sourcesOf(next)}, extra...)
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to mark session %s %s: %w", id, next, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current SessionStatus
	err = db.pool.QueryRow(ctx,
		`SELECT status FROM optimization_sessions WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read session %s: %w", id, err)
	}
	return &InvalidTransitionError{From: current, To: next}
}

// GetSession returns a session owned by tenantID.
func (db *DB) GetSession(ctx context.Context, tenantID string, id uuid.UUID) (*Session, error) {
	var s Session
	err := db.pool.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, resume_id, status, jd_text, input, result,
		        error_message, failed_stage, created_at, updated_at, completed_at
		 FROM optimization_sessions
		 WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	).Scan(&s.ID, &s.TenantID, &s.UserID, &s.ResumeID, &s.Status, &s.JDText, &s.Input, &s.Result,
		&s.ErrorMessage, &s.FailedStage, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return &s, nil
}
