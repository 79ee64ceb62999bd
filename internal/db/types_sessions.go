package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of an optimization session.
type SessionStatus string

// Session statuses. A session moves pending -> processing -> completed or
// failed; a pending session may also fail before processing starts.
const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionPending:    {SessionProcessing, SessionFailed},
	SessionProcessing: {SessionCompleted, SessionFailed},
}

// CanTransition reports whether a session may move from s to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// sourcesOf lists the statuses from which next is reachable.
func sourcesOf(next SessionStatus) []string {
	var from []string
	for _, s := range []SessionStatus{SessionPending, SessionProcessing, SessionCompleted, SessionFailed} {
		if s.CanTransition(next) {
			from = append(from, string(s))
		}
	}
	return from
}

// ErrSessionNotFound is returned when no session matches the id and tenant.
var ErrSessionNotFound = errors.New("session not found")

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	From SessionStatus
	To   SessionStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("session already %s, cannot move to %s", e.From, e.To)
	}
	return fmt.Sprintf("invalid session transition from %s to %s", e.From, e.To)
}

// Session is one optimization request and, once finished, its outcome.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     string          `json:"tenant_id"`
	UserID       string          `json:"user_id"`
	ResumeID     *string         `json:"resume_id,omitempty"`
	Status       SessionStatus   `json:"status"`
	JDText       string          `json:"jd_text"`
	Input        json.RawMessage `json:"input,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	FailedStage  *string         `json:"failed_stage,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// SessionInput is what CreateSession stores.
type SessionInput struct {
	TenantID string
	UserID   string
	ResumeID string
	JDText   string
	// Input is the full request, stored as JSON.
	Input any
}
