// Package server provides the HTTP API for resume optimization.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Field       string `json:"field,omitempty"`
	Stage       string `json:"stage,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// HTTPStatus returns the HTTP status code for an error:
// validation failures are 400, unknown sessions 404, invalid session
// transitions 409 and unreadable job postings 422. Stage failures are 502
// when recoverable; a run that ran out of time is 504 and anything else 500.
func HTTPStatus(err error) int {
	var (
		validationErr *types.ValidationError
		execErr       *stage.ExecutionError
		fetchErr      *fetch.Error
		transitionErr *db.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &transitionErr):
		return http.StatusConflict
	case errors.As(err, &fetchErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &execErr) && execErr.Recoverable:
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody describes err for a client. Internal errors that are not stage
// failures are not echoed back.
func errorBody(err error) ErrorResponse {
	var (
		validationErr *types.ValidationError
		execErr       *stage.ExecutionError
	)
	switch {
	case errors.As(err, &validationErr):
		return ErrorResponse{Error: validationErr.Message, Field: validationErr.Field}
	case errors.As(err, &execErr):
		return ErrorResponse{Error: execErr.Error(), Stage: execErr.Stage.String(), Recoverable: execErr.Recoverable}
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return ErrorResponse{Error: "internal server error"}
	}
	return ErrorResponse{Error: err.Error()}
}
