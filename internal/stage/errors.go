package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// ExecutionError is the single error kind a stage surfaces from execute or
// parse. Recoverable marks failures that may succeed on a later attempt, such
// as malformed model output or a backend timeout; nothing retries them
// automatically.
type ExecutionError struct {
	Stage       types.StageName
	Message     string
	Recoverable bool
	Cause       error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Wrap scopes err to a stage. Errors that already are an ExecutionError are
// returned unchanged.
func Wrap(name types.StageName, message string, err error, recoverable bool) error {
	if err == nil {
		return nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		recoverable = false
	}
	return &ExecutionError{
		Stage:       name,
		Message:     message,
		Recoverable: recoverable,
		Cause:       err,
	}
}

// IsRecoverable reports whether err carries a recoverable ExecutionError.
func IsRecoverable(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Recoverable
}

// FailedStage returns the name of the stage an error came from, if any.
func FailedStage(err error) (types.StageName, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Stage, true
	}
	return "", false
}
