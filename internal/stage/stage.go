// Package stage defines the prepare, execute and parse lifecycle shared by all
// pipeline stages, and the runner that sequences it.
package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

// Stage is one unit of pipeline work. P is the prepared request (a prompt or
// query) and R is the raw output of the external call.
type Stage[P, R any] interface {
	Name() types.StageName
	// Prepare validates upstream state and builds the request. It returns a
	// *types.ValidationError when a required field is missing or malformed.
	Prepare(state *types.PipelineState) (P, error)
	// Execute performs the external call.
	Execute(ctx context.Context, prompt P) (R, error)
	// Parse turns raw output into a partial state update.
	Parse(raw R) (*types.StateUpdate, error)
}

// TokenReporter is implemented by raw outputs that know their token cost.
// Outputs that do not implement it cost zero tokens.
type TokenReporter interface {
	TokenCount() int
}

// Runner is what the orchestrator holds. Stages implement it by calling Run
// on themselves, which erases their type parameters.
type Runner interface {
	Name() types.StageName
	Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error)
}

// Run executes prepare, execute and parse in order. Validation errors from
// prepare are returned as is; every other failure, including a panic, comes
// back as an *ExecutionError naming the stage. The returned update is stamped
// with the stage name and the invocation's token count.
func Run[P, R any](ctx context.Context, s Stage[P, R], state *types.PipelineState, logger *zap.Logger) (update *types.StateUpdate, err error) {
	name := s.Name()
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("stage", name.String()), zap.String("session_id", state.SessionID))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			update = nil
			err = &ExecutionError{Stage: name, Message: fmt.Sprintf("panic: %v", r)}
		}
		if err != nil {
			log.Error("stage failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		}
	}()

	log.Debug("phase started", zap.String("phase", "prepare"))
	prompt, err := s.Prepare(state)
	if err != nil {
		var vErr *types.ValidationError
		if errors.As(err, &vErr) {
			return nil, err
		}
		return nil, Wrap(name, "prepare failed", err, false)
	}

	log.Debug("phase started", zap.String("phase", "execute"))
	raw, err := s.Execute(ctx, prompt)
	if err != nil {
		return nil, Wrap(name, "execute failed", err, true)
	}

	log.Debug("phase started", zap.String("phase", "parse"))
	update, err = s.Parse(raw)
	if err != nil {
		return nil, Wrap(name, "parse failed", err, true)
	}
	if update == nil {
		update = &types.StateUpdate{}
	}

	tokens := 0
	if r, ok := any(raw).(TokenReporter); ok {
		tokens = r.TokenCount()
	}
	update.Stage = name
	update.Tokens = &tokens

	log.Debug("stage completed", zap.Int("tokens", tokens), zap.Duration("elapsed", time.Since(start)))
	return update, nil
}
