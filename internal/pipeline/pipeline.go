// Package pipeline drives one resume optimization run through its stages.
//
// The run is a small state machine: JD analysis, retrieval, then a bounded
// rewrite and score loop, gap analysis and aggregation. Stages execute one at
// a time against a single state value; separate runs share nothing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resume-optimizer/internal/logger"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

// Pipeline runs the optimization stages for one input at a time. It is safe
// for concurrent use by independent runs.
type Pipeline struct {
	stages   map[types.StageName]stage.Runner
	logger   *zap.Logger
	progress ProgressCallback
	recorder Recorder
	validate *validator.Validate

	scoreThreshold     *float64
	maxRewriteAttempts *int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProgress registers a callback for stage events.
func WithProgress(cb ProgressCallback) Option {
	return func(p *Pipeline) { p.progress = cb }
}

// WithRecorder sets where stage and run measurements go.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithDefaults overrides the control defaults used when an input omits them.
func WithDefaults(scoreThreshold float64, maxRewriteAttempts int) Option {
	return func(p *Pipeline) {
		p.scoreThreshold = &scoreThreshold
		p.maxRewriteAttempts = &maxRewriteAttempts
	}
}

// New builds a Pipeline from one runner per stage.
func New(runners []stage.Runner, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		stages:   make(map[types.StageName]stage.Runner, len(runners)),
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		validate: types.NewValidator(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, r := range runners {
		name := r.Name()
		if _, dup := p.stages[name]; dup {
			return nil, fmt.Errorf("duplicate runner for stage %s", name)
		}
		p.stages[name] = r
	}
	for _, name := range requiredStages {
		if _, ok := p.stages[name]; !ok {
			return nil, fmt.Errorf("no runner for stage %s", name)
		}
	}
	return p, nil
}

// Run executes every stage for in and returns the aggregated result. The
// first stage failure aborts the run and is returned as is: a
// *types.ValidationError for bad input, otherwise a *stage.ExecutionError
// naming the stage.
func (p *Pipeline) Run(ctx context.Context, in types.Input) (*types.FinalResult, error) {
	start := time.Now()
	result, err := p.run(ctx, in)
	p.recorder.ObserveRun(result, time.Since(start), err)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, in types.Input) (*types.FinalResult, error) {
	if err := types.ValidateStruct(p.validate, in); err != nil {
		return nil, err
	}
	if in.ScoreThreshold == nil {
		in.ScoreThreshold = p.scoreThreshold
	}
	if in.MaxRewriteAttempts == nil {
		in.MaxRewriteAttempts = p.maxRewriteAttempts
	}

	state := types.NewPipelineState(in)
	log := logger.WithSession(p.logger, state.TenantID, state.UserID, state.SessionID)
	log.Info("pipeline started",
		zap.Float64("score_threshold", state.Threshold()),
		zap.Int("max_rewrite_attempts", state.MaxAttempts()))
	log.Debug("job description", zap.String("jd_preview", logger.TruncateForLog(state.JDText, 120)))

	for current := Next(stageStart, state); current != StageDone; current = Next(current, state) {
		if err := ctx.Err(); err != nil {
			log.Warn("pipeline canceled", zap.String("next_stage", current.String()))
			return nil, stage.Wrap(current, "pipeline canceled", err, false)
		}

		if current == types.StageResultAggregator {
			return p.aggregate(ctx, state, log)
		}
		if err := p.runStage(ctx, current, state, log); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("pipeline finished without aggregating")
}

func (p *Pipeline) runStage(ctx context.Context, name types.StageName, state *types.PipelineState, log *zap.Logger) error {
	p.emit(ctx, state, name, StatusStarted, "")

	started := time.Now()
	update, err := p.stages[name].Run(ctx, state)
	if err == nil {
		if err = state.Apply(normalizeUpdate(name, update)); err != nil {
			err = stage.Wrap(name, "state update rejected", err, false)
		}
	}

	tokens := 0
	if update != nil && update.Tokens != nil {
		tokens = *update.Tokens
	}
	p.recorder.ObserveStage(name, time.Since(started), tokens, err)

	if err != nil {
		state.Errors = append(state.Errors, err.Error())
		log.Error("stage failed",
			zap.String("stage", name.String()),
			zap.Bool("recoverable", stage.IsRecoverable(err)),
			zap.Error(err))
		p.emit(ctx, state, name, StatusFailed, err.Error())
		return err
	}

	log.Info("stage completed",
		zap.String("stage", name.String()),
		zap.Int("tokens", tokens),
		zap.Int("rewrite_attempts", state.RewriteAttempts),
		zap.Duration("elapsed", time.Since(started)))
	p.emit(ctx, state, name, StatusCompleted, summarize(name, state))
	return nil
}

func (p *Pipeline) aggregate(ctx context.Context, state *types.PipelineState, log *zap.Logger) (*types.FinalResult, error) {
	name := types.StageResultAggregator
	p.emit(ctx, state, name, StatusStarted, "")

	result := Aggregate(state)
	total := result.TotalTokensUsed
	if err := state.Apply(&types.StateUpdate{Stage: name, TotalTokensUsed: &total}); err != nil {
		return nil, stage.Wrap(name, "state update rejected", err, false)
	}

	log.Info("pipeline completed",
		zap.Float64("ats_score", result.ATSScore),
		zap.Int("rewrite_attempts", result.RewriteAttempts),
		zap.Int("total_tokens_used", result.TotalTokensUsed))
	p.emit(ctx, state, name, StatusCompleted, summarize(name, state))
	return result, nil
}

func (p *Pipeline) emit(ctx context.Context, state *types.PipelineState, name types.StageName, status, message string) {
	perRun := progressFrom(ctx)
	if p.progress == nil && perRun == nil {
		return
	}
	event := ProgressEvent{
		SessionID: state.SessionID,
		Stage:     name,
		Status:    status,
		Message:   message,
		Attempt:   attemptFor(name, status, state),
	}
	if p.progress != nil {
		p.progress(event)
	}
	if perRun != nil {
		perRun(event)
	}
}

// normalizeUpdate stamps the stage on updates from runners that leave it
// blank, so ownership is checked against the stage that actually ran.
func normalizeUpdate(name types.StageName, u *types.StateUpdate) *types.StateUpdate {
	if u == nil {
		return &types.StateUpdate{Stage: name}
	}
	if u.Stage == "" {
		u.Stage = name
	}
	return u
}
