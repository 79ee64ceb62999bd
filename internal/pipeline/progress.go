package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/resume-optimizer/internal/types"
)

// Progress statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent reports a stage transition during a run.
type ProgressEvent struct {
	SessionID string          `json:"session_id"`
	Stage     types.StageName `json:"stage"`
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Attempt   int             `json:"attempt,omitempty"`
}

// ProgressCallback is called synchronously for every event.
type ProgressCallback func(event ProgressEvent)

type progressKey struct{}

// ContextWithProgress attaches a callback that receives the events of runs
// started with the returned context, in addition to any WithProgress callback.
func ContextWithProgress(ctx context.Context, cb ProgressCallback) context.Context {
	return context.WithValue(ctx, progressKey{}, cb)
}

func progressFrom(ctx context.Context) ProgressCallback {
	cb, _ := ctx.Value(progressKey{}).(ProgressCallback)
	return cb
}

// Recorder receives per-stage and per-run measurements.
type Recorder interface {
	ObserveStage(name types.StageName, elapsed time.Duration, tokens int, err error)
	ObserveRun(result *types.FinalResult, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(types.StageName, time.Duration, int, error) {}
func (nopRecorder) ObserveRun(*types.FinalResult, time.Duration, error) {}

// attemptFor is the rewrite attempt a stage event belongs to, or 0 outside
// the rewrite loop.
func attemptFor(name types.StageName, status string, state *types.PipelineState) int {
	switch name {
	case types.StageResumeRewriter:
		if status == StatusCompleted {
			return state.RewriteAttempts
		}
		return state.RewriteAttempts + 1
	case types.StageATSScorer:
		return state.RewriteAttempts
	default:
		return 0
	}
}

// summarize describes what a completed stage added to the state.
func summarize(name types.StageName, state *types.PipelineState) string {
	switch name {
	case types.StageJDAnalyzer:
		if jd := state.JDAnalysis; jd != nil {
			return fmt.Sprintf("extracted %d hard skills and %d keywords", len(jd.HardSkills), len(jd.KeywordWeights))
		}
	case types.StageResumeRetriever:
		return fmt.Sprintf("retrieved %d relevant chunks", len(state.RelevantChunks))
	case types.StageResumeRewriter:
		bullets := 0
		for _, b := range state.OptimizedSections {
			bullets += len(b)
		}
		return fmt.Sprintf("rewrote %d bullets across %d sections", bullets, len(state.OptimizedSections))
	case types.StageATSScorer:
		return fmt.Sprintf("ats score %.2f against threshold %.2f", state.Score(), state.Threshold())
	case types.StageGapAnalyzer:
		if g := state.GapReport; g != nil {
			return fmt.Sprintf("found %d missing skills", len(g.MissingSkills))
		}
	case types.StageResultAggregator:
		if state.TotalTokensUsed != nil {
			return fmt.Sprintf("used %d tokens in total", *state.TotalTokensUsed)
		}
	}
	return ""
}
