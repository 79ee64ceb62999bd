package pipeline

import "github.com/jonathan/resume-optimizer/internal/types"

// Route names returned by the score router.
const (
	RouteRetry   = "retry_rewrite"
	RouteProceed = "proceed"
)

// Route decides what follows a score. A score at or above the threshold
// proceeds, a low score retries while rewrite attempts remain, and an
// exhausted budget proceeds anyway. Unset fields take their defaults.
func Route(state *types.PipelineState) string {
	if state == nil {
		state = &types.PipelineState{}
	}
	if state.Score() >= state.Threshold() {
		return RouteProceed
	}
	if state.RewriteAttempts < state.MaxAttempts() {
		return RouteRetry
	}
	return RouteProceed
}
