package pipeline

import "github.com/jonathan/resume-optimizer/internal/types"

// StageDone marks the end of a run.
const StageDone types.StageName = "done"

// stageStart is the state before any stage has run.
const stageStart types.StageName = ""

// Next is the transition function of the run. The only conditional edge is
// after the ATS scorer, where Route picks between another rewrite and the
// gap analyzer.
func Next(current types.StageName, state *types.PipelineState) types.StageName {
	switch current {
	case stageStart:
		return types.StageJDAnalyzer
	case types.StageJDAnalyzer:
		return types.StageResumeRetriever
	case types.StageResumeRetriever:
		return types.StageResumeRewriter
	case types.StageResumeRewriter:
		return types.StageATSScorer
	case types.StageATSScorer:
		if Route(state) == RouteRetry {
			return types.StageResumeRewriter
		}
		return types.StageGapAnalyzer
	case types.StageGapAnalyzer:
		return types.StageResultAggregator
	default:
		return StageDone
	}
}

// requiredStages are the stages a Pipeline must be given runners for. The
// aggregator is built in.
var requiredStages = []types.StageName{
	types.StageJDAnalyzer,
	types.StageResumeRetriever,
	types.StageResumeRewriter,
	types.StageATSScorer,
	types.StageGapAnalyzer,
}
