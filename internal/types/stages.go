package types

// StageName identifies one unit of pipeline work. The names double as keys of
// PipelineState.TokenUsage.
type StageName string

const (
	StageJDAnalyzer       StageName = "jd_analyzer"
	StageResumeRetriever  StageName = "resume_retriever"
	StageResumeRewriter   StageName = "resume_rewriter"
	StageATSScorer        StageName = "ats_scorer"
	StageGapAnalyzer      StageName = "gap_analyzer"
	StageResultAggregator StageName = "result_aggregator"
)

// String returns the stage name.
func (s StageName) String() string {
	return string(s)
}
