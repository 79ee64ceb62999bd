package types

// FinalResult is the aggregated output of a completed run.
type FinalResult struct {
	SessionID         string              `json:"session_id"`
	TenantID          string              `json:"tenant_id"`
	UserID            string              `json:"user_id"`
	JDAnalysis        *JDAnalysis         `json:"jd_analysis,omitempty"`
	OptimizedSections map[string][]string `json:"optimized_sections"`
	ATSScore          float64             `json:"ats_score"`
	ScoreBreakdown    ScoreBreakdown      `json:"score_breakdown"`
	GapReport         GapReport           `json:"gap_report"`
	RewriteAttempts   int                 `json:"rewrite_attempts"`
	RelevantChunks    int                 `json:"relevant_chunks"`
	TokenUsage        map[string]int      `json:"token_usage"`
	TotalTokensUsed   int                 `json:"total_tokens_used"`
	Errors            []string            `json:"errors"`
}
