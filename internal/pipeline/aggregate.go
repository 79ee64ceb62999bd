package pipeline

import "github.com/jonathan/resume-optimizer/internal/types"

// Aggregate assembles the final result from whatever the state holds. Missing
// fields become empty values, and total_tokens_used is the sum of the
// per-stage token usage. The result shares no memory with the state.
func Aggregate(state *types.PipelineState) *types.FinalResult {
	if state == nil {
		state = &types.PipelineState{}
	}

	result := &types.FinalResult{
		SessionID:         state.SessionID,
		TenantID:          state.TenantID,
		UserID:            state.UserID,
		OptimizedSections: make(map[string][]string, len(state.OptimizedSections)),
		ATSScore:          state.Score(),
		RewriteAttempts:   state.RewriteAttempts,
		RelevantChunks:    len(state.RelevantChunks),
		TokenUsage:        make(map[string]int, len(state.TokenUsage)),
		Errors:            append([]string{}, state.Errors...),
		GapReport: types.GapReport{
			MissingSkills:      []string{},
			Recommendations:    []string{},
			TransferableSkills: []string{},
			Priority:           map[string]types.Priority{},
		},
	}

	if jd := state.JDAnalysis; jd != nil {
		copied := &types.JDAnalysis{
			HardSkills:       append([]string{}, jd.HardSkills...),
			SoftSkills:       append([]string{}, jd.SoftSkills...),
			Responsibilities: append([]string{}, jd.Responsibilities...),
			Qualifications:   append([]string{}, jd.Qualifications...),
			KeywordWeights:   make(map[string]float64, len(jd.KeywordWeights)),
		}
		for k, v := range jd.KeywordWeights {
			copied.KeywordWeights[k] = v
		}
		result.JDAnalysis = copied
	}

	for section, bullets := range state.OptimizedSections {
		result.OptimizedSections[section] = append([]string{}, bullets...)
	}
	if state.ScoreBreakdown != nil {
		result.ScoreBreakdown = *state.ScoreBreakdown
	}
	if g := state.GapReport; g != nil {
		result.GapReport.MissingSkills = append(result.GapReport.MissingSkills, g.MissingSkills...)
		result.GapReport.Recommendations = append(result.GapReport.Recommendations, g.Recommendations...)
		result.GapReport.TransferableSkills = append(result.GapReport.TransferableSkills, g.TransferableSkills...)
		for skill, p := range g.Priority {
			result.GapReport.Priority[skill] = p
		}
	}

	for name, tokens := range state.TokenUsage {
		result.TokenUsage[name] = tokens
		result.TotalTokensUsed += tokens
	}
	return result
}
