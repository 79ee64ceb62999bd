package pipeline

import (
	"testing"

	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_EmptyState(t *testing.T) {
	for _, state := range []*types.PipelineState{nil, {}} {
		result := Aggregate(state)
		require.NotNil(t, result)

		assert.Nil(t, result.JDAnalysis)
		assert.Equal(t, 0.0, result.ATSScore)
		assert.Equal(t, types.ScoreBreakdown{}, result.ScoreBreakdown)
		assert.NotNil(t, result.OptimizedSections)
		assert.NotNil(t, result.GapReport.MissingSkills)
		assert.NotNil(t, result.GapReport.Priority)
		assert.NotNil(t, result.TokenUsage)
		assert.NotNil(t, result.Errors)
		assert.Equal(t, 0, result.TotalTokensUsed)
	}
}

func TestAggregate_SumsTokenUsage(t *testing.T) {
	state := &types.PipelineState{
		TokenUsage: map[string]int{
			"jd_analyzer":     120,
			"resume_rewriter": 900,
			"ats_scorer":      0,
			"gap_analyzer":    300,
		},
	}

	result := Aggregate(state)

	assert.Equal(t, 1320, result.TotalTokensUsed)
	assert.Equal(t, state.TokenUsage, result.TokenUsage)
}

func TestAggregate_CopiesState(t *testing.T) {
	score := 0.82
	state := &types.PipelineState{
		SessionID:         "s1",
		TenantID:          "t1",
		UserID:            "u1",
		JDAnalysis:        &types.JDAnalysis{HardSkills: []string{"Go"}, KeywordWeights: map[string]float64{"go": 1}},
		RelevantChunks:    []types.ResumeChunk{{SectionType: "experience", Content: "x", RelevanceScore: 0.9}},
		OptimizedSections: map[string][]string{"experience": {"Built Go services"}},
		RewriteAttempts:   1,
		ATSScore:          &score,
		ScoreBreakdown:    &types.ScoreBreakdown{Keywords: 1, Skills: 0.8, Experience: 0.7, Formatting: 0.5},
		GapReport: &types.GapReport{
			MissingSkills: []string{"Kafka"},
			Priority:      map[string]types.Priority{"Kafka": types.PriorityHigh},
		},
		Errors: []string{"note"},
	}

	result := Aggregate(state)

	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, 0.82, result.ATSScore)
	assert.Equal(t, 1, result.RewriteAttempts)
	assert.Equal(t, 1, result.RelevantChunks)
	assert.Equal(t, []string{"Kafka"}, result.GapReport.MissingSkills)
	assert.Equal(t, []string{}, result.GapReport.Recommendations)

	state.JDAnalysis.HardSkills[0] = "Rust"
	state.JDAnalysis.KeywordWeights["go"] = 0
	state.OptimizedSections["experience"][0] = "changed"
	state.GapReport.Priority["Kafka"] = types.PriorityLow
	state.Errors[0] = "changed"

	assert.Equal(t, "Go", result.JDAnalysis.HardSkills[0])
	assert.Equal(t, 1.0, result.JDAnalysis.KeywordWeights["go"])
	assert.Equal(t, "Built Go services", result.OptimizedSections["experience"][0])
	assert.Equal(t, types.PriorityHigh, result.GapReport.Priority["Kafka"])
	assert.Equal(t, "note", result.Errors[0])
}

func populatedState() *types.PipelineState {
	score := 0.68
	return &types.PipelineState{
		SessionID: "s2",
		TenantID:  "t2",
		UserID:    "u2",
		JDAnalysis: &types.JDAnalysis{
			HardSkills:       []string{"Go", "Postgres"},
			SoftSkills:       []string{"Mentoring"},
			Responsibilities: []string{"Own the ingest service"},
			Qualifications:   []string{"5 years backend"},
			KeywordWeights:   map[string]float64{"go": 1, "postgres": 0.6},
		},
		RelevantChunks: []types.ResumeChunk{
			{SectionType: "experience", Content: "Ran Postgres", RelevanceScore: 0.7},
			{SectionType: "projects", Content: "Go CLI", RelevanceScore: 0.5},
		},
		OptimizedSections: map[string][]string{
			"experience":     {"Ran Postgres clusters for 40 services"},
			"skills_summary": {"Go, Postgres"},
		},
		RewriteAttempts: 2,
		ATSScore:        &score,
		ScoreBreakdown:  &types.ScoreBreakdown{Keywords: 0.7, Skills: 0.6, Experience: 0.8, Formatting: 0.5},
		GapReport: &types.GapReport{
			MissingSkills:      []string{"Kubernetes"},
			Recommendations:    []string{"Mention container work"},
			TransferableSkills: []string{"Docker"},
			Priority:           map[string]types.Priority{"Kubernetes": types.PriorityMedium},
		},
		TokenUsage: map[string]int{"jd_analyzer": 100, "resume_rewriter": 700, "gap_analyzer": 250},
		Errors:     []string{"ats_scorer: recovered"},
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	state := populatedState()

	first := Aggregate(state)
	second := Aggregate(state)

	assert.Equal(t, first, second)
	assert.Equal(t, populatedState(), state)
	assert.Equal(t, 1050, second.TotalTokensUsed)
	assert.Equal(t, 2, second.RelevantChunks)
}
