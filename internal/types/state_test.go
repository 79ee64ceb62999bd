package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestNewPipelineState_Defaults(t *testing.T) {
	s := NewPipelineState(Input{TenantID: "t1", JDText: "jd"})

	assert.Equal(t, DefaultScoreThreshold, s.Threshold())
	assert.Equal(t, DefaultMaxRewriteAttempts, s.MaxAttempts())
	assert.Equal(t, 0, s.RewriteAttempts)
	assert.NotNil(t, s.TokenUsage)
}

func TestNewPipelineState_Overrides(t *testing.T) {
	s := NewPipelineState(Input{ScoreThreshold: floatPtr(0.9), MaxRewriteAttempts: intPtr(4)})

	assert.Equal(t, 0.9, s.Threshold())
	assert.Equal(t, 4, s.MaxAttempts())
}

func TestPipelineState_ZeroValueAccessors(t *testing.T) {
	var s PipelineState
	assert.Equal(t, 0.0, s.Score())
	assert.Equal(t, DefaultScoreThreshold, s.Threshold())
	assert.Equal(t, DefaultMaxRewriteAttempts, s.MaxAttempts())
}

func TestApply_RejectsForeignField(t *testing.T) {
	s := NewPipelineState(Input{})
	err := s.Apply(&StateUpdate{Stage: StageResumeRewriter, ATSScore: floatPtr(0.9)})

	var oErr *OwnershipError
	require.True(t, errors.As(err, &oErr))
	assert.Equal(t, "ats_score", oErr.Field)
	assert.Nil(t, s.ATSScore)
	assert.Equal(t, 0, s.Version)
}

func TestApply_RewriteAttemptsAdvanceByOne(t *testing.T) {
	s := NewPipelineState(Input{})

	require.NoError(t, s.Apply(&StateUpdate{Stage: StageResumeRewriter, RewriteAttempts: intPtr(1)}))
	assert.Equal(t, 1, s.RewriteAttempts)

	err := s.Apply(&StateUpdate{Stage: StageResumeRewriter, RewriteAttempts: intPtr(3)})
	require.Error(t, err)
	assert.Equal(t, 1, s.RewriteAttempts)

	err = s.Apply(&StateUpdate{Stage: StageResumeRewriter, RewriteAttempts: intPtr(1)})
	require.Error(t, err)
}

func TestApply_TokenUsageOverwritten(t *testing.T) {
	s := NewPipelineState(Input{})

	require.NoError(t, s.Apply(&StateUpdate{Stage: StageResumeRewriter, Tokens: intPtr(300), RewriteAttempts: intPtr(1)}))
	require.NoError(t, s.Apply(&StateUpdate{Stage: StageResumeRewriter, Tokens: intPtr(120), RewriteAttempts: intPtr(2)}))
	require.NoError(t, s.Apply(&StateUpdate{Stage: StageATSScorer, Tokens: intPtr(0)}))

	assert.Equal(t, map[string]int{"resume_rewriter": 120, "ats_scorer": 0}, s.TokenUsage)
	assert.Equal(t, 3, s.Version)
}

func TestApply_ErrorsAppend(t *testing.T) {
	s := NewPipelineState(Input{})
	require.NoError(t, s.Apply(&StateUpdate{Stage: StageJDAnalyzer, Errors: []string{"a"}}))
	require.NoError(t, s.Apply(&StateUpdate{Stage: StageGapAnalyzer, Errors: []string{"b"}}))

	assert.Equal(t, []string{"a", "b"}, s.Errors)
}

func TestApply_EmptySliceOverwrites(t *testing.T) {
	s := NewPipelineState(Input{})
	require.NoError(t, s.Apply(&StateUpdate{Stage: StageResumeRetriever, RelevantChunks: []ResumeChunk{}}))

	assert.NotNil(t, s.RelevantChunks)
	assert.Empty(t, s.RelevantChunks)
}

func TestApply_Nil(t *testing.T) {
	s := NewPipelineState(Input{})
	assert.NoError(t, s.Apply(nil))
	assert.Equal(t, 0, s.Version)
}
