package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/llm/llmtest"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysis() *types.JDAnalysis {
	return &types.JDAnalysis{
		HardSkills:       []string{"Python", "AWS"},
		SoftSkills:       []string{"Mentoring"},
		Responsibilities: []string{"Pipelines"},
		Qualifications:   []string{"Degree"},
		KeywordWeights:   map[string]float64{"python": 1},
	}
}

func stateWith(sections map[string][]string) *types.PipelineState {
	s := types.NewPipelineState(types.Input{TenantID: "t1", SessionID: "s1"})
	s.JDAnalysis = analysis()
	s.OptimizedSections = sections
	return s
}

var strongSections = map[string][]string{
	"experience": {
		"Built Python pipelines on AWS for analytics",
		"Led mentoring program for junior engineers",
	},
	"skills_summary": {"Python, AWS, degree in computer science"},
}

var weakSections = map[string][]string{
	"experience": {"Did stuff", "Worked on Java services for the billing team"},
}

func TestKeywordScore(t *testing.T) {
	assert.Equal(t, 1.0, KeywordScore(analysis(), strongSections))
	assert.Equal(t, 0.0, KeywordScore(analysis(), weakSections))

	// python, aws, mentoring, pipelines, degree: two of five found
	partial := map[string][]string{"experience": {"Shipped AWS tooling in python"}}
	assert.InDelta(t, 0.4, KeywordScore(analysis(), partial), 1e-9)
}

func TestKeywordScore_NoKeywordsIsNeutral(t *testing.T) {
	assert.Equal(t, 0.5, KeywordScore(&types.JDAnalysis{}, strongSections))
	assert.Equal(t, 0.5, KeywordScore(nil, strongSections))
}

func TestFormattingScore(t *testing.T) {
	assert.Equal(t, 1.0, FormattingScore(strongSections))
	assert.Equal(t, 0.5, FormattingScore(weakSections))
	assert.Equal(t, 0.5, FormattingScore(map[string][]string{}))
}

func TestRuleBasedScores(t *testing.T) {
	b := RuleBasedScores(analysis(), strongSections)

	assert.Equal(t, &types.ScoreBreakdown{Keywords: 1, Skills: 0.5, Experience: 0.5, Formatting: 1}, b)
	assert.InDelta(t, 0.725, b.WeightedOverall(), 1e-9)
}

func TestPrepare_Validation(t *testing.T) {
	sc := New(llmtest.New(), Options{}, nil)

	s := stateWith(strongSections)
	s.JDAnalysis = nil
	_, err := sc.Prepare(s)
	var vErr *types.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "jd_analysis", vErr.Field)

	_, err = sc.Prepare(stateWith(nil))
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "optimized_sections", vErr.Field)
}

func TestRun_ConfidentRuleScoreSkipsModel(t *testing.T) {
	client := llmtest.New()
	sc := New(client, Options{}, nil)

	update, err := sc.Run(context.Background(), stateWith(strongSections))
	require.NoError(t, err)

	assert.Equal(t, 0, client.Calls())
	require.NotNil(t, update.Tokens)
	assert.Equal(t, 0, *update.Tokens)
	assert.Equal(t, types.StageATSScorer, update.Stage)
	require.NotNil(t, update.ATSScore)
	assert.InDelta(t, 0.725, *update.ATSScore, 1e-9)
	assert.Equal(t, 1.0, update.ScoreBreakdown.Keywords)
}

func TestRun_LowRuleScoreCallsModel(t *testing.T) {
	client := llmtest.New(llmtest.JSON(`{"keywords": 0.9, "skills": "0.8", "experience": 1.4}`, 120))
	sc := New(client, Options{Model: "lite-model"}, nil)

	update, err := sc.Run(context.Background(), stateWith(weakSections))
	require.NoError(t, err)

	require.Equal(t, 1, client.Calls())
	req := client.Requests[0]
	assert.Equal(t, "lite-model", req.Model)
	assert.True(t, req.JSON)
	assert.Contains(t, req.UserPrompt, "Did stuff")
	assert.Contains(t, req.UserPrompt, "python=1.00")

	assert.Equal(t, 120, *update.Tokens)
	assert.Equal(t, &types.ScoreBreakdown{Keywords: 0.9, Skills: 0.8, Experience: 1, Formatting: 0.5}, update.ScoreBreakdown)
	// 0.35*0.9 + 0.30*0.8 + 0.25*1 + 0.10*0.5
	assert.InDelta(t, 0.855, *update.ATSScore, 1e-9)
}

func TestRun_ThresholdCanForceModel(t *testing.T) {
	client := llmtest.New(llmtest.JSON(`{"overall": 1.2, "keywords": 1, "skills": 1, "experience": 1, "formatting": -3}`, 10))
	sc := New(client, Options{ConfidenceThreshold: threshold(0.9)}, nil)

	update, err := sc.Run(context.Background(), stateWith(strongSections))
	require.NoError(t, err)

	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, 1.0, *update.ATSScore)
	assert.Equal(t, 0.0, update.ScoreBreakdown.Formatting)
}

func threshold(f float64) *float64 { return &f }

func TestRun_ZeroThresholdAlwaysRuleBased(t *testing.T) {
	client := llmtest.New()
	sc := New(client, Options{ConfidenceThreshold: threshold(0)}, nil)

	update, err := sc.Run(context.Background(), stateWith(weakSections))
	require.NoError(t, err)

	assert.Equal(t, 0, client.Calls())
	assert.Equal(t, 0, *update.Tokens)
	require.NotNil(t, update.ATSScore)
	assert.Less(t, *update.ATSScore, DefaultConfidenceThreshold)
}

func TestNew_NilThresholdTakesDefault(t *testing.T) {
	sc := New(llmtest.New(), Options{}, nil)
	assert.Equal(t, DefaultConfidenceThreshold, sc.confidence)
}

func TestRun_MalformedOutput(t *testing.T) {
	client := llmtest.New(llmtest.JSON("scores: high", 5))
	sc := New(client, Options{}, nil)

	_, err := sc.Run(context.Background(), stateWith(weakSections))
	require.Error(t, err)

	var execErr *stage.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, types.StageATSScorer, execErr.Stage)
	assert.True(t, execErr.Recoverable)
}
