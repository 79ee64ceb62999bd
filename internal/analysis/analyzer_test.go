package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/llm/llmtest"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJD = "We are hiring a backend engineer with Python and AWS experience to build data services."

const validOutput = `{
  "hard_skills": ["Python", "AWS"],
  "soft_skills": ["Communication"],
  "responsibilities": ["Build data services"],
  "qualifications": ["3+ years backend experience"],
  "keyword_weights": {"python": 0.9, "aws": "0.8"}
}`

func newState(jd string) *types.PipelineState {
	return types.NewPipelineState(types.Input{TenantID: "t1", SessionID: "s1", JDText: jd})
}

func TestPrepare_RejectsShortJD(t *testing.T) {
	client := llmtest.New()
	a := New(client, Options{Model: "m"}, nil)

	_, err := a.Run(context.Background(), newState("   short text padded     "))

	var vErr *types.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "jd_text", vErr.Field)
	assert.Equal(t, 0, client.Calls())
}

func TestPrepare_BoundaryLength(t *testing.T) {
	a := New(llmtest.New(), Options{Model: "m"}, nil)

	_, err := a.Prepare(newState("  " + strings.Repeat("x", 49) + "  "))
	require.Error(t, err)

	req, err := a.Prepare(newState(strings.Repeat("x", 50)))
	require.NoError(t, err)
	assert.True(t, req.JSON)
	assert.Contains(t, req.SystemPrompt, "keyword_weights")
	assert.Contains(t, req.UserPrompt, strings.Repeat("x", 50))
}

func TestRun_Success(t *testing.T) {
	client := llmtest.New(llmtest.JSON("```json\n"+validOutput+"\n```", 321))
	a := New(client, Options{Model: "gemini-2.5-flash-lite", Temperature: 0}, nil)

	update, err := a.Run(context.Background(), newState(sampleJD))
	require.NoError(t, err)

	require.NotNil(t, update.JDAnalysis)
	assert.Equal(t, []string{"Python", "AWS"}, update.JDAnalysis.HardSkills)
	assert.Equal(t, map[string]float64{"python": 0.9, "aws": 0.8}, update.JDAnalysis.KeywordWeights)
	assert.Equal(t, 321, *update.Tokens)
	assert.Equal(t, types.StageJDAnalyzer, update.Stage)

	require.Len(t, client.Requests, 1)
	assert.Equal(t, float32(0), client.Requests[0].Temperature)
	assert.Equal(t, "gemini-2.5-flash-lite", client.Requests[0].Model)
}

func TestParse_CoercesValues(t *testing.T) {
	a := New(nil, Options{}, nil)
	update, err := a.Parse(llmResponse(`{
	  "hard_skills": "Go",
	  "soft_skills": ["Mentoring", 42],
	  "responsibilities": ["Own the API"],
	  "qualifications": ["BS CS"],
	  "keyword_weights": {"go": 3, "grpc": "n/a", "sql": -1}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Go"}, update.JDAnalysis.HardSkills)
	assert.Equal(t, []string{"Mentoring", "42"}, update.JDAnalysis.SoftSkills)
	assert.Equal(t, map[string]float64{"go": 1, "sql": 0}, update.JDAnalysis.KeywordWeights)
}

func TestParse_NullWeights(t *testing.T) {
	a := New(nil, Options{}, nil)
	update, err := a.Parse(llmResponse(`{"hard_skills":["Go"],"soft_skills":["x"],"responsibilities":["y"],"qualifications":["z"],"keyword_weights":null}`))
	require.NoError(t, err)
	assert.Empty(t, update.JDAnalysis.KeywordWeights)
}

func TestRun_MissingKeyNamed(t *testing.T) {
	client := llmtest.New(llmtest.JSON(`{"hard_skills":["Go"],"soft_skills":["x"],"responsibilities":["y"],"keyword_weights":{}}`, 10))
	a := New(client, Options{Model: "m"}, nil)

	_, err := a.Run(context.Background(), newState(sampleJD))

	var execErr *stage.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, types.StageJDAnalyzer, execErr.Stage)
	assert.True(t, execErr.Recoverable)
	assert.Contains(t, err.Error(), "qualifications")
}

func TestRun_MalformedJSON(t *testing.T) {
	client := llmtest.New(llmtest.JSON(`{"hard_skills": [`, 10))
	a := New(client, Options{Model: "m"}, nil)

	_, err := a.Run(context.Background(), newState(sampleJD))

	name, ok := stage.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, types.StageJDAnalyzer, name)
}

func TestRun_EmptyListFailsConstruction(t *testing.T) {
	client := llmtest.New(llmtest.JSON(`{"hard_skills":[],"soft_skills":["x"],"responsibilities":["y"],"qualifications":["z"],"keyword_weights":{}}`, 10))
	a := New(client, Options{Model: "m"}, nil)

	_, err := a.Run(context.Background(), newState(sampleJD))

	var execErr *stage.ExecutionError
	require.True(t, errors.As(err, &execErr))
	var vErr *types.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "hard_skills", vErr.Field)
}
