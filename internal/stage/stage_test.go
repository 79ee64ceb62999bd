package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRaw struct {
	text   string
	tokens int
}

func (r *fakeRaw) TokenCount() int {
	if r == nil {
		return 0
	}
	return r.tokens
}

// fakeStage records which phases ran and delegates to optional func fields.
type fakeStage struct {
	calls       []string
	prepareFunc func(*types.PipelineState) (string, error)
	executeFunc func(context.Context, string) (*fakeRaw, error)
	parseFunc   func(*fakeRaw) (*types.StateUpdate, error)
}

func (f *fakeStage) Name() types.StageName { return types.StageGapAnalyzer }

func (f *fakeStage) Prepare(state *types.PipelineState) (string, error) {
	f.calls = append(f.calls, "prepare")
	if f.prepareFunc != nil {
		return f.prepareFunc(state)
	}
	return "prompt", nil
}

func (f *fakeStage) Execute(ctx context.Context, prompt string) (*fakeRaw, error) {
	f.calls = append(f.calls, "execute")
	if f.executeFunc != nil {
		return f.executeFunc(ctx, prompt)
	}
	return &fakeRaw{text: "{}", tokens: 42}, nil
}

func (f *fakeStage) Parse(raw *fakeRaw) (*types.StateUpdate, error) {
	f.calls = append(f.calls, "parse")
	if f.parseFunc != nil {
		return f.parseFunc(raw)
	}
	return &types.StateUpdate{GapReport: &types.GapReport{}}, nil
}

func TestRun_Success(t *testing.T) {
	s := &fakeStage{}
	update, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"prepare", "execute", "parse"}, s.calls)
	assert.Equal(t, types.StageGapAnalyzer, update.Stage)
	require.NotNil(t, update.Tokens)
	assert.Equal(t, 42, *update.Tokens)
}

func TestRun_ValidationErrorPassesThrough(t *testing.T) {
	vErr := &types.ValidationError{Field: "jd_analysis", Message: "required"}
	s := &fakeStage{prepareFunc: func(*types.PipelineState) (string, error) { return "", vErr }}

	_, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	assert.Same(t, vErr, err)
	assert.Equal(t, []string{"prepare"}, s.calls)
}

func TestRun_ExecuteErrorWrapped(t *testing.T) {
	cause := errors.New("connection reset")
	s := &fakeStage{executeFunc: func(context.Context, string) (*fakeRaw, error) { return nil, cause }}

	_, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, types.StageGapAnalyzer, execErr.Stage)
	assert.True(t, execErr.Recoverable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []string{"prepare", "execute"}, s.calls)
}

func TestRun_ParseErrorWrapped(t *testing.T) {
	s := &fakeStage{parseFunc: func(*fakeRaw) (*types.StateUpdate, error) {
		return nil, errors.New("unexpected end of JSON input")
	}}

	_, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "[gap_analyzer]")
	assert.True(t, IsRecoverable(err))
}

func TestRun_NoDoubleWrap(t *testing.T) {
	inner := &ExecutionError{Stage: types.StageGapAnalyzer, Message: "bad output", Recoverable: false}
	s := &fakeStage{parseFunc: func(*fakeRaw) (*types.StateUpdate, error) { return nil, inner }}

	_, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	assert.Same(t, inner, err)
}

func TestRun_PanicBecomesExecutionError(t *testing.T) {
	s := &fakeStage{executeFunc: func(context.Context, string) (*fakeRaw, error) { panic("boom") }}

	update, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	assert.Nil(t, update)
	name, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, types.StageGapAnalyzer, name)
	assert.Contains(t, err.Error(), "boom")
}

func TestRun_NilRawCostsZeroTokens(t *testing.T) {
	s := &fakeStage{executeFunc: func(context.Context, string) (*fakeRaw, error) { return nil, nil }}

	update, err := Run[string, *fakeRaw](context.Background(), s, types.NewPipelineState(types.Input{}), nil)

	require.NoError(t, err)
	assert.Equal(t, 0, *update.Tokens)
}

func TestWrap_CanceledIsNotRecoverable(t *testing.T) {
	err := Wrap(types.StageATSScorer, "execute failed", context.Canceled, true)
	assert.False(t, IsRecoverable(err))
	assert.Nil(t, Wrap(types.StageATSScorer, "noop", nil, true))
}
