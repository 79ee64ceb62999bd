package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
)

type fakeRunner struct {
	name  types.StageName
	calls int
	run   func(state *types.PipelineState, call int) (*types.StateUpdate, error)
}

func (f *fakeRunner) Name() types.StageName { return f.name }

func (f *fakeRunner) Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error) {
	f.calls++
	return f.run(state, f.calls)
}

type fakeStages struct {
	analyzer, retriever, rewriter, scorer, gaps *fakeRunner
}

func (f *fakeStages) runners() []stage.Runner {
	return []stage.Runner{f.analyzer, f.retriever, f.rewriter, f.scorer, f.gaps}
}

func tokens(n int) *int { return &n }

// newFakeStages returns well-behaved stages. The scorer reports scores in
// order and repeats the last one.
func newFakeStages(scores ...float64) *fakeStages {
	return &fakeStages{
		analyzer: &fakeRunner{name: types.StageJDAnalyzer, run: func(*types.PipelineState, int) (*types.StateUpdate, error) {
			return &types.StateUpdate{
				Stage:      types.StageJDAnalyzer,
				JDAnalysis: &types.JDAnalysis{HardSkills: []string{"Go"}, KeywordWeights: map[string]float64{"go": 1}},
				Tokens:     tokens(10),
			}, nil
		}},
		retriever: &fakeRunner{name: types.StageResumeRetriever, run: func(*types.PipelineState, int) (*types.StateUpdate, error) {
			return &types.StateUpdate{
				Stage:          types.StageResumeRetriever,
				RelevantChunks: []types.ResumeChunk{},
				Tokens:         tokens(0),
			}, nil
		}},
		rewriter: &fakeRunner{name: types.StageResumeRewriter, run: func(state *types.PipelineState, call int) (*types.StateUpdate, error) {
			attempts := state.RewriteAttempts + 1
			return &types.StateUpdate{
				Stage:             types.StageResumeRewriter,
				OptimizedSections: map[string][]string{"experience": {"Built Go services"}},
				RewriteAttempts:   &attempts,
				Tokens:            tokens(100 * call),
			}, nil
		}},
		scorer: &fakeRunner{name: types.StageATSScorer, run: func(_ *types.PipelineState, call int) (*types.StateUpdate, error) {
			score := scores[len(scores)-1]
			if call <= len(scores) {
				score = scores[call-1]
			}
			return &types.StateUpdate{
				Stage:          types.StageATSScorer,
				ATSScore:       &score,
				ScoreBreakdown: &types.ScoreBreakdown{Keywords: score, Skills: score, Experience: score, Formatting: score},
				Tokens:         tokens(5),
			}, nil
		}},
		gaps: &fakeRunner{name: types.StageGapAnalyzer, run: func(*types.PipelineState, int) (*types.StateUpdate, error) {
			return &types.StateUpdate{
				Stage:     types.StageGapAnalyzer,
				GapReport: &types.GapReport{MissingSkills: []string{"Kafka"}},
				Tokens:    tokens(20),
			}, nil
		}},
	}
}

func validInput() types.Input {
	return types.Input{
		TenantID:  "tenant-1",
		UserID:    "user-1",
		SessionID: "session-1",
		JDText:    "Senior backend engineer. Python and AWS required, data pipelines a plus.",
		ResumeSections: []types.ResumeSection{
			{Type: "experience", Content: "Wrote Python scripts for reporting"},
		},
	}
}

type recordedStage struct {
	name   types.StageName
	tokens int
	err    error
}

type fakeRecorder struct {
	mu     sync.Mutex
	stages []recordedStage
	runs   []error
}

func (r *fakeRecorder) ObserveStage(name types.StageName, _ time.Duration, tokens int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, recordedStage{name: name, tokens: tokens, err: err})
}

func (r *fakeRecorder) ObserveRun(_ *types.FinalResult, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, err)
}
