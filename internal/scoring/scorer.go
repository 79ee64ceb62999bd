// Package scoring rates optimized resume sections for ATS compatibility.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/prompts"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

// DefaultConfidenceThreshold is the rule-based overall score at or above
// which the model is not consulted.
const DefaultConfidenceThreshold = 0.7

// OutputSchema is the JSON object the model must return.
var OutputSchema = llm.OutputSchema{
	Name: "ATSScore",
	Fields: []llm.SchemaField{
		{Name: "overall", Type: "0.0", Description: "weighted overall score"},
		{Name: "keywords", Type: "0.0", Required: true},
		{Name: "skills", Type: "0.0", Required: true},
		{Name: "experience", Type: "0.0", Required: true},
		{Name: "formatting", Type: "0.0", Required: true},
	},
}

// Options configures the scorer.
type Options struct {
	Model       string
	Temperature float32
	// ConfidenceThreshold is the rule-based overall score accepted without a
	// model call. Nil takes the default; zero always accepts.
	ConfidenceThreshold *float64
}

// Prompt carries either a model request or an already decided rule-based score.
type Prompt struct {
	Request   *llm.Request
	RuleBased *types.ScoreBreakdown
}

// Output is the model response or the rule-based score passed through.
type Output struct {
	Response  *llm.Response
	RuleBased *types.ScoreBreakdown
}

// TokenCount implements stage.TokenReporter. Rule-based scores are free.
func (o *Output) TokenCount() int {
	if o == nil {
		return 0
	}
	return o.Response.TokenCount()
}

// Scorer is the ATS scoring stage.
type Scorer struct {
	client     llm.Client
	opts       Options
	confidence float64
	logger     *zap.Logger
}

// New creates a Scorer. A nil confidence threshold takes the default.
func New(client llm.Client, opts Options, logger *zap.Logger) *Scorer {
	confidence := DefaultConfidenceThreshold
	if opts.ConfidenceThreshold != nil {
		confidence = *opts.ConfidenceThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{client: client, opts: opts, confidence: confidence, logger: logger}
}

// Name implements stage.Stage.
func (s *Scorer) Name() types.StageName {
	return types.StageATSScorer
}

// Run executes the stage through the shared runner.
func (s *Scorer) Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error) {
	return stage.Run[*Prompt, *Output](ctx, s, state, s.logger)
}

// Prepare runs the rule-based pre-scorer and only builds a model request when
// its overall score is below the confidence threshold.
func (s *Scorer) Prepare(state *types.PipelineState) (*Prompt, error) {
	if state.JDAnalysis == nil {
		return nil, &types.ValidationError{Field: "jd_analysis", Message: "required from the JD analyzer"}
	}
	if len(state.OptimizedSections) == 0 {
		return nil, &types.ValidationError{Field: "optimized_sections", Message: "required from the resume rewriter"}
	}

	rule := RuleBasedScores(state.JDAnalysis, state.OptimizedSections)
	overall := rule.WeightedOverall()
	if overall >= s.confidence {
		s.logger.Debug("rule-based score accepted",
			zap.String("session_id", state.SessionID),
			zap.Float64("overall", overall))
		return &Prompt{RuleBased: rule}, nil
	}

	jd := state.JDAnalysis
	system, err := prompts.Render("scoring.json", "system", map[string]any{
		"OutputFormat": llm.DescribeOutput(OutputSchema),
	})
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("scoring.json", "user", map[string]any{
		"HardSkills":       strings.Join(jd.HardSkills, ", "),
		"SoftSkills":       strings.Join(jd.SoftSkills, ", "),
		"Responsibilities": strings.Join(jd.Responsibilities, "; "),
		"Keywords":         formatWeights(jd.KeywordWeights),
		"Sections":         types.FormatSections(state.OptimizedSections),
	})
	if err != nil {
		return nil, err
	}

	return &Prompt{Request: &llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        s.opts.Model,
		Temperature:  s.opts.Temperature,
		JSON:         true,
	}}, nil
}

// Execute calls the model unless the rule-based score was accepted.
func (s *Scorer) Execute(ctx context.Context, p *Prompt) (*Output, error) {
	if p.RuleBased != nil {
		return &Output{RuleBased: p.RuleBased}, nil
	}
	resp, err := s.client.Generate(ctx, p.Request)
	if err != nil {
		return nil, err
	}
	return &Output{Response: resp}, nil
}

// Parse produces ats_score and score_breakdown. Model categories that are
// missing default to 0.5; all values are clamped to [0,1] and a missing
// overall is recomputed from the weights.
func (s *Scorer) Parse(out *Output) (*types.StateUpdate, error) {
	if out.RuleBased != nil {
		overall := types.Clamp01(out.RuleBased.WeightedOverall())
		return &types.StateUpdate{ATSScore: &overall, ScoreBreakdown: out.RuleBased}, nil
	}

	obj, err := llm.DecodeObject(out.Response.Text)
	if err != nil {
		return nil, err
	}
	if err := schemas.Validate(schemas.ATSScore, obj); err != nil {
		return nil, err
	}

	category := func(key string) float64 {
		v, ok := llm.Float(obj[key])
		if !ok {
			return neutralScore
		}
		return types.Clamp01(v)
	}
	breakdown, err := types.NewScoreBreakdown(
		category("keywords"),
		category("skills"),
		category("experience"),
		category("formatting"),
	)
	if err != nil {
		return nil, err
	}

	overall := breakdown.WeightedOverall()
	if v, ok := llm.Float(obj["overall"]); ok {
		overall = v
	}
	overall = types.Clamp01(overall)
	return &types.StateUpdate{ATSScore: &overall, ScoreBreakdown: breakdown}, nil
}

func formatWeights(weights map[string]float64) string {
	keys := types.SortedWeightKeys(weights)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, weights[k]))
	}
	return strings.Join(parts, ", ")
}
