// Package gaps compares a job's requirements with the optimized resume and
// reports what is missing.
package gaps

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/prompts"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// OutputSchema is the JSON object the model must return.
var OutputSchema = llm.OutputSchema{
	Name: "GapReport",
	Fields: []llm.SchemaField{
		{Name: "missing_skills", Type: `["string"]`, Description: "requirements the resume does not demonstrate", Required: true},
		{Name: "recommendations", Type: `["string"]`, Description: "actionable steps, most impactful first", Required: true},
		{Name: "transferable_skills", Type: `["string"]`, Description: "existing skills that carry over"},
		{Name: "priority", Type: `{"skill": "high"}`, Description: "missing skill to high, medium or low"},
	},
}

// Options configures the analyzer.
type Options struct {
	Model       string
	Temperature float32
}

// rawReport is the loosely typed model output. Single strings are accepted
// where lists are expected.
type rawReport struct {
	MissingSkills      []string          `mapstructure:"missing_skills"`
	Recommendations    []string          `mapstructure:"recommendations"`
	TransferableSkills []string          `mapstructure:"transferable_skills"`
	Priority           map[string]string `mapstructure:"priority"`
}

// Analyzer is the gap analysis stage.
type Analyzer struct {
	client llm.Client
	opts   Options
	logger *zap.Logger
}

// New creates an Analyzer.
func New(client llm.Client, opts Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, opts: opts, logger: logger}
}

// Name implements stage.Stage.
func (a *Analyzer) Name() types.StageName {
	return types.StageGapAnalyzer
}

// Run executes the stage through the shared runner.
func (a *Analyzer) Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error) {
	return stage.Run[*llm.Request, *llm.Response](ctx, a, state, a.logger)
}

// Prepare builds the comparison prompt.
func (a *Analyzer) Prepare(state *types.PipelineState) (*llm.Request, error) {
	if state.JDAnalysis == nil {
		return nil, &types.ValidationError{Field: "jd_analysis", Message: "required from the JD analyzer"}
	}
	if len(state.OptimizedSections) == 0 {
		return nil, &types.ValidationError{Field: "optimized_sections", Message: "required from the resume rewriter"}
	}

	jd := state.JDAnalysis
	system, err := prompts.Render("gaps.json", "system", map[string]any{
		"OutputFormat": llm.DescribeOutput(OutputSchema),
	})
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("gaps.json", "user", map[string]any{
		"HardSkills":       strings.Join(jd.HardSkills, ", "),
		"SoftSkills":       strings.Join(jd.SoftSkills, ", "),
		"Responsibilities": strings.Join(jd.Responsibilities, "; "),
		"Qualifications":   strings.Join(jd.Qualifications, "; "),
		"Sections":         types.FormatSections(state.OptimizedSections),
	})
	if err != nil {
		return nil, err
	}

	return &llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Model:        a.opts.Model,
		Temperature:  a.opts.Temperature,
		JSON:         true,
	}, nil
}

// Execute calls the model.
func (a *Analyzer) Execute(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return a.client.Generate(ctx, req)
}

// Parse decodes the report. An unrecognized priority level fails the stage.
func (a *Analyzer) Parse(resp *llm.Response) (*types.StateUpdate, error) {
	obj, err := llm.DecodeObject(resp.Text)
	if err != nil {
		return nil, err
	}
	if err := schemas.Validate(schemas.GapReport, obj); err != nil {
		return nil, err
	}

	raw, err := decodeReport(obj)
	if err != nil {
		return nil, err
	}

	priority := make(map[string]string, len(raw.Priority))
	for skill, level := range raw.Priority {
		if skill = strings.TrimSpace(skill); skill != "" {
			priority[skill] = level
		}
	}

	report, err := types.NewGapReport(
		compact(raw.MissingSkills),
		compact(raw.Recommendations),
		compact(raw.TransferableSkills),
		priority,
	)
	if err != nil {
		return nil, err
	}
	return &types.StateUpdate{GapReport: report}, nil
}

func decodeReport(obj map[string]any) (*rawReport, error) {
	var raw rawReport
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(obj); err != nil {
		return nil, fmt.Errorf("decode gap report: %w", err)
	}
	return &raw, nil
}

// compact trims every entry and drops the empty ones. The result is never nil.
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
