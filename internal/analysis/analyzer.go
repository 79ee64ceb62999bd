// Package analysis extracts structured requirements from job description text.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/prompts"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

// MinJDLength is the shortest trimmed job description worth analyzing.
const MinJDLength = 50

// OutputSchema is the JSON object the model must return.
var OutputSchema = llm.OutputSchema{
	Name: "JDAnalysis",
	Fields: []llm.SchemaField{
		{Name: "hard_skills", Type: `["string"]`, Description: "technical skills, tools, languages", Required: true},
		{Name: "soft_skills", Type: `["string"]`, Description: "interpersonal and working-style skills", Required: true},
		{Name: "responsibilities", Type: `["string"]`, Description: "duties of the role", Required: true},
		{Name: "qualifications", Type: `["string"]`, Description: "degrees, certifications, years of experience", Required: true},
		{Name: "keyword_weights", Type: `{"keyword": 0.0}`, Description: "importance of each ATS keyword between 0.0 and 1.0", Required: true},
	},
}

// Options configures the analyzer.
type Options struct {
	Model       string
	Temperature float32
}

// Analyzer is the JD analysis stage.
type Analyzer struct {
	client llm.Client
	opts   Options
	logger *zap.Logger
}

// New creates an Analyzer. A nil logger discards output.
func New(client llm.Client, opts Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, opts: opts, logger: logger}
}

// Run executes the stage through the shared runner.
func (a *Analyzer) Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error) {
	return stage.Run[*llm.Request, *llm.Response](ctx, a, state, a.logger)
}

// Name implements stage.Stage.
func (a *Analyzer) Name() types.StageName {
	return types.StageJDAnalyzer
}

// Prepare requires a job description of at least MinJDLength characters.
func (a *Analyzer) Prepare(state *types.PipelineState) (*llm.Request, error) {
	jd := strings.TrimSpace(state.JDText)
	if n := utf8.RuneCountInString(jd); n < MinJDLength {
		return nil, &types.ValidationError{
			Field:   "jd_text",
			Message: fmt.Sprintf("too short or unintelligible: %d characters, minimum %d", n, MinJDLength),
		}
	}

	system, err := prompts.Render("analysis.json", "system", map[string]any{
		"OutputFormat": llm.DescribeOutput(OutputSchema),
	})
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("analysis.json", "user", map[string]any{"JDText": jd})
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

// Execute sends the extraction request.
func (a *Analyzer) Execute(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return a.client.Generate(ctx, req)
}

// Parse decodes the five JDAnalysis keys, coercing lists and clamping weights.
func (a *Analyzer) Parse(resp *llm.Response) (*types.StateUpdate, error) {
	obj, err := llm.DecodeObject(resp.Text)
	if err != nil {
		return nil, err
	}
	if err := schemas.Validate(schemas.JDAnalysis, obj); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) && len(ve.MissingFields()) > 0 {
			return nil, fmt.Errorf("model output is missing required key(s): %s", strings.Join(ve.MissingFields(), ", "))
		}
		return nil, err
	}

	analysis, err := types.NewJDAnalysis(
		llm.StringList(obj["hard_skills"]),
		llm.StringList(obj["soft_skills"]),
		llm.StringList(obj["responsibilities"]),
		llm.StringList(obj["qualifications"]),
		llm.WeightMap(obj["keyword_weights"]),
	)
	if err != nil {
		return nil, err
	}
	return &types.StateUpdate{JDAnalysis: analysis}, nil
}
