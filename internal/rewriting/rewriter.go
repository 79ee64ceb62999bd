// Package rewriting rewrites resume sections to align with a job analysis.
package rewriting

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/prompts"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"go.uber.org/zap"
)

// Defaults for Options.
const (
	DefaultTopK            = 8
	DefaultChunkCharBudget = 600
	weakestCategories      = 2
	promptKeywordLimit     = 15
)

// OutputSchema is the JSON object the model must return.
var OutputSchema = llm.OutputSchema{
	Name: "RewrittenSections",
	Fields: []llm.SchemaField{
		{Name: types.SectionExperience, Type: `["string"]`, Description: "rewritten experience bullets"},
		{Name: types.SectionSkillsSummary, Type: `["string"]`, Description: "rewritten skills summary lines"},
		{Name: types.SectionProjects, Type: `["string"]`, Description: "rewritten project bullets"},
	},
}

// Options configures the rewriter.
type Options struct {
	Model           string
	Temperature     float32
	TopK            int
	ChunkCharBudget int
}

// Prompt is a rewrite request tagged with the attempt it belongs to.
type Prompt struct {
	Request *llm.Request
	Attempt int
}

// Output is the model response for one attempt.
type Output struct {
	Response *llm.Response
	Attempt  int
}

// TokenCount implements stage.TokenReporter.
func (o *Output) TokenCount() int {
	if o == nil {
		return 0
	}
	return o.Response.TokenCount()
}

// Rewriter is the resume rewriting stage and the only writer of rewrite_attempts.
type Rewriter struct {
	client llm.Client
	opts   Options
	logger *zap.Logger
}

// New creates a Rewriter. Zero limits take the defaults.
func New(client llm.Client, opts Options, logger *zap.Logger) *Rewriter {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.ChunkCharBudget <= 0 {
		opts.ChunkCharBudget = DefaultChunkCharBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{client: client, opts: opts, logger: logger}
}

// Name implements stage.Stage.
func (r *Rewriter) Name() types.StageName {
	return types.StageResumeRewriter
}

// Run executes the stage through the shared runner.
func (r *Rewriter) Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error) {
	return stage.Run[*Prompt, *Output](ctx, r, state, r.logger)
}

// Prepare groups the available resume content and builds the rewrite prompt,
// adding score feedback when a previous attempt was scored.
func (r *Rewriter) Prepare(state *types.PipelineState) (*Prompt, error) {
	if state.JDAnalysis == nil {
		return nil, &types.ValidationError{Field: "jd_analysis", Message: "required from the JD analyzer"}
	}
	if len(state.RelevantChunks) == 0 && len(state.ResumeSections) == 0 {
		return nil, &types.ValidationError{
			Field:   "resume_sections",
			Message: "no resume content: relevant_chunks and resume_sections are both empty",
		}
	}

	groups := GroupContent(state, r.opts.TopK, r.opts.ChunkCharBudget)
	feedback, err := RetryFeedback(state)
	if err != nil {
		return nil, err
	}

	jd := state.JDAnalysis
	keywords := types.SortedWeightKeys(jd.KeywordWeights)
	if len(keywords) > promptKeywordLimit {
		keywords = keywords[:promptKeywordLimit]
	}

	system, err := prompts.Render("rewriting.json", "system", map[string]any{
		"OutputFormat": llm.DescribeOutput(OutputSchema),
	})
	if err != nil {
		return nil, err
	}
	user, err := prompts.Render("rewriting.json", "user", map[string]any{
		"HardSkills":       strings.Join(jd.HardSkills, ", "),
		"SoftSkills":       strings.Join(jd.SoftSkills, ", "),
		"Responsibilities": strings.Join(jd.Responsibilities, "; "),
		"Qualifications":   strings.Join(jd.Qualifications, "; "),
		"Keywords":         strings.Join(keywords, ", "),
		"Content":          formatGroups(groups),
		"Feedback":         feedback,
	})
	if err != nil {
		return nil, err
	}

	return &Prompt{
		Request: &llm.Request{
			SystemPrompt: system,
			UserPrompt:   user,
			Model:        r.opts.Model,
			Temperature:  r.opts.Temperature,
			JSON:         true,
		},
		Attempt: state.RewriteAttempts + 1,
	}, nil
}

// Execute sends the rewrite request.
func (r *Rewriter) Execute(ctx context.Context, p *Prompt) (*Output, error) {
	resp, err := r.client.Generate(ctx, p.Request)
	if err != nil {
		return nil, err
	}
	return &Output{Response: resp, Attempt: p.Attempt}, nil
}

// Parse keeps only the rewritable sections, each as a list of trimmed
// bullets, and advances rewrite_attempts.
func (r *Rewriter) Parse(out *Output) (*types.StateUpdate, error) {
	obj, err := llm.DecodeObject(out.Response.Text)
	if err != nil {
		return nil, err
	}
	if err := schemas.Validate(schemas.Rewrite, obj); err != nil {
		return nil, err
	}

	sections := make(map[string][]string, len(types.RewritableSections))
	for _, name := range types.RewritableSections {
		raw, ok := obj[name]
		if !ok {
			continue
		}
		bullets := []string{}
		for _, b := range llm.StringList(raw) {
			if cleaned := CleanBullet(b); cleaned != "" {
				bullets = append(bullets, cleaned)
			}
		}
		sections[name] = bullets
	}

	style := SummarizeStyle(sections)
	r.logger.Debug("rewrite parsed",
		zap.Int("attempt", out.Attempt),
		zap.Int("bullets", style.Bullets),
		zap.Int("strong_verb", style.StrongVerb),
		zap.Int("quantified", style.Quantified))

	attempt := out.Attempt
	return &types.StateUpdate{OptimizedSections: sections, RewriteAttempts: &attempt}, nil
}

// GroupContent collects resume content per rewritable section. Retrieved
// chunks are preferred; the raw resume sections are used when no retrieved
// chunk belongs to a rewritable section. At most topK items are kept, each truncated to budget runes.
func GroupContent(state *types.PipelineState, topK, budget int) map[string][]string {
	groups := make(map[string][]string)
	taken := 0
	add := func(section, content string) {
		if taken >= topK || !types.IsRewritableSection(section) {
			return
		}
		content = Truncate(content, budget)
		if content == "" {
			return
		}
		groups[section] = append(groups[section], content)
		taken++
	}

	if len(state.RelevantChunks) > 0 {
		for _, c := range state.RelevantChunks {
			add(types.NormalizeSectionType(c.SectionType), c.Content)
		}
		if len(groups) > 0 {
			return groups
		}
	}
	for _, s := range state.ResumeSections {
		add(types.NormalizeSectionType(s.Type), s.Content)
	}
	return groups
}

func formatGroups(groups map[string][]string) string {
	var sb strings.Builder
	for _, name := range types.RewritableSections {
		items := groups[name]
		if len(items) == 0 {
			continue
		}
		sb.WriteString("### " + name + "\n")
		for _, item := range items {
			sb.WriteString("- " + item + "\n")
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return "(no experience, skills or project content found)"
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// RetryFeedback describes the previous attempt's score. It is empty on the
// first attempt or when no score exists yet.
func RetryFeedback(state *types.PipelineState) (string, error) {
	if state.RewriteAttempts == 0 || state.ATSScore == nil || state.ScoreBreakdown == nil {
		return "", nil
	}

	categories := state.ScoreBreakdown.Categories()
	var lines []string
	for _, c := range categories {
		lines = append(lines, fmt.Sprintf("- %s: %.2f", c.Name, c.Score))
	}

	sort.SliceStable(categories, func(i, j int) bool { return categories[i].Score < categories[j].Score })
	var weakest []string
	for i := 0; i < len(categories) && i < weakestCategories; i++ {
		weakest = append(weakest, categories[i].Name)
	}

	return prompts.Render("rewriting.json", "retry-feedback", map[string]any{
		"Overall":   fmt.Sprintf("%.2f", *state.ATSScore),
		"Threshold": fmt.Sprintf("%.2f", state.Threshold()),
		"Breakdown": strings.Join(lines, "\n"),
		"Weakest":   strings.Join(weakest, ", "),
	})
}
