// Package retrieval finds indexed resume content relevant to a job analysis.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/jonathan/resume-optimizer/internal/vectorstore"
	"go.uber.org/zap"
)

// FallbackQuery is searched when the analysis yields no terms.
const FallbackQuery = "experience skills projects"

// Defaults for Options.
const (
	DefaultTopK               = 10
	DefaultRelevanceThreshold = 0.3
	DefaultSearchTimeout      = 30 * time.Second
)

// Options configures the retriever.
type Options struct {
	TopK int
	// RelevanceThreshold drops results scoring below it. Nil takes the
	// default; zero keeps every result.
	RelevanceThreshold *float64
	// SearchTimeout bounds one similarity search.
	SearchTimeout time.Duration
}

// Retriever is the resume retrieval stage. It makes no generative call.
type Retriever struct {
	searcher  vectorstore.Searcher
	opts      Options
	threshold float64
	logger    *zap.Logger
}

// New creates a Retriever. Unset options take the defaults.
func New(searcher vectorstore.Searcher, opts Options, logger *zap.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	threshold := DefaultRelevanceThreshold
	if opts.RelevanceThreshold != nil {
		threshold = *opts.RelevanceThreshold
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{searcher: searcher, opts: opts, threshold: threshold, logger: logger}
}

// Name implements stage.Stage.
func (r *Retriever) Name() types.StageName {
	return types.StageResumeRetriever
}

// Run executes the stage through the shared runner.
func (r *Retriever) Run(ctx context.Context, state *types.PipelineState) (*types.StateUpdate, error) {
	return stage.Run[vectorstore.Query, []vectorstore.SearchResult](ctx, r, state, r.logger)
}

// Prepare requires a tenant and a job analysis and builds the search query.
func (r *Retriever) Prepare(state *types.PipelineState) (vectorstore.Query, error) {
	if strings.TrimSpace(state.TenantID) == "" {
		return vectorstore.Query{}, &types.ValidationError{Field: "tenant_id", Message: "required for retrieval"}
	}
	if state.JDAnalysis == nil {
		return vectorstore.Query{}, &types.ValidationError{Field: "jd_analysis", Message: "required from the JD analyzer"}
	}
	return vectorstore.Query{
		TenantID: state.TenantID,
		Text:     BuildQuery(state.JDAnalysis),
		K:        r.opts.TopK,
		ResumeID: state.ResumeID,
	}, nil
}

// Execute runs the similarity search under SearchTimeout. A search that
// outlives the timeout yields no results; cancellation of ctx itself is
// returned as an error.
func (r *Retriever) Execute(ctx context.Context, q vectorstore.Query) ([]vectorstore.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	searchCtx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
	defer cancel()

	// Buffered so a searcher that ignores its context never blocks on send.
	done := make(chan []vectorstore.SearchResult, 1)
	go func() {
		done <- r.searcher.Search(searchCtx, q)
	}()

	select {
	case results := <-done:
		return results, nil
	case <-searchCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.logger.Warn("similarity search timed out",
			zap.String("tenant_id", q.TenantID),
			zap.Duration("timeout", r.opts.SearchTimeout))
		return []vectorstore.SearchResult{}, nil
	}
}

// Parse drops weak matches, normalizes section types and returns chunks
// sorted by descending relevance with duplicate content removed. An empty
// result is valid and leaves the rewriter to use the raw resume sections.
func (r *Retriever) Parse(results []vectorstore.SearchResult) (*types.StateUpdate, error) {
	candidates := make([]types.ResumeChunk, 0, len(results))
	for _, res := range results {
		if res.RelevanceScore < r.threshold {
			continue
		}
		chunk, err := types.NewResumeChunk(
			types.NormalizeSectionType(res.Metadata.SectionType),
			strings.TrimSpace(res.Content),
			types.Clamp01(res.RelevanceScore),
		)
		if err != nil {
			r.logger.Debug("skipping search result", zap.Error(err))
			continue
		}
		candidates = append(candidates, chunk)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})

	seen := make(map[string]bool, len(candidates))
	chunks := make([]types.ResumeChunk, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.Content] {
			continue
		}
		seen[c.Content] = true
		chunks = append(chunks, c)
	}
	return &types.StateUpdate{RelevantChunks: chunks}, nil
}

// BuildQuery joins hard skills, soft skills and keyword-weight keys, in that
// order, skipping repeats. It falls back to FallbackQuery when nothing remains.
func BuildQuery(a *types.JDAnalysis) string {
	if a == nil {
		return FallbackQuery
	}
	seen := make(map[string]bool)
	var terms []string
	add := func(items []string) {
		for _, item := range items {
			item = strings.TrimSpace(item)
			key := strings.ToLower(item)
			if item == "" || seen[key] {
				continue
			}
			seen[key] = true
			terms = append(terms, item)
		}
	}
	add(a.HardSkills)
	add(a.SoftSkills)
	add(types.SortedWeightKeys(a.KeywordWeights))

	if len(terms) == 0 {
		return FallbackQuery
	}
	return strings.Join(terms, " ")
}
