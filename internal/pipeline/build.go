package pipeline

import (
	"time"

	"github.com/jonathan/resume-optimizer/internal/analysis"
	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/gaps"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/retrieval"
	"github.com/jonathan/resume-optimizer/internal/rewriting"
	"github.com/jonathan/resume-optimizer/internal/scoring"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/vectorstore"
	"go.uber.org/zap"
)

// NewFromConfig builds the standard stages from settings and returns a
// Pipeline wired to them. Model names are resolved against models.
func NewFromConfig(settings config.PipelineSettings, models *llm.Config, client llm.Client, searcher vectorstore.Searcher, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runners := []stage.Runner{
		analysis.New(client, analysis.Options{
			Model: models.ResolveModel(settings.AnalyzerModel),
		}, logger),
		retrieval.New(searcher, retrieval.Options{
			TopK:               settings.RetrieverTopK,
			RelevanceThreshold: &settings.RelevanceThreshold,
			SearchTimeout:      time.Duration(settings.RetrieverTimeoutSeconds) * time.Second,
		}, logger),
		rewriting.New(client, rewriting.Options{
			Model:           models.ResolveModel(settings.RewriterModel),
			Temperature:     settings.RewriterTemperature,
			TopK:            settings.RewriteTopK,
			ChunkCharBudget: settings.ChunkCharBudget,
		}, logger),
		scoring.New(client, scoring.Options{
			Model:               models.ResolveModel(settings.ScorerModel),
			ConfidenceThreshold: &settings.ScoreConfidenceThreshold,
		}, logger),
		gaps.New(client, gaps.Options{
			Model:       models.ResolveModel(settings.GapModel),
			Temperature: settings.GapTemperature,
		}, logger),
	}

	opts = append([]Option{
		WithLogger(logger),
		WithDefaults(settings.ScoreThreshold, settings.MaxRewriteAttempts),
	}, opts...)
	return New(runners, opts...)
}
