package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/llm"
	"github.com/jonathan/resume-optimizer/internal/logger"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/vectorstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	verbose    bool
	logJSON    bool
	apiKey     string
	dbURL      string
}

func (o *rootOptions) bindFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "Print detailed debug information")
	pf.BoolVar(&o.logJSON, "log-json", false, "Emit structured JSON logs")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	pf.StringVar(&o.apiKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	pf.StringVar(&o.dbURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
}

// loadSettings layers the config file, explicitly set flags and the
// environment, in that order of precedence.
func (o *rootOptions) loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		// Blank strings in the file fall back to the defaults.
		merged := loaded.MergeWithDefaults(*config.Default())
		cfg = &merged
	}

	// Only override if the flag was explicitly set
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = o.logJSON
	}
	if flags.Changed("api-key") {
		cfg.APIKey = o.apiKey
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = o.dbURL
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func requireAPIKey(cfg *config.Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}
	return nil
}

func requireDatabaseURL(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.LogJSON, cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// runtime holds the long-lived collaborators of one command invocation.
// db and store are nil when no database is configured.
type runtime struct {
	logger   *zap.Logger
	client   llm.Client
	embedder *llm.GeminiEmbedder
	db       *db.DB
	store    *vectorstore.PGStore
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline
}

// newRuntime connects the model client, the database when configured and
// the vector store, and builds the pipeline on top of them.
func newRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...pipeline.Option) (*runtime, error) {
	rt := &runtime{logger: log, metrics: observability.NewMetrics()}
	models := cfg.LLMConfig()

	client, err := llm.NewClient(ctx, models, cfg.APIKey, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	rt.client = client

	var searcher vectorstore.Searcher = vectorstore.NopSearcher{}
	if cfg.DatabaseURL != "" {
		rt.db, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.embedder, err = llm.NewGeminiEmbedder(ctx, cfg.APIKey, models.EmbeddingModel)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		rt.store = vectorstore.NewPGStore(rt.db.Pool(), rt.embedder, log)
		searcher = rt.store
	} else {
		log.Warn("no database configured; retrieval returns no resume chunks")
	}

	opts = append([]pipeline.Option{pipeline.WithRecorder(rt.metrics)}, opts...)
	rt.pipeline, err = pipeline.NewFromConfig(cfg.Pipeline, models, client, searcher, log, opts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return rt, nil
}

// Close releases every collaborator that was opened.
func (rt *runtime) Close() {
	if rt.client != nil {
		if err := rt.client.Close(); err != nil {
			rt.logger.Debug("failed to close LLM client", zap.Error(err))
		}
	}
	if rt.embedder != nil {
		if err := rt.embedder.Close(); err != nil {
			rt.logger.Debug("failed to close embedder", zap.Error(err))
		}
	}
	if rt.db != nil {
		rt.db.Close()
	}
}
