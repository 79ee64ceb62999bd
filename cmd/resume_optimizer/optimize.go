package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonathan/resume-optimizer/internal/db"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/observability"
	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/stage"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type optimizeOptions struct {
	jdPath      string
	jdURL       string
	resumePath  string
	tenantID    string
	userID      string
	resumeID    string
	threshold   float64
	maxAttempts int
	outPath     string
	useBrowser  bool
}

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	o := &optimizeOptions{}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize a resume against a job description",
		Long: `Runs the full pipeline: JD analysis -> retrieval -> rewrite -> ATS scoring (with rewrite retries) -> gap analysis.

Resume content comes from --resume and, when a database is configured, from chunks indexed for --resume-id.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimize(cmd, root, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.jdPath, "jd", "j", "", "Path to job description text file (mutually exclusive with --jd-url)")
	f.StringVar(&o.jdURL, "jd-url", "", "URL to fetch the job description from (mutually exclusive with --jd)")
	f.StringVarP(&o.resumePath, "resume", "r", "", "Path to resume sections (JSON array of {type, content}) or plain text")
	f.StringVar(&o.tenantID, "tenant", "local", "Tenant ID the run belongs to")
	f.StringVar(&o.userID, "user", "cli", "User ID the run belongs to")
	f.StringVar(&o.resumeID, "resume-id", "", "Restrict retrieval to chunks of this indexed resume")
	f.Float64Var(&o.threshold, "threshold", types.DefaultScoreThreshold, "ATS score needed to skip further rewrites")
	f.IntVar(&o.maxAttempts, "max-attempts", types.DefaultMaxRewriteAttempts, "Maximum rewrite attempts")
	f.StringVarP(&o.outPath, "out", "o", "", "Write the result JSON to this file")
	f.BoolVar(&o.useBrowser, "use-browser", false, "Use headless browser for SPA sites (requires Chrome)")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-url")
	return cmd
}

func runOptimize(cmd *cobra.Command, root *rootOptions, o *optimizeOptions) error {
	cfg, err := root.loadSettings(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = o.useBrowser
	}

	if o.jdPath == "" && o.jdURL == "" {
		return fmt.Errorf("either --jd or --jd-url must be provided")
	}

	var sections []types.ResumeSection
	if o.resumePath != "" {
		sections, err = loadResumeSections(o.resumePath)
		if err != nil {
			return err
		}
	}

	if err := requireAPIKey(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jdText, err := readJobDescription(ctx, o, cfg.UseBrowser, log)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	printer := observability.NewPrinter(cmd.OutOrStdout())
	if cfg.Verbose {
		opts = append(opts, pipeline.WithProgress(printer.PrintProgress))
	}
	rt, err := newRuntime(ctx, cfg, log, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	in := types.Input{
		TenantID:       o.tenantID,
		UserID:         o.userID,
		ResumeID:       o.resumeID,
		JDText:         jdText,
		ResumeSections: sections,
	}
	if cmd.Flags().Changed("threshold") {
		in.ScoreThreshold = &o.threshold
	}
	if cmd.Flags().Changed("max-attempts") {
		in.MaxRewriteAttempts = &o.maxAttempts
	}

	result, err := runSession(ctx, rt, in)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		printer.PrintResult(result)
		if o.outPath == "" {
			return nil
		}
	}
	return writeResult(cmd.OutOrStdout(), o.outPath, result)
}

// runSession runs the pipeline, recording the session when a database is
// configured.
func runSession(ctx context.Context, rt *runtime, in types.Input) (*types.FinalResult, error) {
	if rt.db == nil {
		in.SessionID = uuid.NewString()
		return rt.pipeline.Run(ctx, in)
	}

	id, err := rt.db.CreateSession(ctx, db.SessionInput{
		TenantID: in.TenantID,
		UserID:   in.UserID,
		ResumeID: in.ResumeID,
		JDText:   in.JDText,
		Input:    in,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := rt.db.MarkProcessing(ctx, in.TenantID, id); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	in.SessionID = id.String()

	result, runErr := rt.pipeline.Run(ctx, in)

	persistCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		failedStage, _ := stage.FailedStage(runErr)
		if err := rt.db.FailSession(persistCtx, in.TenantID, id, failedStage.String(), runErr.Error()); err != nil {
			rt.logger.Error("failed to record session failure", zap.String("session_id", in.SessionID), zap.Error(err))
		}
		return nil, runErr
	}
	if err := rt.db.CompleteSession(persistCtx, in.TenantID, id, result); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	return result, nil
}

func readJobDescription(ctx context.Context, o *optimizeOptions, useBrowser bool, log *zap.Logger) (string, error) {
	if o.jdPath != "" {
		data, err := os.ReadFile(o.jdPath)
		if err != nil {
			return "", fmt.Errorf("failed to read job description: %w", err)
		}
		return string(data), nil
	}

	opts := fetch.DefaultOptions()
	opts.UseBrowser = useBrowser
	posting, err := fetch.New(opts, log).JobDescription(ctx, o.jdURL)
	if err != nil {
		return "", err
	}
	log.Info("fetched job description",
		zap.String("url", posting.URL),
		zap.String("platform", string(posting.Platform)),
		zap.Bool("rendered", posting.Rendered),
		zap.Int("chars", len(posting.Text)))
	return posting.Text, nil
}

// loadResumeSections reads a JSON array of sections, or treats the whole
// file as a single experience section when it is not JSON.
func loadResumeSections(path string) ([]types.ResumeSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, fmt.Errorf("resume file %s is empty", path)
	}

	if !strings.HasPrefix(content, "[") {
		return []types.ResumeSection{{Type: types.SectionExperience, Content: content}}, nil
	}

	var sections []types.ResumeSection
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("failed to parse resume sections in %s: %w", path, err)
	}
	for i, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			return nil, fmt.Errorf("resume section %d in %s has no content", i, path)
		}
	}
	return sections, nil
}

// resumeIDFromPath derives a resume ID from a file name without extension.
func resumeIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeResult writes the result as indented JSON to path, or to out when
// path is empty.
func writeResult(out io.Writer, path string, result *types.FinalResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = out.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
