package main

import (
	"fmt"

	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const indexConcurrency = 4

type indexOptions struct {
	tenantID string
	resumeID string
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	o := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Embed and store resume files for retrieval",
		Long: `Splits each resume file into one chunk per line, embeds the chunks and replaces any chunks previously stored for the same resume.

The resume ID defaults to the file name without extension; --resume-id overrides it when a single file is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, root, o, args)
		},
	}
	cmd.Flags().StringVar(&o.tenantID, "tenant", "local", "Tenant ID the resumes belong to")
	cmd.Flags().StringVar(&o.resumeID, "resume-id", "", "Resume ID (single file only)")
	return cmd
}

type indexJob struct {
	path     string
	resumeID string
	sections []types.ResumeSection
	chunks   int
}

func runIndex(cmd *cobra.Command, root *rootOptions, o *indexOptions, paths []string) error {
	if o.resumeID != "" && len(paths) > 1 {
		return fmt.Errorf("--resume-id can only be used with a single file")
	}

	cfg, err := root.loadSettings(cmd)
	if err != nil {
		return err
	}

	jobs := make([]*indexJob, len(paths))
	for i, path := range paths {
		sections, err := loadResumeSections(path)
		if err != nil {
			return err
		}
		id := o.resumeID
		if id == "" {
			id = resumeIDFromPath(path)
		}
		jobs[i] = &indexJob{path: path, resumeID: id, sections: sections}
	}

	if err := requireAPIKey(cfg); err != nil {
		return err
	}
	if err := requireDatabaseURL(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexConcurrency)
	for _, job := range jobs {
		g.Go(func() error {
			n, err := rt.store.IndexResume(gctx, o.tenantID, job.resumeID, job.sections)
			if err != nil {
				return fmt.Errorf("failed to index %s: %w", job.path, err)
			}
			job.chunks = n
			log.Debug("indexed resume", zap.String("resume_id", job.resumeID), zap.Int("chunks", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, job := range jobs {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s as %q: %d chunks\n", job.path, job.resumeID, job.chunks)
	}
	return nil
}
