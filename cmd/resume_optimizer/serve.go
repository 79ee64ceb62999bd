package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/resume-optimizer/internal/config"
	"github.com/jonathan/resume-optimizer/internal/fetch"
	"github.com/jonathan/resume-optimizer/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start an HTTP server that exposes REST endpoints for running the optimization pipeline.

Requires JWT_SECRET. Session storage and resume indexing are enabled when a database is configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadSettings(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			return runServe(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (default from config, :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	if err := requireAPIKey(cfg); err != nil {
		return err
	}
	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.UseBrowser = cfg.UseBrowser

	deps := server.Deps{
		Optimizer: rt.pipeline,
		Auth:      server.NewJWTService(jwtCfg),
		Fetcher:   fetch.New(fetchOpts, log),
		Metrics:   rt.metrics.Handler(),
	}
	if rt.db != nil {
		deps.Sessions = rt.db
		deps.Indexer = rt.store
		deps.Health = rt.db.Ping
	}

	srv, err := server.New(cfg.Server, deps, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}
