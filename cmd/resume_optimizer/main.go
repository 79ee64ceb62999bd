// Package main provides the resume_optimizer command line: it runs the
// optimization pipeline, indexes resumes for retrieval and serves the REST API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "resume_optimizer",
		Short: "ATS resume optimizer",
		Long: `Rewrites resume sections against a job description, scores the result for ATS compatibility and reports skill gaps.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bindFlags(cmd)

	cmd.AddCommand(
		newOptimizeCmd(opts),
		newIndexCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(),
	)
	return cmd
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
