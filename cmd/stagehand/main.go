package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/cli"
	"github.com/example/stagehand/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "stagehand",
		Short:   "stagehand - stage orchestration for threaded pipelines",
		Version: version.String(),
		Long: `stagehand runs a fixed, ordered pipeline of stages against a thread,
with exclusive per-stage claims, idempotent progress records, and an
append-only audit trail of every transition.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.StageCmd())
	rootCmd.AddCommand(cli.ClaimCmd())
	rootCmd.AddCommand(cli.ProgressCmd())
	rootCmd.AddCommand(cli.RunCmd())
	rootCmd.AddCommand(cli.FlowCmd())
	rootCmd.AddCommand(cli.AuditCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
