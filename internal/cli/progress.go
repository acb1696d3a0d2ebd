package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/ctxutil"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/wire"
)

// ProgressCmd creates the progress command group.
func ProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Report and inspect stage progress",
		Long:  "Record per-stage outcomes for a thread, or inspect what has been recorded",
	}
	cmd.PersistentFlags().String("executor", "", "Executor identity")
	cmd.PersistentFlags().String("thread", "", "Thread ID")

	cmd.AddCommand(progressReportCmd())
	cmd.AddCommand(progressShowCmd())
	cmd.AddCommand(progressSummaryCmd())
	return cmd
}

func progressReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [stage-id] [status]",
		Short: "Report progress for a stage",
		Long:  "Record an outcome for a (thread, stage) pair. Status 'done' is accepted as an alias of 'completed'.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			threadID := defaultThread(cmd)
			if threadID == "" {
				return fmt.Errorf("no thread specified\nHint: use --thread or set thread_id in .stagehand/config.json")
			}

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			claimID, _ := cmd.Flags().GetString("claim")
			startedAt, _ := cmd.Flags().GetString("started-at")
			completedAt, _ := cmd.Flags().GetString("completed-at")
			durationMS, _ := cmd.Flags().GetInt64("duration-ms")
			errorMessage, _ := cmd.Flags().GetString("error")
			outputJSON, _ := cmd.Flags().GetString("output")

			var outputData map[string]any
			if outputJSON != "" {
				if err := json.Unmarshal([]byte(outputJSON), &outputData); err != nil {
					return fmt.Errorf("failed to parse --output: %w", err)
				}
			}

			resp, err := wire.ProgressService().ReportProgress(ctx, primary.ReportProgressRequest{
				ThreadID:     threadID,
				StageID:      args[0],
				Status:       args[1],
				AgentID:      ctxutil.ExecutorFromContext(ctx),
				ClaimID:      claimID,
				DryRun:       dryRun,
				StartedAt:    startedAt,
				CompletedAt:  completedAt,
				DurationMS:   durationMS,
				OutputData:   outputData,
				ErrorMessage: errorMessage,
			})
			if err != nil {
				return err
			}

			if resp.DryRun {
				fmt.Printf("✓ Dry-run: would record %s/%s as %s\n", threadID, args[0], args[1])
				return nil
			}

			fmt.Printf("✓ Recorded %s/%s: %s\n", threadID, args[0], resp.Progress.Status)
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Audit the attempt without writing progress")
	cmd.Flags().String("claim", "", "Claim ID authorizing this report")
	cmd.Flags().String("started-at", "", "Start timestamp (RFC3339)")
	cmd.Flags().String("completed-at", "", "Completion timestamp (RFC3339)")
	cmd.Flags().Int64("duration-ms", 0, "Duration in milliseconds")
	cmd.Flags().String("error", "", "Error message for failed stages")
	cmd.Flags().String("output", "", "Stage output as a JSON object")
	return cmd
}

func progressShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [stage-id]",
		Short: "Show the recorded progress for a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID := defaultThread(cmd)
			if threadID == "" {
				return fmt.Errorf("no thread specified\nHint: use --thread or set thread_id in .stagehand/config.json")
			}

			p, err := wire.ProgressService().GetProgress(commandContext(cmd), threadID, args[0])
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Printf("No progress recorded for %s/%s\n", threadID, args[0])
				return nil
			}

			fmt.Printf("Stage:    %s\n", p.StageID)
			fmt.Printf("Status:   %s\n", p.Status)
			if p.AgentID != "" {
				fmt.Printf("Agent:    %s\n", p.AgentID)
			}
			if p.DurationMS > 0 {
				fmt.Printf("Duration: %dms\n", p.DurationMS)
			}
			if p.ErrorMessage != "" {
				fmt.Printf("Error:    %s\n", p.ErrorMessage)
			}
			fmt.Printf("Updated:  %s\n", p.UpdatedAt)
			return nil
		},
	}
}

func progressSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the per-stage status histogram for a thread",
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID := defaultThread(cmd)
			if threadID == "" {
				return fmt.Errorf("no thread specified\nHint: use --thread or set thread_id in .stagehand/config.json")
			}

			counts, err := wire.ProgressService().AggregateByStatus(commandContext(cmd), threadID)
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Printf("No progress recorded for thread %s\n", threadID)
				return nil
			}

			for stageID, byStatus := range counts {
				fmt.Printf("%s:", stageID)
				for status, count := range byStatus {
					fmt.Printf(" %s=%d", status, count)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
