package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/wire"
)

// RunCmd creates the run command.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for a thread",
		Long:  "Execute the eligible stages for a thread in dependency and position order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			threadID := defaultThread(cmd)
			if threadID == "" {
				return fmt.Errorf("no thread specified\nHint: use --thread or set thread_id in .stagehand/config.json")
			}

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			force, _ := cmd.Flags().GetBool("force")
			skipStages, _ := cmd.Flags().GetStringSlice("skip")
			timeout, _ := cmd.Flags().GetDuration("stage-timeout")
			inputJSON, _ := cmd.Flags().GetString("input")

			var input map[string]any
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("failed to parse --input: %w", err)
				}
			}

			result, err := wire.PipelineService().Run(ctx, primary.RunPipelineRequest{
				ThreadID:     threadID,
				DryRun:       dryRun,
				Force:        force,
				SkipStages:   skipStages,
				StageTimeout: timeout,
				Input:        input,
			})
			if err != nil {
				return fmt.Errorf("pipeline run failed: %w", err)
			}

			for _, st := range result.Stages {
				marker := color.GreenString("✓")
				switch st.Outcome {
				case "failed", "timeout":
					marker = color.RedString("✗")
				case "skipped":
					marker = color.YellowString("-")
				}
				line := fmt.Sprintf("%s %s: %s", marker, st.StageID, st.Outcome)
				if st.DurationMS > 0 {
					line += fmt.Sprintf(" (%dms)", st.DurationMS)
				}
				if st.Reason != "" {
					line += " (" + st.Reason + ")"
				}
				fmt.Println(line)
			}

			label := result.Status
			if result.DryRun {
				label += " (dry-run)"
			}
			fmt.Printf("\nPipeline %s: %s\n", threadID, label)
			return nil
		},
	}

	cmd.Flags().String("executor", "", "Executor identity")
	cmd.Flags().String("thread", "", "Thread ID")
	cmd.Flags().Bool("dry-run", false, "Walk the plan without claiming or writing progress")
	cmd.Flags().Bool("force", false, "Bypass the dependency gate")
	cmd.Flags().StringSlice("skip", nil, "Stage IDs to leave out of the plan")
	cmd.Flags().Duration("stage-timeout", 5*time.Minute, "Per-stage handler timeout")
	cmd.Flags().String("input", "", "Pipeline input as a JSON object")
	return cmd
}
