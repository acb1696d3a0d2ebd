package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/wire"
)

// FlowCmd creates the flow command.
func FlowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Show the pipeline flow view",
		Long:  "Per-stage view joining the catalog, the most recent claim, progress counts, and the last audit timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, _ := cmd.Flags().GetStringSlice("thread")

			entries, err := wire.FlowService().GetFlowView(commandContext(cmd), threads)
			if err != nil {
				return fmt.Errorf("failed to build flow view: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No active stages.")
				return nil
			}

			for _, e := range entries {
				fmt.Printf("%2d %s\n", e.Stage.Position, color.New(color.Bold).Sprint(e.Stage.ID))

				if e.Claim != nil {
					claimLine := fmt.Sprintf("   claim: %s by %s (%s", e.Claim.Status, e.Claim.ExecutorID, e.Claim.ReviewStatus)
					if e.Claim.Status == "active" {
						claimLine = "   claim: " + color.CyanString("%s by %s (%s", e.Claim.Status, e.Claim.ExecutorID, e.Claim.ReviewStatus)
					}
					fmt.Println(claimLine + ")")
				} else {
					fmt.Println("   claim: none")
				}

				if len(e.ProgressCounts) == 0 {
					fmt.Println("   progress: never attempted")
				} else {
					line := "   progress:"
					for status, count := range e.ProgressCounts {
						line += fmt.Sprintf(" %s=%d", colorStatus(status), count)
					}
					fmt.Println(line)
				}

				if e.LastAuditTimestamp != "" {
					fmt.Printf("   last audit: %s\n", e.LastAuditTimestamp)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("thread", nil, "Restrict the view to these threads")
	return cmd
}

func colorStatus(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "failed", "timeout":
		return color.RedString(status)
	case "running":
		return color.CyanString(status)
	case "skipped", "paused":
		return color.YellowString(status)
	default:
		return status
	}
}
