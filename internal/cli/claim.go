package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/ctxutil"
	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/wire"
)

// ClaimCmd creates the claim command group.
func ClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Manage execution claims",
		Long:  "Acquire, release, and approve exclusive claims on (thread, stage) pairs",
	}
	cmd.PersistentFlags().String("executor", "", "Executor identity")
	cmd.PersistentFlags().String("thread", "", "Thread ID")

	cmd.AddCommand(claimAcquireCmd())
	cmd.AddCommand(claimReleaseCmd())
	cmd.AddCommand(claimApproveCmd())
	cmd.AddCommand(claimShowCmd())
	return cmd
}

func claimAcquireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "acquire [stage-id]",
		Short: "Acquire an exclusive claim on a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			threadID := defaultThread(cmd)
			if threadID == "" {
				return fmt.Errorf("no thread specified\nHint: use --thread or set thread_id in .stagehand/config.json")
			}

			resp, err := wire.ClaimService().AcquireClaim(ctx, primary.AcquireClaimRequest{
				ThreadID:   threadID,
				StageID:    args[0],
				ExecutorID: ctxutil.ExecutorFromContext(ctx),
			})
			if err != nil {
				return err
			}

			if resp.AlreadyClaimed {
				fmt.Printf("✗ Stage %s already claimed by %s\n", args[0], resp.Holder)
				return nil
			}

			fmt.Printf("✓ Claimed %s/%s (claim %s)\n", threadID, args[0], resp.Claim.ID)
			return nil
		},
	}
}

func claimReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release [claim-id]",
		Short: "Release a claim with an outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, _ := cmd.Flags().GetString("outcome")

			claim, err := wire.ClaimService().ReleaseClaim(commandContext(cmd), primary.ReleaseClaimRequest{
				ClaimID: args[0],
				Outcome: outcome,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✓ Released claim %s (%s)\n", claim.ID, claim.Status)
			return nil
		},
	}
	cmd.Flags().String("outcome", "completed", "Release outcome: completed or failed")
	return cmd
}

func claimApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [claim-id]",
		Short: "Approve a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claim, err := wire.ClaimService().ApproveClaim(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Approved claim %s\n", claim.ID)
			return nil
		},
	}
}

func claimShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [stage-id]",
		Short: "Show the active claim for a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadID := defaultThread(cmd)
			if threadID == "" {
				return fmt.Errorf("no thread specified\nHint: use --thread or set thread_id in .stagehand/config.json")
			}

			claim, err := wire.ClaimService().GetActiveClaim(commandContext(cmd), threadID, args[0])
			if err != nil {
				return err
			}
			if claim == nil {
				fmt.Printf("No active claim on %s/%s\n", threadID, args[0])
				return nil
			}

			fmt.Printf("Claim:    %s\n", claim.ID)
			fmt.Printf("Executor: %s\n", claim.ExecutorID)
			fmt.Printf("Status:   %s\n", claim.Status)
			fmt.Printf("Review:   %s\n", claim.ReviewStatus)
			fmt.Printf("Acquired: %s\n", claim.AcquiredAt)
			return nil
		},
	}
}
