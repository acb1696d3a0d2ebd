package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/config"
	"github.com/example/stagehand/internal/db"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize stagehand in the current directory",
		Long:  "Create .stagehand/config.json, open the database, and seed the default pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			executorID, _ := cmd.Flags().GetString("executor")
			threadID, _ := cmd.Flags().GetString("thread")
			seed, _ := cmd.Flags().GetBool("seed")

			if executorID == "" {
				hostname, err := os.Hostname()
				if err != nil {
					hostname = "local"
				}
				executorID = "executor-" + hostname
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			cfg := &config.Config{
				Version:    "1",
				ExecutorID: executorID,
				ThreadID:   threadID,
			}
			if err := config.SaveConfig(cwd, cfg); err != nil {
				return err
			}

			database, err := db.GetDB()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}

			if seed {
				if err := db.SeedDefaultPipeline(database); err != nil {
					return fmt.Errorf("failed to seed default pipeline: %w", err)
				}
			}

			fmt.Printf("✓ Initialized stagehand (executor: %s)\n", executorID)
			return nil
		},
	}

	cmd.Flags().String("executor", "", "Executor identity for this workspace")
	cmd.Flags().String("thread", "", "Default thread ID")
	cmd.Flags().Bool("seed", true, "Seed the default pipeline when the catalog is empty")
	return cmd
}
