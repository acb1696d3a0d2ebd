// Package cli contains the cobra commands for the stagehand binary.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/config"
	"github.com/example/stagehand/internal/ctxutil"
)

// commandContext builds the request context for a command: executor
// identity from the --executor flag, falling back to the local config.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := context.Background()

	executorID, _ := cmd.Flags().GetString("executor")
	if executorID == "" {
		if cwd, err := os.Getwd(); err == nil {
			if cfg, err := config.LoadConfig(cwd); err == nil {
				executorID = cfg.ExecutorID
			}
		}
	}
	if executorID != "" {
		ctx = ctxutil.WithExecutorID(ctx, executorID)
	}
	return ctx
}

// defaultThread resolves the thread for a command: the --thread flag,
// falling back to the local config.
func defaultThread(cmd *cobra.Command) string {
	threadID, _ := cmd.Flags().GetString("thread")
	if threadID != "" {
		return threadID
	}
	if cwd, err := os.Getwd(); err == nil {
		if cfg, err := config.LoadConfig(cwd); err == nil {
			return cfg.ThreadID
		}
	}
	return ""
}
