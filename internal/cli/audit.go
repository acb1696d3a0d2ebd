package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/wire"
)

// AuditCmd creates the audit command group.
func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail",
		Long:  "Query the append-only record of every orchestration event",
	}
	cmd.AddCommand(auditListCmd())
	return cmd
}

func auditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			limit, _ := cmd.Flags().GetInt("limit")
			verbose, _ := cmd.Flags().GetBool("verbose")

			events, err := wire.AuditService().ListEvents(commandContext(cmd), prefix, limit)
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("No audit events.")
				return nil
			}

			for _, e := range events {
				scope := e.ThreadID
				if e.StageID != "" {
					scope += "/" + e.StageID
				}
				fmt.Printf("%s  %-40s %s\n", e.CreatedAt, e.EventName, scope)
				if verbose {
					payload, _ := json.Marshal(e.Payload)
					fmt.Printf("    %s\n", payload)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("prefix", "", "Event name prefix, e.g. STAGE_PROGRESS or PIPELINE")
	cmd.Flags().Int("limit", 50, "Maximum number of events")
	cmd.Flags().Bool("verbose", false, "Print event payloads")
	return cmd
}
