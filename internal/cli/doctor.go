package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/stagehand/internal/core/stage"
	"github.com/example/stagehand/internal/db"
	"github.com/example/stagehand/internal/wire"
)

// DoctorCmd creates the doctor command.
func DoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the health of the stagehand installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := color.GreenString("ok")
			bad := color.RedString("FAIL")

			dbPath, err := db.GetDBPath()
			if err != nil {
				return err
			}
			fmt.Printf("database path: %s\n", dbPath)

			database, err := db.GetDB()
			if err != nil {
				fmt.Printf("database open: %s (%v)\n", bad, err)
				return nil
			}
			fmt.Printf("database open: %s\n", ok)

			var count int
			if err := database.QueryRow("SELECT COUNT(*) FROM stages").Scan(&count); err != nil {
				fmt.Printf("schema: %s (%v)\n", bad, err)
				return nil
			}
			fmt.Printf("schema: %s (%d stages registered)\n", ok, count)

			// Catalog consistency: the dependency graph must stay acyclic.
			stages, err := wire.RegistryService().ListStages(context.Background(), false)
			if err != nil {
				fmt.Printf("catalog: %s (%v)\n", bad, err)
				return nil
			}
			defs := make(map[string]stage.Definition, len(stages))
			for _, st := range stages {
				defs[st.ID] = stage.Definition{
					ID:           st.ID,
					Position:     st.Position,
					Dependencies: st.Dependencies,
				}
			}
			if cycle := stage.DetectCycle(defs); len(cycle) > 0 {
				fmt.Printf("catalog: %s (dependency cycle %v)\n", bad, cycle)
				return nil
			}
			fmt.Printf("catalog: %s\n", ok)

			return nil
		},
	}
}
