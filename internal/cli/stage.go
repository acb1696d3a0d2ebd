package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/stagehand/internal/ports/primary"
	"github.com/example/stagehand/internal/wire"
)

// StageCmd creates the stage command group.
func StageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Manage the stage catalog",
		Long:  "Register, list, and deactivate pipeline stages",
	}
	cmd.PersistentFlags().String("executor", "", "Executor identity")

	cmd.AddCommand(stageListCmd())
	cmd.AddCommand(stageRegisterCmd())
	cmd.AddCommand(stageShowCmd())
	cmd.AddCommand(stageDeactivateCmd())
	cmd.AddCommand(stageLoadCmd())
	return cmd
}

func stageListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages in pipeline order",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			stages, err := wire.RegistryService().ListStages(commandContext(cmd), !all)
			if err != nil {
				return fmt.Errorf("failed to list stages: %w", err)
			}

			if len(stages) == 0 {
				fmt.Println("No stages registered. Run 'stagehand init' or 'stagehand stage load'.")
				return nil
			}

			for _, st := range stages {
				marker := color.GreenString("●")
				if !st.IsActive {
					marker = color.New(color.Faint).Sprint("○")
				}
				required := ""
				if st.IsRequired {
					required = color.YellowString(" [required]")
				}
				deps := ""
				if len(st.Dependencies) > 0 {
					deps = " ← " + strings.Join(st.Dependencies, ", ")
				}
				fmt.Printf("%s %2d %s%s%s\n", marker, st.Position, st.ID, required, deps)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Include inactive stages")
	return cmd
}

func stageRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [stage-id]",
		Short: "Register a new stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, _ := cmd.Flags().GetInt("position")
			required, _ := cmd.Flags().GetBool("required")
			deps, _ := cmd.Flags().GetStringSlice("depends-on")

			st, err := wire.RegistryService().RegisterStage(commandContext(cmd), primary.RegisterStageRequest{
				StageID:      args[0],
				Position:     position,
				IsRequired:   required,
				Dependencies: deps,
			})
			if err != nil {
				return fmt.Errorf("failed to register stage: %w", err)
			}

			fmt.Printf("✓ Registered stage %s at position %d\n", st.ID, st.Position)
			return nil
		},
	}
	cmd.Flags().Int("position", 0, "Position in the pipeline order")
	cmd.Flags().Bool("required", false, "Halt the pipeline when this stage fails")
	cmd.Flags().StringSlice("depends-on", nil, "Stage IDs that must complete first")
	return cmd
}

func stageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [stage-id]",
		Short: "Show a stage definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := wire.RegistryService().GetStage(commandContext(cmd), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Stage:        %s\n", st.ID)
			fmt.Printf("Position:     %d\n", st.Position)
			fmt.Printf("Active:       %t\n", st.IsActive)
			fmt.Printf("Required:     %t\n", st.IsRequired)
			fmt.Printf("Dependencies: %s\n", strings.Join(st.Dependencies, ", "))
			fmt.Printf("Created:      %s\n", st.CreatedAt)
			return nil
		},
	}
}

func stageDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [stage-id]",
		Short: "Deactivate a stage without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.RegistryService().DeactivateStage(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Deactivated stage %s\n", args[0])
			return nil
		},
	}
}

// pipelineFile is the YAML shape accepted by stage load.
type pipelineFile struct {
	Stages []struct {
		ID           string         `yaml:"id"`
		Position     int            `yaml:"position"`
		Required     bool           `yaml:"required"`
		Dependencies []string       `yaml:"dependencies"`
		Config       map[string]any `yaml:"config"`
	} `yaml:"stages"`
}

func stageLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [file.yaml]",
		Short: "Bulk-register stages from a pipeline definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read pipeline file: %w", err)
			}

			var file pipelineFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse pipeline file: %w", err)
			}

			req := primary.LoadPipelineRequest{}
			for _, s := range file.Stages {
				req.Stages = append(req.Stages, primary.RegisterStageRequest{
					StageID:      s.ID,
					Position:     s.Position,
					IsRequired:   s.Required,
					Dependencies: s.Dependencies,
					Config:       s.Config,
				})
			}

			loaded, err := wire.RegistryService().LoadPipeline(commandContext(cmd), req)
			if err != nil {
				return fmt.Errorf("failed to load pipeline: %w", err)
			}

			fmt.Printf("✓ Registered %d stages\n", len(loaded))
			return nil
		},
	}
}
