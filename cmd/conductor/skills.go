package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumen-ai/conductor/internal/config"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List registered skills",
	Long: `List the skills in the registry with their input and output keys.

The planner composes pipelines from this catalog; a skill can only run
once every required key is produced by an earlier skill or seeded via
--hint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		pipe, err := createPipeline(cfg)
		if err != nil {
			return err
		}

		descs := pipe.Registry.List()
		fmt.Printf("%d skills registered (catalog %s)\n\n",
			len(descs), pipe.Registry.Fingerprint()[:12])

		for _, d := range descs {
			fmt.Printf("%s %s\n", color.CyanString(d.Name), d.Version)
			fmt.Printf("  %s\n", d.Description)
			if len(d.Required) > 0 {
				fmt.Printf("  requires: %s\n", strings.Join(d.Required, ", "))
			}
			if len(d.Optional) > 0 {
				fmt.Printf("  optional: %s\n", strings.Join(d.Optional, ", "))
			}
			if len(d.Outputs) > 0 {
				fmt.Printf("  outputs:  %s\n", strings.Join(d.Outputs, ", "))
			}

			var traits []string
			if d.ParallelSafe {
				traits = append(traits, "parallel-safe")
			}
			if d.RequiresExternalAccess {
				traits = append(traits, "external-access")
			}
			if d.RequiresVetting {
				traits = append(traits, "requires-vetting")
			}
			if len(traits) > 0 {
				fmt.Printf("  traits:   %s\n", strings.Join(traits, ", "))
			}
			fmt.Printf("  duration: ~%s (max %s)\n\n", d.EstimatedDuration, d.MaxDuration)
		}
		return nil
	},
}
