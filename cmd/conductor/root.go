package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Dynamic skill orchestration engine",
	Long: `Conductor turns natural-language requests into validated skill
pipelines and executes them.

A planner proposes a pipeline from the registered skill catalog, a
validation engine checks dependencies and reorders where safe, and the
coordinator executes it with bounded parallelism and layered fallbacks,
so every request produces a response even when planning or individual
skills fail.

Core capabilities:
- Plans skill pipelines dynamically, with caching and a static fallback
- Validates dependencies, detects cycles, reorders mis-ordered plans
- Runs independent skills in parallel with deterministic merging
- Screens and sandboxes tool executions under configurable policies`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
