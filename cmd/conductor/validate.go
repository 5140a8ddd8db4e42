package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumen-ai/conductor/internal/config"
	"github.com/lumen-ai/conductor/internal/validate"
)

var validateHave []string

var validateCmd = &cobra.Command{
	Use:   "validate <skill> [skill...]",
	Short: "Validate a skill pipeline without executing it",
	Long: `Check a pipeline against the skill registry: unknown skills,
unsatisfied dependencies, circular dependencies, and ordering.

A mis-ordered but satisfiable pipeline is reported with its corrected
order. Use --have to declare keys that will be seeded at submit time:

  conductor validate --have expression math-eval,respond`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		pipe, err := createPipeline(cfg)
		if err != nil {
			return err
		}

		var plan []string
		for _, arg := range args {
			plan = append(plan, splitPlan(arg)...)
		}

		have := make(map[string]bool, len(validateHave))
		for _, key := range validateHave {
			have[key] = true
		}

		report := pipe.Validator.Validate(plan, have)

		if report.Valid {
			fmt.Printf("%s Plan is valid\n", color.GreenString("✓"))
		} else {
			fmt.Printf("%s Plan is invalid\n", color.RedString("✗"))
		}

		for _, issue := range report.Issues {
			symbol := color.YellowString("⚠")
			if issue.Severity == validate.SeverityError {
				symbol = color.RedString("✗")
			}
			if issue.Skill != "" {
				fmt.Printf("  %s %s: %s\n", symbol, issue.Skill, issue.Message)
			} else {
				fmt.Printf("  %s %s\n", symbol, issue.Message)
			}
		}

		if report.Valid {
			fmt.Printf("  Order:    %s\n", strings.Join(report.OptimizedPlan, " → "))
			fmt.Printf("  Duration: ~%s\n", report.EstimatedDuration)
			return nil
		}
		return fmt.Errorf("validation failed")
	},
}

func init() {
	validateCmd.Flags().StringSliceVar(&validateHave, "have", nil, "Keys seeded at submit time")
}
