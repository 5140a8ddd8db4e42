package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumen-ai/conductor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Display the effective configuration after merging defaults, the
user config, project overrides, and environment variables.

Configuration is stored at ~/.config/conductor/config.yaml
Project-specific overrides can be placed in .conductor.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		key, _ := config.ResolveAPIKey(cfg)

		fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(key))
		fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
		fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
		if cfg.Anthropic.UseBedrock {
			fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
			fmt.Printf("anthropic.aws_profile: %s\n", cfg.Anthropic.AWSProfile)
		}
		fmt.Printf("planner.timeout: %s\n", cfg.Planner.Timeout)
		fmt.Printf("planner.confidence_threshold: %.2f\n", cfg.Planner.ConfidenceThreshold)
		fmt.Printf("planner.cache_size: %d\n", cfg.Planner.CacheSize)
		fmt.Printf("planner.cache_ttl: %s\n", cfg.Planner.CacheTTL)
		fmt.Printf("planner.cache_path: %s\n", orDefault(cfg.Planner.CachePath, "(in-memory only)"))
		fmt.Printf("planner.rate_limit: %g\n", cfg.Planner.RateLimit)
		fmt.Printf("coordinator.max_parallel: %d\n", cfg.Coordinator.MaxParallel)
		fmt.Printf("coordinator.default_skill_timeout: %s\n", cfg.Coordinator.DefaultSkillTimeout)
		fmt.Printf("coordinator.debug_log_path: %s\n", orDefault(cfg.Coordinator.DebugLogPath, "(disabled)"))
		fmt.Printf("security.policy_path: %s\n", orDefault(cfg.Security.PolicyPath, "(built-in defaults)"))

		fmt.Printf("\nUser config: %s\n", config.GetUserConfigPath())
		if project := config.GetProjectConfigPath(); project != "" {
			fmt.Printf("Project config: %s\n", project)
		}
	},
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
