// Package config handles configuration loading and management for conductor.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for conductor.
type Config struct {
	Anthropic   AnthropicConfig   `mapstructure:"anthropic"`
	Planner     PlannerConfig     `mapstructure:"planner"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Security    SecurityConfig    `mapstructure:"security"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// PlannerConfig holds planning settings.
type PlannerConfig struct {
	// Timeout bounds a single planning call, including rate-limit waits.
	Timeout time.Duration `mapstructure:"timeout"`
	// ConfidenceThreshold is the minimum confidence for a plan to be cached.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// CacheSize is the in-memory plan cache capacity.
	CacheSize int `mapstructure:"cache_size"`
	// CacheTTL is how long a cached plan stays valid.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// CachePath is the SQLite file backing the plan cache. Empty disables
	// persistence.
	CachePath string `mapstructure:"cache_path"`
	// RateLimit is the planning-call rate in calls per second. Zero or
	// negative disables throttling.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// CoordinatorConfig holds execution engine settings.
type CoordinatorConfig struct {
	MaxParallel         int           `mapstructure:"max_parallel"`
	DefaultSkillTimeout time.Duration `mapstructure:"default_skill_timeout"`
	DebugLogPath        string        `mapstructure:"debug_log_path"`
}

// SecurityConfig holds tool security settings.
type SecurityConfig struct {
	// PolicyPath points at a YAML policy file. Empty uses built-in defaults.
	PolicyPath string `mapstructure:"policy_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CONDUCTOR_*)
// 2. Project config (.conductor.yaml in current directory or parent)
// 3. User config (~/.config/conductor/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CONDUCTOR")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "CONDUCTOR_MODEL")
	v.BindEnv("security.policy_path", "CONDUCTOR_POLICY_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.normalize()

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.normalize()

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("planner.timeout", cfg.Planner.Timeout.String())
	v.Set("planner.confidence_threshold", cfg.Planner.ConfidenceThreshold)
	v.Set("planner.cache_size", cfg.Planner.CacheSize)
	v.Set("planner.cache_ttl", cfg.Planner.CacheTTL.String())
	v.Set("planner.cache_path", cfg.Planner.CachePath)
	v.Set("planner.rate_limit", cfg.Planner.RateLimit)
	v.Set("coordinator.max_parallel", cfg.Coordinator.MaxParallel)
	v.Set("coordinator.default_skill_timeout", cfg.Coordinator.DefaultSkillTimeout.String())
	v.Set("coordinator.debug_log_path", cfg.Coordinator.DebugLogPath)
	v.Set("security.policy_path", cfg.Security.PolicyPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	if c.Planner.Timeout <= 0 {
		c.Planner.Timeout = 20 * time.Second
	}
	if c.Planner.ConfidenceThreshold < 0 || c.Planner.ConfidenceThreshold > 1 {
		c.Planner.ConfidenceThreshold = 0.6
	}
	if c.Planner.CacheSize <= 0 {
		c.Planner.CacheSize = 256
	}
	if c.Planner.CacheTTL <= 0 {
		c.Planner.CacheTTL = 15 * time.Minute
	}
	if c.Coordinator.MaxParallel <= 0 {
		c.Coordinator.MaxParallel = 4
	}
	if c.Coordinator.DefaultSkillTimeout <= 0 {
		c.Coordinator.DefaultSkillTimeout = 30 * time.Second
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("planner.timeout", "20s")
	v.SetDefault("planner.confidence_threshold", 0.6)
	v.SetDefault("planner.cache_size", 256)
	v.SetDefault("planner.cache_ttl", "15m")
	v.SetDefault("planner.cache_path", "")
	v.SetDefault("planner.rate_limit", 0.0)

	v.SetDefault("coordinator.max_parallel", 4)
	v.SetDefault("coordinator.default_skill_timeout", "30s")
	v.SetDefault("coordinator.debug_log_path", "")

	v.SetDefault("security.policy_path", "")
}

// getUserConfigDir returns the XDG config directory for conductor.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conductor")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig searches for .conductor.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conductor.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Planner: PlannerConfig{
			Timeout:             20 * time.Second,
			ConfidenceThreshold: 0.6,
			CacheSize:           256,
			CacheTTL:            15 * time.Minute,
		},
		Coordinator: CoordinatorConfig{
			MaxParallel:         4,
			DefaultSkillTimeout: 30 * time.Second,
		},
	}
}
