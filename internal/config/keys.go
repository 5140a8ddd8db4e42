package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// ResolveAPIKey returns the Anthropic API key, preferring the environment
// over the config file. Bedrock deployments authenticate through AWS
// credentials instead, so callers should skip this when UseBedrock is set.
func ResolveAPIKey(cfg *Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}

	if cfg != nil {
		// An unset ${VAR} reference expands to empty, which counts as missing.
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// ValidateAPIKey performs a format check without calling the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a display-safe version of the key, keeping the
// "sk-ant-" prefix and the last four characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
