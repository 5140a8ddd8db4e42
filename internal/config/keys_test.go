package config

import (
	"os"
	"testing"
)

func TestResolveAPIKey(t *testing.T) {
	originalKey := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", originalKey)

	t.Run("from environment variable", func(t *testing.T) {
		os.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-key")

		key, err := ResolveAPIKey(&Config{})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-env-key" {
			t.Errorf("expected 'sk-ant-env-key', got %q", key)
		}

		os.Unsetenv("ANTHROPIC_API_KEY")
	})

	t.Run("from config", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"},
		}
		key, err := ResolveAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-config-key" {
			t.Errorf("expected 'sk-ant-config-key', got %q", key)
		}
	})

	t.Run("unresolved reference treated as missing", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")
		os.Unsetenv("CONDUCTOR_MISSING_VAR")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "${CONDUCTOR_MISSING_VAR}"},
		}
		if _, err := ResolveAPIKey(cfg); err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("resolved reference from config", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")
		t.Setenv("CONDUCTOR_KEYS_TEST_VAR", "sk-ant-expanded-key")

		cfg := &Config{
			Anthropic: AnthropicConfig{APIKey: "${CONDUCTOR_KEYS_TEST_VAR}"},
		}
		key, err := ResolveAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-expanded-key" {
			t.Errorf("expected expanded key, got %q", key)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		os.Unsetenv("ANTHROPIC_API_KEY")

		if _, err := ResolveAPIKey(&Config{}); err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "sk-ant-REDACTED", false},
		{"empty key", "", true},
		{"wrong prefix", "sk-openai-abcdefghij1234567890", true},
		{"too short", "sk-ant-abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"empty", "", "(not set)"},
		{"short", "sk-ant-abc", "***"},
		{"normal", "sk-ant-REDACTED", "sk-ant-...wxyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskAPIKey(tt.key); got != tt.want {
				t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
