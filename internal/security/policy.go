// Package security wraps external-facing tool calls in rate limiting,
// policy screening, and sandboxed execution with hard timeouts. Every
// failure mode is reported as structured data; callers treat a non-success
// result as a recoverable failure of that one tool call.
package security

import "time"

// RateLimit is a sliding-window call budget: at most Calls invocations per
// Window.
type RateLimit struct {
	Calls  int           `yaml:"calls"`
	Window time.Duration `yaml:"window"`
}

// Enabled reports whether the limit is active.
func (l RateLimit) Enabled() bool {
	return l.Calls > 0 && l.Window > 0
}

// Policy constrains one tool-class skill.
type Policy struct {
	// AllowNetwork permits outbound network access.
	AllowNetwork bool `yaml:"allow_network"`
	// AllowFilesystem permits filesystem access.
	AllowFilesystem bool `yaml:"allow_filesystem"`
	// MaxDuration is the hard wall-clock limit per invocation.
	MaxDuration time.Duration `yaml:"max_duration"`
	// SandboxEnabled routes the call through the isolated execution unit.
	// When false the callable runs inline, still under MaxDuration.
	SandboxEnabled bool `yaml:"sandbox_enabled"`
	// AllowedTokens, when non-empty, is an allow list: the operation must
	// match at least one entry. Entries containing '*' match as globs,
	// others as case-insensitive substrings.
	AllowedTokens []string `yaml:"allowed_tokens"`
	// BlockedTokens always reject a matching operation, checked before the
	// allow list.
	BlockedTokens []string `yaml:"blocked_tokens"`
	// RateLimit bounds call frequency across all concurrent requests.
	RateLimit RateLimit `yaml:"rate_limit"`
}

// DefaultPolicy returns the policy applied to tools without an explicit
// entry: sandboxed, no network or filesystem, a conservative timeout, and a
// modest call budget.
func DefaultPolicy() Policy {
	return Policy{
		AllowNetwork:    false,
		AllowFilesystem: false,
		MaxDuration:     10 * time.Second,
		SandboxEnabled:  true,
		BlockedTokens:   []string{"import", "exec", "eval", "__", "subprocess", "os.system"},
		RateLimit:       RateLimit{Calls: 30, Window: time.Minute},
	}
}

// Validate clamps out-of-range values to safe defaults.
func (p *Policy) Validate() {
	if p.MaxDuration <= 0 {
		p.MaxDuration = 10 * time.Second
	}
	if p.RateLimit.Calls < 0 {
		p.RateLimit.Calls = 0
	}
	if p.RateLimit.Window < 0 {
		p.RateLimit.Window = 0
	}
}
