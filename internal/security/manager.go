package security

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ExecResult is the structured outcome of a guarded tool invocation. Exactly
// one of the failure flags is set on a non-success result; Err carries the
// corresponding typed error.
type ExecResult struct {
	// Success is true when the tool ran to completion within policy and
	// time bounds.
	Success bool
	// Output is the tool's result on success.
	Output any
	// Err is the structured failure, nil on success.
	Err error
	// RateLimited is true when the call was rejected before invocation by
	// the tool's rate limiter.
	RateLimited bool
	// PolicyViolation is true when the operation matched a blocked token or
	// missed the allow list; the tool was never invoked.
	PolicyViolation bool
	// TimedOut is true when the sandbox abandoned the tool at its
	// wall-clock limit.
	TimedOut bool
	// Duration is the wall-clock time spent, including rejected calls.
	Duration time.Duration
}

// Manager enforces per-tool security policies. One manager is shared by all
// concurrently executing requests; its rate-limit windows are the only
// cross-request mutable state and are internally synchronized.
type Manager struct {
	mu       sync.RWMutex
	policies map[string]Policy
	fallback Policy

	window *slidingWindow
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the manager's time source. Used by tests to drive the
// rate-limit window deterministically.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
		m.window = newSlidingWindow(now)
	}
}

// WithDefaultPolicy overrides the policy applied to tools without an
// explicit entry.
func WithDefaultPolicy(p Policy) ManagerOption {
	return func(m *Manager) {
		p.Validate()
		m.fallback = p
	}
}

// NewManager creates a manager with the given per-tool policies. Tools
// without an entry get DefaultPolicy.
func NewManager(policies map[string]Policy, opts ...ManagerOption) *Manager {
	m := &Manager{
		policies: make(map[string]Policy, len(policies)),
		fallback: DefaultPolicy(),
		now:      time.Now,
	}
	m.window = newSlidingWindow(m.now)
	for name, p := range policies {
		p.Validate()
		m.policies[name] = p
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PolicyFor returns the effective policy for a tool.
func (m *Manager) PolicyFor(tool string) Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.policies[tool]; ok {
		return p
	}
	return m.fallback
}

// SetPolicies atomically replaces the per-tool policy table. Used by the
// policy-file watcher on reload.
func (m *Manager) SetPolicies(policies map[string]Policy, fallback *Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies = make(map[string]Policy, len(policies))
	for name, p := range policies {
		p.Validate()
		m.policies[name] = p
	}
	if fallback != nil {
		f := *fallback
		f.Validate()
		m.fallback = f
	}
}

// ExecuteSafely runs one tool operation under the tool's policy: rate limit
// first, then token screening, then sandboxed invocation under the policy's
// wall-clock limit. Every failure mode comes back as structured data; the
// process never sees a raw panic or hang from the tool.
func (m *Manager) ExecuteSafely(ctx context.Context, tool string, fn ToolFunc, operation string) ExecResult {
	start := m.now()
	policy := m.PolicyFor(tool)

	if !m.window.allow(tool, policy.RateLimit) {
		err := &RateLimitExceededError{Tool: tool, Calls: policy.RateLimit.Calls, Window: policy.RateLimit.Window}
		return ExecResult{Err: err, RateLimited: true, Duration: m.now().Sub(start)}
	}

	if token, reason := screen(policy, operation); token != "" || reason != "" {
		err := &SecurityPolicyViolationError{Tool: tool, Token: token, Reason: reason}
		return ExecResult{Err: err, PolicyViolation: true, Duration: m.now().Sub(start)}
	}

	var (
		output   any
		timedOut bool
		err      error
	)
	if policy.SandboxEnabled {
		output, timedOut, err = runSandboxed(ctx, policy.MaxDuration, fn, operation)
	} else {
		runCtx, cancel := context.WithTimeout(ctx, policy.MaxDuration)
		output, err = fn(runCtx, operation)
		cancel()
	}
	// A cooperative tool may surface its deadline as an error instead of
	// overrunning the sandbox; fold that into the timeout flag unless the
	// caller itself was cancelled.
	if !timedOut && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		timedOut = true
	}

	elapsed := m.now().Sub(start)
	if timedOut {
		return ExecResult{
			Err:      &SandboxTimeoutError{Tool: tool, Limit: policy.MaxDuration},
			TimedOut: true,
			Duration: elapsed,
		}
	}
	if err != nil {
		return ExecResult{Err: err, Duration: elapsed}
	}
	return ExecResult{Success: true, Output: output, Duration: elapsed}
}

// ExecuteCommand runs a command-class tool as a separate OS process under
// the tool's policy. The screened operation is the full command line.
func (m *Manager) ExecuteCommand(ctx context.Context, tool, workDir, name string, args ...string) ExecResult {
	operation := name
	if len(args) > 0 {
		operation += " " + strings.Join(args, " ")
	}
	runner := NewCommandRunner()
	return m.ExecuteSafely(ctx, tool, func(ctx context.Context, op string) (any, error) {
		out, err := runner.Run(ctx, workDir, name, args...)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		return string(out), nil
	}, operation)
}
