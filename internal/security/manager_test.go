package security

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func okTool(ctx context.Context, operation string) (any, error) {
	return "ok", nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRateLimitWindow(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(map[string]Policy{
		"calc": {
			MaxDuration:    time.Second,
			SandboxEnabled: false,
			RateLimit:      RateLimit{Calls: 3, Window: time.Minute},
		},
	}, WithClock(clock.Now))

	ctx := context.Background()

	// The full budget is admitted.
	for i := 0; i < 3; i++ {
		res := m.ExecuteSafely(ctx, "calc", okTool, "1+1")
		if !res.Success {
			t.Fatalf("call %d rejected: %v", i+1, res.Err)
		}
	}

	// Everything past the budget is rejected within the window.
	for i := 0; i < 3; i++ {
		res := m.ExecuteSafely(ctx, "calc", okTool, "1+1")
		if !res.RateLimited {
			t.Fatalf("call %d not rate limited", i+4)
		}
		var rle *RateLimitExceededError
		if !errors.As(res.Err, &rle) {
			t.Fatalf("expected RateLimitExceededError, got %v", res.Err)
		}
		if rle.Tool != "calc" || rle.Calls != 3 {
			t.Errorf("error details = %+v", rle)
		}
	}

	// After the window rolls over the budget is available again.
	clock.Advance(61 * time.Second)
	if res := m.ExecuteSafely(ctx, "calc", okTool, "1+1"); !res.Success {
		t.Fatalf("call after window rejected: %v", res.Err)
	}
}

func TestRateLimitPerTool(t *testing.T) {
	clock := newFakeClock()
	limited := Policy{
		MaxDuration:    time.Second,
		SandboxEnabled: false,
		RateLimit:      RateLimit{Calls: 1, Window: time.Minute},
	}
	m := NewManager(map[string]Policy{"a": limited, "b": limited}, WithClock(clock.Now))

	ctx := context.Background()
	if res := m.ExecuteSafely(ctx, "a", okTool, "op"); !res.Success {
		t.Fatalf("a: %v", res.Err)
	}
	if res := m.ExecuteSafely(ctx, "a", okTool, "op"); !res.RateLimited {
		t.Fatal("second call on a should be rate limited")
	}
	// Tool b has its own window.
	if res := m.ExecuteSafely(ctx, "b", okTool, "op"); !res.Success {
		t.Fatalf("b: %v", res.Err)
	}
}

func TestBlockedToken(t *testing.T) {
	m := NewManager(nil)

	res := m.ExecuteSafely(context.Background(), "calc", okTool, "__import__('os')")
	if !res.PolicyViolation {
		t.Fatalf("expected policy violation, got %+v", res)
	}
	var violation *SecurityPolicyViolationError
	if !errors.As(res.Err, &violation) {
		t.Fatalf("expected SecurityPolicyViolationError, got %v", res.Err)
	}
	if violation.Token == "" {
		t.Errorf("violation did not name the blocked token: %+v", violation)
	}
}

func TestAllowList(t *testing.T) {
	m := NewManager(map[string]Policy{
		"fetch": {
			MaxDuration:    time.Second,
			SandboxEnabled: false,
			AllowedTokens:  []string{"https://*.example.com*"},
		},
	})

	ctx := context.Background()
	if res := m.ExecuteSafely(ctx, "fetch", okTool, "GET https://docs.example.com/page"); !res.Success {
		t.Fatalf("allow-listed operation rejected: %v", res.Err)
	}

	res := m.ExecuteSafely(ctx, "fetch", okTool, "GET https://evil.test/page")
	if !res.PolicyViolation {
		t.Fatalf("off-list operation admitted: %+v", res)
	}
	var violation *SecurityPolicyViolationError
	if !errors.As(res.Err, &violation) || violation.Reason == "" {
		t.Errorf("expected allow-list reason, got %v", res.Err)
	}
}

func TestSandboxTimeout(t *testing.T) {
	m := NewManager(map[string]Policy{
		"slow": {MaxDuration: 50 * time.Millisecond, SandboxEnabled: true},
	})

	start := time.Now()
	res := m.ExecuteSafely(context.Background(), "slow", func(ctx context.Context, op string) (any, error) {
		select {
		case <-time.After(5 * time.Second):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, "op")

	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	var timeout *SandboxTimeoutError
	if !errors.As(res.Err, &timeout) {
		t.Fatalf("expected SandboxTimeoutError, got %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced promptly: %s", elapsed)
	}
}

func TestCooperativeDeadlineCountsAsTimeout(t *testing.T) {
	m := NewManager(map[string]Policy{
		"slow": {MaxDuration: 20 * time.Millisecond, SandboxEnabled: false},
	})

	res := m.ExecuteSafely(context.Background(), "slow", func(ctx context.Context, op string) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, "op")

	if !res.TimedOut {
		t.Fatalf("expected cooperative deadline to count as timeout, got %+v", res)
	}
}

func TestCallerCancellationIsNotTimeout(t *testing.T) {
	m := NewManager(map[string]Policy{
		"slow": {MaxDuration: 5 * time.Second, SandboxEnabled: true},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := m.ExecuteSafely(ctx, "slow", func(ctx context.Context, op string) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, "op")

	if res.TimedOut {
		t.Errorf("caller cancellation misreported as timeout: %+v", res)
	}
	if res.Success {
		t.Errorf("cancelled call reported success")
	}
}

func TestSandboxRecoversPanic(t *testing.T) {
	m := NewManager(map[string]Policy{
		"flaky": {MaxDuration: time.Second, SandboxEnabled: true},
	})

	res := m.ExecuteSafely(context.Background(), "flaky", func(ctx context.Context, op string) (any, error) {
		panic("boom")
	}, "op")

	if res.Success || res.Err == nil {
		t.Fatalf("panic not converted to error: %+v", res)
	}
	if !strings.Contains(res.Err.Error(), "boom") {
		t.Errorf("panic value lost: %v", res.Err)
	}
}

func TestPolicyFallback(t *testing.T) {
	m := NewManager(nil, WithDefaultPolicy(Policy{
		MaxDuration:    time.Second,
		SandboxEnabled: false,
		BlockedTokens:  []string{"forbidden"},
	}))

	p := m.PolicyFor("anything")
	if len(p.BlockedTokens) != 1 || p.BlockedTokens[0] != "forbidden" {
		t.Errorf("fallback policy not applied: %+v", p)
	}
}

func TestSetPoliciesHotReload(t *testing.T) {
	m := NewManager(map[string]Policy{
		"calc": {MaxDuration: time.Second, SandboxEnabled: false},
	})

	ctx := context.Background()
	if res := m.ExecuteSafely(ctx, "calc", okTool, "dangerous-op"); !res.Success {
		t.Fatalf("pre-reload call failed: %v", res.Err)
	}

	m.SetPolicies(map[string]Policy{
		"calc": {MaxDuration: time.Second, SandboxEnabled: false, BlockedTokens: []string{"dangerous"}},
	}, nil)

	if res := m.ExecuteSafely(ctx, "calc", okTool, "dangerous-op"); !res.PolicyViolation {
		t.Fatalf("reloaded policy not enforced: %+v", res)
	}
}

func TestExecuteCommand(t *testing.T) {
	m := NewManager(map[string]Policy{
		"shell": {MaxDuration: 5 * time.Second, SandboxEnabled: true},
	})

	res := m.ExecuteCommand(context.Background(), "shell", "", "echo", "hello")
	if !res.Success {
		t.Fatalf("command failed: %v", res.Err)
	}
	out, ok := res.Output.(string)
	if !ok || !strings.Contains(out, "hello") {
		t.Errorf("output = %v", res.Output)
	}
}

func TestExecuteCommandScreensCommandLine(t *testing.T) {
	m := NewManager(map[string]Policy{
		"shell": {MaxDuration: time.Second, SandboxEnabled: true, BlockedTokens: []string{"rm -rf"}},
	})

	res := m.ExecuteCommand(context.Background(), "shell", "", "rm", "-rf", "/tmp/x")
	if !res.PolicyViolation {
		t.Fatalf("blocked command line admitted: %+v", res)
	}
}
