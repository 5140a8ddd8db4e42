package security

import (
	"fmt"
	"time"
)

// RateLimitExceededError indicates a tool call was rejected by its rate
// limiter before any invocation was attempted.
type RateLimitExceededError struct {
	Tool   string
	Calls  int
	Window time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("tool %q exceeded rate limit of %d calls per %s", e.Tool, e.Calls, e.Window)
}

// SecurityPolicyViolationError indicates the requested operation matched a
// blocked token or missed the allow list; the tool was never invoked.
type SecurityPolicyViolationError struct {
	Tool   string
	Token  string
	Reason string
}

func (e *SecurityPolicyViolationError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("tool %q rejected by policy: blocked token %q", e.Tool, e.Token)
	}
	return fmt.Sprintf("tool %q rejected by policy: %s", e.Tool, e.Reason)
}

// SandboxTimeoutError indicates the isolated execution unit exceeded its
// wall-clock limit and was abandoned.
type SandboxTimeoutError struct {
	Tool  string
	Limit time.Duration
}

func (e *SandboxTimeoutError) Error() string {
	return fmt.Sprintf("tool %q exceeded sandbox time limit of %s", e.Tool, e.Limit)
}
