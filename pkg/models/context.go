package models

import (
	"fmt"
	"sync"
	"time"
)

// Status represents the lifecycle state of an execution context.
type Status string

const (
	// StatusPending indicates the request has been accepted but not started.
	StatusPending Status = "pending"
	// StatusRunning indicates skills are executing against the context.
	StatusRunning Status = "running"
	// StatusCompleted indicates the request finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the request terminated with an unrecoverable failure.
	StatusFailed Status = "failed"
	// StatusCancelled indicates the caller cancelled the request.
	StatusCancelled Status = "cancelled"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// LogEntry is one line of the ordered execution trace.
type LogEntry struct {
	// Time is when the entry was recorded.
	Time time.Time `json:"time"`
	// Skill is the skill the entry relates to, if any.
	Skill string `json:"skill,omitempty"`
	// Message is the human-readable trace line.
	Message string `json:"message"`
}

// Warning records a non-fatal problem encountered during execution.
type Warning struct {
	// Skill is the skill that produced the warning, if any.
	Skill string `json:"skill,omitempty"`
	// Code classifies the warning (e.g. "skill_failed", "rate_limited").
	Code string `json:"code"`
	// Message describes what happened.
	Message string `json:"message"`
}

// ExecutionContext is the mutable data carrier threaded through a single
// request. One context exists per request; it is mutated only by the
// coordinator and by the skills it invokes. All mutation goes through
// methods so the invariants (frozen plan, write-once response, append-only
// trace) hold even when a parallel batch of skills shares the context.
type ExecutionContext struct {
	// TaskID uniquely identifies this request.
	TaskID string `json:"task_id"`
	// SessionID groups related requests, if the caller supplied one.
	SessionID string `json:"session_id,omitempty"`
	// UserID identifies the requesting user, if known.
	UserID string `json:"user_id,omitempty"`
	// Query is the input request text. Immutable after creation.
	Query string `json:"query"`
	// CreatedAt is when the context was created.
	CreatedAt time.Time `json:"created_at"`

	mu sync.Mutex

	status          Status
	plan            []string
	planFrozen      bool
	executed        []string
	intermediate    map[string]any
	finalResponse   string
	responseSet     bool
	confidence      float64
	timings         map[string]time.Duration
	logTrace        []LogEntry
	warnings        []Warning
	securityContext map[string]any
	requiresVetting bool
	written         map[string]bool
}

// NewExecutionContext creates a pending context for the given query.
// Initial data seeds the intermediate map (e.g. session hints or keys
// surviving a prior partial run).
func NewExecutionContext(taskID, query string, initial map[string]any) *ExecutionContext {
	uif := &ExecutionContext{
		TaskID:          taskID,
		Query:           query,
		CreatedAt:       time.Now(),
		status:          StatusPending,
		intermediate:    make(map[string]any, len(initial)),
		timings:         make(map[string]time.Duration),
		securityContext: make(map[string]any),
	}
	for k, v := range initial {
		uif.intermediate[k] = v
	}
	return uif
}

// Status returns the current lifecycle status.
func (c *ExecutionContext) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus transitions the context to the given status. Transitions out of
// a terminal status are rejected.
func (c *ExecutionContext) SetStatus(s Status) error {
	if !s.Valid() {
		return fmt.Errorf("invalid status %q", s)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status.Terminal() {
		return fmt.Errorf("cannot transition from terminal status %q to %q", c.status, s)
	}
	c.status = s
	return nil
}

// SetPlan replaces the execution plan. Fails once the plan is frozen.
func (c *ExecutionContext) SetPlan(plan []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.planFrozen {
		return fmt.Errorf("execution plan is frozen")
	}
	c.plan = append([]string(nil), plan...)
	return nil
}

// FreezePlan makes the execution plan immutable. Called by the coordinator
// at the transition to running.
func (c *ExecutionContext) FreezePlan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planFrozen = true
}

// Plan returns a copy of the execution plan.
func (c *ExecutionContext) Plan() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.plan...)
}

// MarkExecuted appends a skill to the executed list.
func (c *ExecutionContext) MarkExecuted(skill string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executed = append(c.executed, skill)
}

// ExecutedSkills returns a copy of the ordered executed-skill list.
func (c *ExecutionContext) ExecutedSkills() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.executed...)
}

// Set writes a key into the intermediate data map.
func (c *ExecutionContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intermediate[key] = value
	if c.written != nil {
		c.written[key] = true
	}
}

// Get reads a key from the intermediate data map.
func (c *ExecutionContext) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.intermediate[key]
	return v, ok
}

// Has reports whether the key is present in the intermediate data map.
func (c *ExecutionContext) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the set of keys currently present in the intermediate data.
func (c *ExecutionContext) Keys() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make(map[string]bool, len(c.intermediate))
	for k := range c.intermediate {
		keys[k] = true
	}
	return keys
}

// SetFinalResponse records the final response. It may be called at most
// once; later calls fail.
func (c *ExecutionContext) SetFinalResponse(response string, confidence float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.responseSet {
		return fmt.Errorf("final response already set")
	}
	c.finalResponse = response
	c.confidence = clamp01(confidence)
	c.responseSet = true
	return nil
}

// FinalResponse returns the final response and whether it has been set.
func (c *ExecutionContext) FinalResponse() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalResponse, c.responseSet
}

// Confidence returns the confidence score attached to the final response.
func (c *ExecutionContext) Confidence() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confidence
}

// RecordTiming stores the wall-clock duration of a skill invocation.
func (c *ExecutionContext) RecordTiming(skill string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timings[skill] = d
}

// Timings returns a copy of the per-skill timing map.
func (c *ExecutionContext) Timings() map[string]time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Duration, len(c.timings))
	for k, v := range c.timings {
		out[k] = v
	}
	return out
}

// Log appends an entry to the ordered trace.
func (c *ExecutionContext) Log(skill, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logTrace = append(c.logTrace, LogEntry{
		Time:    time.Now(),
		Skill:   skill,
		Message: fmt.Sprintf(format, args...),
	})
}

// LogTrace returns a copy of the ordered trace.
func (c *ExecutionContext) LogTrace() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.logTrace...)
}

// Warn appends a non-fatal warning.
func (c *ExecutionContext) Warn(skill, code, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = append(c.warnings, Warning{
		Skill:   skill,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// Warnings returns a copy of the warnings list.
func (c *ExecutionContext) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Warning(nil), c.warnings...)
}

// SecuritySet writes a key into the opaque security context blob.
func (c *ExecutionContext) SecuritySet(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.securityContext[key] = value
}

// SecurityGet reads a key from the security context blob.
func (c *ExecutionContext) SecurityGet(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.securityContext[key]
	return v, ok
}

// FlagRequiresVetting marks fetched external content as untrusted. The flag
// is sticky: once set it stays set for the remainder of the request.
func (c *ExecutionContext) FlagRequiresVetting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requiresVetting = true
}

// RequiresVetting reports whether any skill has flagged external content
// for vetting.
func (c *ExecutionContext) RequiresVetting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requiresVetting
}

// Scratch returns a private copy of the context for one member of a
// parallel skill batch. The scratch starts with a snapshot of the
// intermediate data and records which keys the member writes; after the
// batch joins, the coordinator merges scratches back in declared plan order
// so concurrent writers of the same key resolve deterministically.
func (c *ExecutionContext) Scratch() *ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()

	scratch := &ExecutionContext{
		TaskID:          c.TaskID,
		SessionID:       c.SessionID,
		UserID:          c.UserID,
		Query:           c.Query,
		CreatedAt:       c.CreatedAt,
		status:          c.status,
		plan:            append([]string(nil), c.plan...),
		planFrozen:      true,
		intermediate:    make(map[string]any, len(c.intermediate)),
		timings:         make(map[string]time.Duration),
		securityContext: make(map[string]any, len(c.securityContext)),
		requiresVetting: c.requiresVetting,
		written:         make(map[string]bool),
	}
	for k, v := range c.intermediate {
		scratch.intermediate[k] = v
	}
	for k, v := range c.securityContext {
		scratch.securityContext[k] = v
	}
	return scratch
}

// WrittenKeys returns the keys written through Set since the scratch was
// created. Always empty on a root context.
func (c *ExecutionContext) WrittenKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.written))
	for k := range c.written {
		keys = append(keys, k)
	}
	return keys
}

// Absorb merges a scratch back into the context: written intermediate keys,
// timings, trace, warnings, and the sticky vetting flag. Called once per
// batch member in declared plan order.
func (c *ExecutionContext) Absorb(scratch *ExecutionContext) {
	scratch.mu.Lock()
	written := make(map[string]any, len(scratch.written))
	for k := range scratch.written {
		written[k] = scratch.intermediate[k]
	}
	timings := make(map[string]time.Duration, len(scratch.timings))
	for k, v := range scratch.timings {
		timings[k] = v
	}
	trace := append([]LogEntry(nil), scratch.logTrace...)
	warnings := append([]Warning(nil), scratch.warnings...)
	executed := append([]string(nil), scratch.executed...)
	vetting := scratch.requiresVetting
	scratch.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range written {
		c.intermediate[k] = v
		if c.written != nil {
			c.written[k] = true
		}
	}
	for k, v := range timings {
		c.timings[k] = v
	}
	c.logTrace = append(c.logTrace, trace...)
	c.warnings = append(c.warnings, warnings...)
	c.executed = append(c.executed, executed...)
	if vetting {
		c.requiresVetting = true
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
