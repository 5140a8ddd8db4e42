// Package coordinator turns a validated skill plan into a completed
// execution context. It owns the request state machine, enforces per-skill
// timeouts, runs declared-parallel batches through a bounded pool, and
// applies the layered fallback strategy when planning or individual skills
// fail.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumen-ai/conductor/internal/planner"
	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/internal/security"
	"github.com/lumen-ai/conductor/internal/validate"
	"github.com/lumen-ai/conductor/pkg/models"
)

const (
	defaultMaxParallel     = 4
	defaultSkillTimeout    = 30 * time.Second
	defaultEventBufferSize = 100
)

// apologyResponse is the layer-2 fallback: returned without executing any
// skill when even the static default plan fails validation.
const apologyResponse = "I'm sorry, I can't process this request right now. Please try again later."

// PlanSource produces candidate plans for a request. *planner.Planner
// implements it; tests substitute fakes.
type PlanSource interface {
	Plan(ctx context.Context, uif *models.ExecutionContext) *planner.Result
	DefaultPlan() []string
}

// RequiredConfig contains the minimal required configuration for a
// Coordinator. All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry is the skill catalog.
	Registry *registry.Registry
	// Validator is the plan validation engine.
	Validator *validate.Engine
}

// Option configures a Coordinator. Use With* functions to create Options.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	planner      PlanSource
	securityMgr  *security.Manager
	logger       *DebugLogger
	emitter      *EventEmitter
	metrics      *Metrics
	maxParallel  int
	skillTimeout time.Duration
	defaultPlan  []string
}

// WithPlanner sets the dynamic plan source. Without one, callers must
// supply static plans.
func WithPlanner(p PlanSource) Option {
	return func(o *coordinatorOptions) { o.planner = p }
}

// WithSecurityManager routes external-access skills through the manager.
func WithSecurityManager(m *security.Manager) Option {
	return func(o *coordinatorOptions) { o.securityMgr = m }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *coordinatorOptions) { o.logger = l }
}

// WithEmitter sets the event emitter.
func WithEmitter(e *EventEmitter) Option {
	return func(o *coordinatorOptions) { o.emitter = e }
}

// WithMetrics overrides the default shared Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *coordinatorOptions) { o.metrics = m }
}

// WithMaxParallel bounds the worker pool for parallel-safe skill batches.
func WithMaxParallel(n int) Option {
	return func(o *coordinatorOptions) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithSkillTimeout sets the timeout for skills whose descriptor has no
// MaxDuration.
func WithSkillTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) {
		if d > 0 {
			o.skillTimeout = d
		}
	}
}

// WithDefaultPlan sets the static fallback plan used when no planner is
// configured. With a planner, the planner's own default applies.
func WithDefaultPlan(plan []string) Option {
	return func(o *coordinatorOptions) { o.defaultPlan = append([]string(nil), plan...) }
}

// Coordinator executes requests. One coordinator processes one request at a
// time; independent requests use independent coordinators (see Pool) and
// share only the registry, the plan cache, and the security manager, all of
// which are concurrency-safe.
type Coordinator struct {
	reg       *registry.Registry
	validator *validate.Engine
	opts      coordinatorOptions
}

// New creates a Coordinator.
func New(req RequiredConfig, opts ...Option) *Coordinator {
	o := coordinatorOptions{
		maxParallel:  defaultMaxParallel,
		skillTimeout: defaultSkillTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.emitter == nil {
		o.emitter = NewEventEmitter(defaultEventBufferSize)
	}
	if o.metrics == nil {
		o.metrics = defaultMetrics()
	}
	if o.logger != nil {
		setPackageLogger(o.logger)
	}
	return &Coordinator{reg: req.Registry, validator: req.Validator, opts: o}
}

// Events returns the coordinator's event channel.
func (c *Coordinator) Events() <-chan Event {
	return c.opts.emitter.Events()
}

// Execute runs the request to completion. When staticPlan is nil and a
// planner is configured the plan is produced dynamically; otherwise
// staticPlan is used as the candidate. The returned report is always
// well-formed, whatever failed along the way.
func (c *Coordinator) Execute(ctx context.Context, uif *models.ExecutionContext, staticPlan []string) *Report {
	start := time.Now()
	c.opts.metrics.runStarted()
	defer c.opts.metrics.runFinished()

	var planning *planner.Result
	candidate := staticPlan
	if candidate == nil && c.opts.planner != nil {
		planning = c.opts.planner.Plan(ctx, uif)
		candidate = planning.Plan
		c.emit(Event{Type: EventPlanProposed, TaskID: uif.TaskID,
			Message: fmt.Sprintf("%d skills, confidence %.2f", len(candidate), planning.Confidence)})
	}
	debugLog("[coordinator] task %s: candidate plan %v", uif.TaskID, candidate)

	report := c.validator.Validate(candidate, uif.Keys())
	if !report.Valid {
		// Fallback layer 1: the static default plan.
		c.opts.metrics.countFallback("static_plan")
		c.emit(Event{Type: EventFallback, TaskID: uif.TaskID, Message: "candidate plan invalid, trying static default"})
		uif.Warn("", "plan_invalid", "candidate plan rejected: %s", summarizeIssues(report.Errors()))
		debugLog("[coordinator] task %s: candidate invalid (%s), falling back", uif.TaskID, summarizeIssues(report.Errors()))

		report = c.validator.Validate(c.defaultPlan(), uif.Keys())
		if !report.Valid {
			// Fallback layer 2: no skills run at all.
			c.opts.metrics.countFallback("minimal_response")
			c.emit(Event{Type: EventFallback, TaskID: uif.TaskID, Message: "static default plan invalid, synthesizing minimal response"})
			uif.Warn("", "registry_degraded", "static default plan rejected: %s", summarizeIssues(report.Errors()))
			_ = uif.SetFinalResponse(apologyResponse, 0)
			_ = uif.SetStatus(models.StatusFailed)
			return c.finish(uif, report, planning, start, false)
		}
	}
	for _, iss := range report.Issues {
		if iss.Severity == validate.SeverityWarning {
			uif.Warn(iss.Skill, "plan_adjusted", "%s", iss.Message)
		}
	}
	c.emit(Event{Type: EventPlanValidated, TaskID: uif.TaskID,
		Message: strings.Join(report.OptimizedPlan, " -> ")})

	if err := uif.SetPlan(report.OptimizedPlan); err != nil {
		uif.Warn("", "plan_frozen", "%v", err)
	}
	if err := uif.SetStatus(models.StatusRunning); err != nil {
		uif.Warn("", "bad_transition", "%v", err)
		return c.finish(uif, report, planning, start, false)
	}
	uif.FreezePlan()

	plan := uif.Plan()
	descs := c.describe(plan)
	batches := buildBatches(descs, c.opts.maxParallel)

	pos := 0
	for _, batch := range batches {
		if ctx.Err() != nil {
			return c.cancelled(uif, report, planning, start)
		}

		var failed []skillFailure
		if len(batch) == 1 {
			if err := c.runSkill(ctx, uif, batch[0]); err != nil {
				failed = append(failed, skillFailure{desc: batch[0], err: err})
			}
		} else {
			failed = c.runBatch(ctx, uif, batch)
		}

		if ctx.Err() != nil {
			return c.cancelled(uif, report, planning, start)
		}

		for _, f := range failed {
			c.opts.metrics.countFailure(f.desc.Name, failureReason(f.err))
			uif.Warn(f.desc.Name, "skill_failed", "%v", f.err)
			uif.Log(f.desc.Name, "skill failed: %v", f.err)
			c.emit(Event{Type: EventSkillFailed, TaskID: uif.TaskID, Skill: f.desc.Name, Error: f.err})

			if c.downstreamNeeds(descs[pos+len(batch):], f.desc, uif) {
				// Fallback layer 3: a later skill needs this output, so
				// stop and answer from whatever is already available.
				c.opts.metrics.countFallback("degraded_response")
				c.emit(Event{Type: EventFallback, TaskID: uif.TaskID, Skill: f.desc.Name,
					Message: "downstream dependency failed, synthesizing degraded response"})
				c.synthesizeDegraded(uif)
				_ = uif.SetStatus(models.StatusCompleted)
				return c.finish(uif, report, planning, start, true)
			}
			uif.Log(f.desc.Name, "no downstream skill depends on %s, continuing", f.desc.Name)
			c.emit(Event{Type: EventSkillSkipped, TaskID: uif.TaskID, Skill: f.desc.Name})
		}
		pos += len(batch)
	}

	if _, set := uif.FinalResponse(); !set {
		c.synthesizeDegraded(uif)
	}
	_ = uif.SetStatus(models.StatusCompleted)
	return c.finish(uif, report, planning, start, true)
}

// runSkill executes one skill directly against the given context, which is
// either the request context or a batch member's scratch.
func (c *Coordinator) runSkill(ctx context.Context, uif *models.ExecutionContext, desc models.SkillDescriptor) error {
	entry, err := c.reg.Get(desc.Name)
	if err != nil {
		return err
	}

	// Defensive re-check: validation proved these keys would exist, but an
	// upstream skill may have failed to write a declared output.
	for _, key := range desc.Required {
		if !uif.Has(key) {
			return &SkillExecutionError{Skill: desc.Name, Err: fmt.Errorf("required input %q missing at dispatch", key)}
		}
	}

	if desc.RequiresVetting {
		uif.FlagRequiresVetting()
	}

	timeout := desc.MaxDuration
	if timeout <= 0 {
		timeout = c.opts.skillTimeout
	}

	c.emit(Event{Type: EventSkillStarted, TaskID: uif.TaskID, Skill: desc.Name})
	uif.Log(desc.Name, "starting")
	start := time.Now()

	skillCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var runErr error
	if desc.RequiresExternalAccess && c.opts.securityMgr != nil {
		// The sandbox abandons an overrunning worker rather than killing it.
		// The worker gets a scratch, absorbed only on success, so a write
		// landing after the timeout never reaches the live context.
		scratch := uif.Scratch()
		res := c.opts.securityMgr.ExecuteSafely(skillCtx, desc.Name, func(toolCtx context.Context, _ string) (any, error) {
			return nil, entry.Fn(toolCtx, scratch)
		}, c.operationText(uif, desc))
		if res.Success {
			uif.Absorb(scratch)
			if response, set := scratch.FinalResponse(); set {
				if err := uif.SetFinalResponse(response, scratch.Confidence()); err != nil {
					uif.Warn(desc.Name, "response_conflict", "%v", err)
				}
			}
		} else {
			runErr = res.Err
		}
	} else {
		runErr = entry.Fn(skillCtx, uif)
		if runErr == nil && skillCtx.Err() == context.DeadlineExceeded {
			runErr = context.DeadlineExceeded
		}
	}

	elapsed := time.Since(start)
	uif.RecordTiming(desc.Name, elapsed)

	if runErr != nil {
		c.opts.metrics.observeSkill(desc.Name, "failed", elapsed)
		if _, ok := runErr.(*SkillExecutionError); ok {
			return runErr
		}
		return &SkillExecutionError{Skill: desc.Name, Err: runErr}
	}

	for _, key := range desc.Outputs {
		if !uif.Has(key) {
			uif.Warn(desc.Name, "missing_output", "declared output %q not written", key)
		}
	}

	uif.MarkExecuted(desc.Name)
	uif.Log(desc.Name, "completed in %s", elapsed)
	c.opts.metrics.observeSkill(desc.Name, "ok", elapsed)
	c.emit(Event{Type: EventSkillCompleted, TaskID: uif.TaskID, Skill: desc.Name, Duration: elapsed})
	return nil
}

// operationText builds the policy-screening text for an external-access
// skill: the string values of its declared inputs, falling back to the
// query.
func (c *Coordinator) operationText(uif *models.ExecutionContext, desc models.SkillDescriptor) string {
	var parts []string
	for _, key := range append(append([]string(nil), desc.Required...), desc.Optional...) {
		if v, ok := uif.Get(key); ok {
			if s, ok := v.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) == 0 {
		return uif.Query
	}
	return strings.Join(parts, " ")
}

// downstreamNeeds reports whether any not-yet-run skill requires an output
// of the failed skill that is still absent from the context.
func (c *Coordinator) downstreamNeeds(remaining []models.SkillDescriptor, failed models.SkillDescriptor, uif *models.ExecutionContext) bool {
	for _, desc := range remaining {
		for _, key := range desc.Required {
			if failed.ProducesKey(key) && !uif.Has(key) {
				return true
			}
		}
	}
	return false
}

// synthesizeDegraded writes a best-effort response from whatever the
// executed skills left behind. No-op if a response is already set.
func (c *Coordinator) synthesizeDegraded(uif *models.ExecutionContext) {
	if _, set := uif.FinalResponse(); set {
		return
	}
	if v, ok := uif.Get("context"); ok {
		if s, ok := v.(string); ok && s != "" {
			_ = uif.SetFinalResponse(
				"I could only partially process your request. Here is what I found:\n\n"+s, 0.2)
			return
		}
	}
	_ = uif.SetFinalResponse(apologyResponse, 0)
}

func (c *Coordinator) defaultPlan() []string {
	if c.opts.planner != nil {
		return c.opts.planner.DefaultPlan()
	}
	return append([]string(nil), c.opts.defaultPlan...)
}

func (c *Coordinator) describe(plan []string) []models.SkillDescriptor {
	descs := make([]models.SkillDescriptor, len(plan))
	for i, name := range plan {
		if entry, err := c.reg.Get(name); err == nil {
			descs[i] = entry.Descriptor
		}
	}
	return descs
}

func (c *Coordinator) cancelled(uif *models.ExecutionContext, report *validate.Report, planning *planner.Result, start time.Time) *Report {
	uif.Warn("", "cancelled", "%v", CancelledError)
	uif.Log("", "request cancelled by caller")
	_ = uif.SetStatus(models.StatusCancelled)
	c.emit(Event{Type: EventRunCancelled, TaskID: uif.TaskID})
	return c.finish(uif, report, planning, start, false)
}

func (c *Coordinator) finish(uif *models.ExecutionContext, report *validate.Report, planning *planner.Result, start time.Time, success bool) *Report {
	total := time.Since(start)
	c.emit(Event{Type: EventRunCompleted, TaskID: uif.TaskID, Duration: total})
	debugLog("[coordinator] task %s: finished status=%s success=%v in %s", uif.TaskID, uif.Status(), success, total)
	return &Report{
		Context:        uif,
		ExecutedSkills: uif.ExecutedSkills(),
		TotalDuration:  total,
		Validation:     report,
		Planning:       planning,
		Success:        success,
	}
}

func (c *Coordinator) emit(event Event) {
	c.opts.emitter.Emit(event)
}

func summarizeIssues(issues []validate.Issue) string {
	if len(issues) == 0 {
		return "no issues"
	}
	msgs := make([]string, len(issues))
	for i, iss := range issues {
		msgs[i] = iss.Message
	}
	return strings.Join(msgs, "; ")
}

func failureReason(err error) string {
	var rateErr *security.RateLimitExceededError
	var policyErr *security.SecurityPolicyViolationError
	var timeoutErr *security.SandboxTimeoutError
	switch {
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &policyErr):
		return "policy_violation"
	case errors.As(err, &timeoutErr):
		return "sandbox_timeout"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
