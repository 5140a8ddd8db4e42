// Package planner produces a validated skill sequence for a request, either
// from the plan cache or by consulting an external reasoning collaborator.
// Planning never fails a request: every failure path degrades to the static
// default plan.
package planner

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/internal/validate"
	"github.com/lumen-ai/conductor/pkg/models"
)

const (
	defaultTimeout             = 20 * time.Second
	defaultConfidenceThreshold = 0.6
)

// FallbackReasoning is the reasoning text attached to static-default plans.
const FallbackReasoning = "fallback"

// Result is the outcome of one planning attempt.
type Result struct {
	// Plan is the ordered skill sequence, already validation-checked.
	Plan []string
	// Confidence is the collaborator's 0-1 estimate; 0 on fallback.
	Confidence float64
	// Reasoning is the collaborator's explanation, or "fallback".
	Reasoning string
	// CacheHit is true when the plan came from the cache.
	CacheHit bool
}

// Planner generates plans against a skill registry.
type Planner struct {
	reg      *registry.Registry
	engine   *validate.Engine
	reasoner Reasoner

	cache       *Cache
	store       *Store
	limiter     *rate.Limiter
	timeout     time.Duration
	threshold   float64
	defaultPlan []string
}

// Option configures a Planner.
type Option func(*Planner)

// WithCache sets the plan cache. Defaults to a fresh cache with default
// size and TTL.
func WithCache(c *Cache) Option {
	return func(p *Planner) { p.cache = c }
}

// WithStore enables SQLite write-through persistence for cached plans.
func WithStore(s *Store) Option {
	return func(p *Planner) { p.store = s }
}

// WithTimeout bounds the reasoning collaborator call.
func WithTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithConfidenceThreshold sets the minimum confidence for caching a plan.
func WithConfidenceThreshold(t float64) Option {
	return func(p *Planner) { p.threshold = t }
}

// WithDefaultPlan overrides the static fallback plan.
func WithDefaultPlan(plan []string) Option {
	return func(p *Planner) {
		if len(plan) > 0 {
			p.defaultPlan = append([]string(nil), plan...)
		}
	}
}

// WithRateLimit throttles reasoning calls so a burst of cache misses cannot
// stampede the collaborator. Zero or negative disables the throttle.
func WithRateLimit(callsPerSecond float64, burst int) Option {
	return func(p *Planner) {
		if callsPerSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
		}
	}
}

// New creates a planner. The reasoner may be nil, in which case every
// request gets the static default plan.
func New(reg *registry.Registry, engine *validate.Engine, reasoner Reasoner, opts ...Option) *Planner {
	p := &Planner{
		reg:         reg,
		engine:      engine,
		reasoner:    reasoner,
		timeout:     defaultTimeout,
		threshold:   defaultConfidenceThreshold,
		defaultPlan: []string{"retrieve", "respond"},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewCache(0, 0)
	}
	return p
}

// Cache returns the planner's cache.
func (p *Planner) Cache() *Cache {
	return p.cache
}

// DefaultPlan returns a copy of the static fallback plan.
func (p *Planner) DefaultPlan() []string {
	return append([]string(nil), p.defaultPlan...)
}

// WarmCache loads persisted plans for the current registry fingerprint.
// No-op without a store.
func (p *Planner) WarmCache() (int, error) {
	if p.store == nil {
		return 0, nil
	}
	return p.store.Warm(p.cache, p.reg.Fingerprint())
}

// Plan produces a plan for the context's query. The cache is consulted
// first; on a miss the reasoning collaborator is called under the planner's
// deadline and the candidate is pre-checked by the validation engine. Any
// failure along the way degrades to the static default plan with confidence
// zero.
func (p *Planner) Plan(ctx context.Context, uif *models.ExecutionContext) *Result {
	fingerprint := p.reg.Fingerprint()
	key := CacheKey(Normalize(uif.Query), fingerprint)

	if entry, ok := p.cache.Get(key); ok {
		uif.Log("", "planner: cache hit (usage %d)", entry.Usage())
		return &Result{
			Plan:       append([]string(nil), entry.Plan...),
			Confidence: entry.Confidence,
			Reasoning:  entry.Reasoning,
			CacheHit:   true,
		}
	}

	if p.reasoner == nil {
		uif.Log("", "planner: no reasoner configured, using default plan")
		return p.fallback()
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(callCtx); err != nil {
			uif.Warn("", "planner_throttled", "planning call throttled: %v", err)
			return p.fallback()
		}
	}

	prompt := buildPrompt(p.reg.List(), uif.Query)
	response, err := p.reasoner.ProposePlan(callCtx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &PlannerTimeoutError{Timeout: p.timeout}
		}
		uif.Warn("", "planner_failed", "planning call failed: %v", err)
		log.Printf("[planner] reasoning call failed for task %s: %v", uif.TaskID, err)
		return p.fallback()
	}

	proposed, err := parseResponse(response)
	if err != nil {
		uif.Warn("", "planner_parse_failed", "%v", err)
		return p.fallback()
	}

	report := p.engine.Validate(proposed.Plan, uif.Keys())
	if !report.Valid {
		uif.Warn("", "planner_invalid_plan", "proposed plan rejected: %d error issues", len(report.Errors()))
		return p.fallback()
	}

	plan := report.OptimizedPlan
	if proposed.Confidence > p.threshold {
		p.cache.Put(key, plan, proposed.Confidence, proposed.Reasoning)
		if p.store != nil {
			if err := p.store.Save(key, fingerprint, plan, proposed.Confidence, proposed.Reasoning); err != nil {
				log.Printf("[planner] persist plan: %v", err)
			}
		}
	}

	uif.Log("", "planner: proposed %d-skill plan (confidence %.2f)", len(plan), proposed.Confidence)
	return &Result{
		Plan:       plan,
		Confidence: proposed.Confidence,
		Reasoning:  proposed.Reasoning,
	}
}

func (p *Planner) fallback() *Result {
	return &Result{
		Plan:       p.DefaultPlan(),
		Confidence: 0,
		Reasoning:  FallbackReasoning,
	}
}
