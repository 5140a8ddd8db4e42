package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/internal/security"
	"github.com/lumen-ai/conductor/internal/validate"
	"github.com/lumen-ai/conductor/pkg/models"
)

// PoolConfig contains configuration shared by all coordinators a Pool
// creates.
type PoolConfig struct {
	Registry    *registry.Registry
	Validator   *validate.Engine
	Planner     PlanSource
	SecurityMgr *security.Manager
	Logger      *DebugLogger
	// MaxParallel bounds each run's parallel-skill worker pool.
	MaxParallel int
	// SkillTimeout applies to skills without a descriptor MaxDuration.
	SkillTimeout time.Duration
}

// Pool runs many requests concurrently, one coordinator instance per
// request, and aggregates their events and reports. It is the caller-facing
// submit/cancel surface.
type Pool struct {
	cfg PoolConfig

	mu      sync.RWMutex
	running map[string]context.CancelFunc

	events  chan Event
	reports chan *Report

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a Pool.
func NewPool(cfg PoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:     cfg,
		running: make(map[string]context.CancelFunc),
		events:  make(chan Event, 256),
		reports: make(chan *Report, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit creates an execution context for the query and starts a
// coordinator for it. Hints seed the context's intermediate data. Returns
// the task ID.
func (p *Pool) Submit(query string, hints map[string]any) (string, error) {
	return p.SubmitPlan(query, hints, nil)
}

// SubmitPlan is Submit with an explicit plan that bypasses the planner.
// The plan still goes through validation.
func (p *Pool) SubmitPlan(query string, hints map[string]any, staticPlan []string) (string, error) {
	if p.cfg.Registry == nil || p.cfg.Validator == nil {
		return "", fmt.Errorf("pool requires a registry and validator")
	}
	if p.ctx.Err() != nil {
		return "", fmt.Errorf("pool is stopped")
	}

	taskID := uuid.New().String()
	uif := models.NewExecutionContext(taskID, query, hints)

	emitter := NewEventEmitter(defaultEventBufferSize)
	coord := New(
		RequiredConfig{Registry: p.cfg.Registry, Validator: p.cfg.Validator},
		WithPlanner(p.cfg.Planner),
		WithSecurityManager(p.cfg.SecurityMgr),
		WithLogger(p.cfg.Logger),
		WithEmitter(emitter),
		WithMaxParallel(p.cfg.MaxParallel),
		WithSkillTimeout(p.cfg.SkillTimeout),
	)

	runCtx, cancel := context.WithCancel(p.ctx)
	p.mu.Lock()
	p.running[taskID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.forwardEvents(emitter)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer emitter.Close()

		report := coord.Execute(runCtx, uif, staticPlan)

		p.mu.Lock()
		delete(p.running, taskID)
		p.mu.Unlock()
		cancel()

		select {
		case p.reports <- report:
		case <-p.ctx.Done():
		}
	}()

	return taskID, nil
}

// Cancel cancels a running request. Returns false if the task is not
// running.
func (p *Pool) Cancel(taskID string) bool {
	p.mu.RLock()
	cancel, ok := p.running[taskID]
	p.mu.RUnlock()
	if ok {
		cancel()
	}
	return ok
}

// Count returns the number of running requests.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.running)
}

// Events returns the aggregated event channel for all requests.
func (p *Pool) Events() <-chan Event {
	return p.events
}

// Reports returns the channel completed reports are delivered on.
func (p *Pool) Reports() <-chan *Report {
	return p.reports
}

// Stop cancels all running requests and waits for them to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
	close(p.events)
	close(p.reports)
}

func (p *Pool) forwardEvents(emitter *EventEmitter) {
	defer p.wg.Done()
	for event := range emitter.Events() {
		select {
		case p.events <- event:
			continue
		default:
		}
		select {
		case p.events <- event:
		case <-p.ctx.Done():
			return
		}
	}
}
