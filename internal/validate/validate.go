// Package validate performs static analysis over a proposed skill plan:
// existence, dependency satisfaction, cycle detection, stable reordering,
// and cost estimation. Plans are validated before every execution.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/pkg/models"
)

// ErrCycleDetected indicates a circular dependency among plan skills.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyUnsatisfiedError indicates a required input key that no earlier
// skill produces and that is absent from the initial context.
type DependencyUnsatisfiedError struct {
	Skill string
	Key   string
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("skill %q requires key %q which nothing in the plan provides", e.Skill, e.Key)
}

// CircularDependencyError indicates skills in the plan depend on each other.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CircularDependencyError) Unwrap() error { return ErrCycleDetected }

// Severity classifies a validation issue.
type Severity string

const (
	// SeverityError invalidates the plan.
	SeverityError Severity = "error"
	// SeverityWarning is advisory; the plan remains executable.
	SeverityWarning Severity = "warning"
)

// Issue is a single finding from plan validation.
type Issue struct {
	Severity Severity `json:"severity"`
	Skill    string   `json:"skill,omitempty"`
	Message  string   `json:"message"`
}

// Report is the outcome of validating one candidate plan.
type Report struct {
	// Valid is true iff no error-severity issues remain after optimization.
	Valid bool `json:"valid"`
	// Issues lists all findings, errors and warnings alike.
	Issues []Issue `json:"issues,omitempty"`
	// OptimizedPlan is the plan to execute: the input plan, reordered when
	// dependencies demanded it.
	OptimizedPlan []string `json:"optimized_plan"`
	// EstimatedDuration is the sum of the planned skills' estimates.
	EstimatedDuration time.Duration `json:"estimated_duration"`
	// Graph maps each plan entry to the entries it must run after.
	Graph map[string][]string `json:"graph,omitempty"`
}

// Errors returns the error-severity issues.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, iss := range r.Issues {
		if iss.Severity == SeverityError {
			out = append(out, iss)
		}
	}
	return out
}

// Engine validates plans against a skill registry.
type Engine struct {
	reg *registry.Registry
}

// New creates a validation engine backed by the given registry.
func New(reg *registry.Registry) *Engine {
	return &Engine{reg: reg}
}

// Validate analyzes the candidate plan. The have set holds intermediate-data
// keys already present on the context (initial hints or keys surviving a
// prior partial run); those keys satisfy requirements without a producer in
// the plan.
func (e *Engine) Validate(plan []string, have map[string]bool) *Report {
	report := &Report{OptimizedPlan: append([]string(nil), plan...)}

	if len(plan) == 0 {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityError,
			Message:  "plan is empty",
		})
		return report
	}

	// Existence. Without descriptors for every entry there is no contract
	// graph to analyze, so unknown names end validation here.
	descs := make([]models.SkillDescriptor, len(plan))
	unknown := false
	for i, name := range plan {
		entry, err := e.reg.Get(name)
		if err != nil {
			report.Issues = append(report.Issues, Issue{
				Severity: SeverityError,
				Skill:    name,
				Message:  fmt.Sprintf("unknown skill %q", name),
			})
			unknown = true
			continue
		}
		descs[i] = entry.Descriptor
	}
	if unknown {
		return report
	}

	// Dependency satisfaction and edge inference. Nodes are plan positions
	// so a skill appearing twice is two nodes. For each required key the
	// producer is the nearest earlier output; a later-only producer yields a
	// back edge, which the reordering pass resolves.
	edges := make([][]int, len(plan))
	satisfied := true
	for i, desc := range descs {
		for _, key := range desc.Required {
			if have[key] {
				continue
			}
			producer := findProducer(descs, i, key)
			if producer < 0 {
				satisfied = false
				err := &DependencyUnsatisfiedError{Skill: desc.Name, Key: key}
				report.Issues = append(report.Issues, Issue{
					Severity: SeverityError,
					Skill:    desc.Name,
					Message:  err.Error(),
				})
				continue
			}
			edges[i] = append(edges[i], producer)
		}
	}
	report.Graph = graphByLabel(plan, edges)
	if !satisfied {
		return report
	}

	// Cycle detection over the inferred edges.
	if cycle := findCycle(plan, edges); cycle != nil {
		err := &CircularDependencyError{Cycle: cycle}
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityError,
			Skill:    cycle[0],
			Message:  err.Error(),
		})
		return report
	}

	// Stable topological reorder. Positions with no ordering constraint keep
	// their relative order; any movement is reported as a warning.
	order := stableTopoSort(edges)
	optimized := make([]string, len(plan))
	moved := false
	for newPos, oldPos := range order {
		optimized[newPos] = plan[oldPos]
		if newPos != oldPos {
			moved = true
		}
	}
	report.OptimizedPlan = optimized
	if moved {
		report.Issues = append(report.Issues, Issue{
			Severity: SeverityWarning,
			Message: fmt.Sprintf("plan reordered to satisfy dependencies: %s",
				strings.Join(optimized, " -> ")),
		})
	}

	for _, desc := range descs {
		report.EstimatedDuration += desc.EstimatedDuration
	}

	report.Valid = len(report.Errors()) == 0
	return report
}

// findProducer returns the plan position whose outputs include key,
// preferring the nearest position before consumer, falling back to the
// nearest position after it. Returns -1 if no producer exists.
func findProducer(descs []models.SkillDescriptor, consumer int, key string) int {
	for i := consumer - 1; i >= 0; i-- {
		if descs[i].ProducesKey(key) {
			return i
		}
	}
	for i := consumer + 1; i < len(descs); i++ {
		if descs[i].ProducesKey(key) {
			return i
		}
	}
	return -1
}

// findCycle runs a three-color DFS over the dependency edges and returns the
// names along the first cycle found, or nil.
func findCycle(plan []string, edges [][]int) []string {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make([]int, len(plan))

	var visit func(node int, path []int) []string
	visit = func(node int, path []int) []string {
		if state[node] == visited {
			return nil
		}
		if state[node] == visiting {
			start := 0
			for i, p := range path {
				if p == node {
					start = i
					break
				}
			}
			cycle := make([]string, 0, len(path)-start+1)
			for _, p := range path[start:] {
				cycle = append(cycle, plan[p])
			}
			return append(cycle, plan[node])
		}
		state[node] = visiting
		for _, dep := range edges[node] {
			if cycle := visit(dep, append(path, node)); cycle != nil {
				return cycle
			}
		}
		state[node] = visited
		return nil
	}

	for node := range plan {
		if state[node] == unvisited {
			if cycle := visit(node, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// stableTopoSort orders plan positions so every position follows its
// dependencies, choosing the lowest original position whenever more than one
// is ready. The result is a permutation of positions; on an already-ordered
// plan it is the identity, which makes optimization idempotent.
func stableTopoSort(edges [][]int) []int {
	n := len(edges)
	indegree := make([]int, n)
	dependents := make([][]int, n)
	for node, deps := range edges {
		seen := make(map[int]bool, len(deps))
		for _, dep := range deps {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[node]++
			dependents[dep] = append(dependents[dep], node)
		}
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			// Unreachable once findCycle has passed.
			break
		}
		done[next] = true
		order = append(order, next)
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}
	return order
}

// graphByLabel renders position-indexed edges with human-readable labels.
// Duplicate skill names get a positional suffix so the labels stay unique.
func graphByLabel(plan []string, edges [][]int) map[string][]string {
	counts := make(map[string]int)
	for _, name := range plan {
		counts[name]++
	}
	labels := make([]string, len(plan))
	seen := make(map[string]int)
	for i, name := range plan {
		if counts[name] > 1 {
			seen[name]++
			labels[i] = fmt.Sprintf("%s#%d", name, seen[name])
		} else {
			labels[i] = name
		}
	}

	graph := make(map[string][]string, len(plan))
	for node, deps := range edges {
		graph[labels[node]] = nil
		for _, dep := range deps {
			graph[labels[node]] = append(graph[labels[node]], labels[dep])
		}
	}
	return graph
}
