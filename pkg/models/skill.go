package models

import "time"

// SkillDescriptor declares a skill's identity and contract. Descriptors are
// registered once at process start and are immutable afterwards; the
// registry built from them is the single source of truth for the
// input/output key graph that plan validation walks.
type SkillDescriptor struct {
	// Name is the unique key the skill is registered and planned under.
	Name string `json:"name"`
	// Version is the skill's contract version.
	Version string `json:"version"`
	// Description is shown to the planning collaborator.
	Description string `json:"description"`
	// Category groups related skills (e.g. "retrieval", "generation", "tool").
	Category string `json:"category,omitempty"`

	// Required lists intermediate-data keys that must exist before the
	// skill runs.
	Required []string `json:"required,omitempty"`
	// Optional lists keys the skill consumes when present.
	Optional []string `json:"optional,omitempty"`
	// Outputs lists keys the skill guarantees to write on success.
	Outputs []string `json:"outputs,omitempty"`

	// RequiresExternalAccess routes the skill through the security manager.
	RequiresExternalAccess bool `json:"requires_external_access,omitempty"`
	// RequiresVetting marks content produced by this skill as untrusted
	// until a vetting collaborator has cleared it.
	RequiresVetting bool `json:"requires_vetting,omitempty"`
	// ParallelSafe allows the skill to run concurrently with independent
	// parallel-safe skills.
	ParallelSafe bool `json:"parallel_safe,omitempty"`

	// EstimatedDuration is the typical execution time, used for plan cost
	// estimates.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	// MaxDuration is the hard per-invocation timeout.
	MaxDuration time.Duration `json:"max_duration,omitempty"`
}

// ProducesKey reports whether the skill declares key among its outputs.
func (d SkillDescriptor) ProducesKey(key string) bool {
	for _, out := range d.Outputs {
		if out == key {
			return true
		}
	}
	return false
}
