// Package registry provides the in-memory skill catalog. Skills are
// registered once at process start; during request processing the registry
// is read-only.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/lumen-ai/conductor/pkg/models"
)

// SkillFunc is the callable form of a skill. It reads and writes the
// execution context and must honor ctx cancellation on any blocking work.
type SkillFunc func(ctx context.Context, uif *models.ExecutionContext) error

// DuplicateSkillError indicates a skill name was registered twice.
type DuplicateSkillError struct {
	Name string
}

func (e *DuplicateSkillError) Error() string {
	return fmt.Sprintf("skill %q is already registered", e.Name)
}

// UnknownSkillError indicates a lookup for a name absent from the registry.
type UnknownSkillError struct {
	Name string
}

func (e *UnknownSkillError) Error() string {
	return fmt.Sprintf("unknown skill %q", e.Name)
}

// Entry pairs a descriptor with its callable.
type Entry struct {
	Descriptor models.SkillDescriptor
	Fn         SkillFunc
}

// Registry is the catalog of registered skills.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{skills: make(map[string]Entry)}
}

// Register adds a skill under its descriptor name.
func (r *Registry) Register(desc models.SkillDescriptor, fn SkillFunc) error {
	if desc.Name == "" {
		return fmt.Errorf("skill descriptor has empty name")
	}
	if fn == nil {
		return fmt.Errorf("skill %q has nil callable", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[desc.Name]; exists {
		return &DuplicateSkillError{Name: desc.Name}
	}
	r.skills[desc.Name] = Entry{Descriptor: desc, Fn: fn}
	return nil
}

// Get returns the entry for the given skill name.
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.skills[name]
	if !ok {
		return Entry{}, &UnknownSkillError{Name: name}
	}
	return entry, nil
}

// Has reports whether the name resolves without returning the entry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// List returns all descriptors sorted by name. Sorted output keeps planner
// prompts and registry fingerprints deterministic.
func (r *Registry) List() []models.SkillDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]models.SkillDescriptor, 0, len(r.skills))
	for _, entry := range r.skills {
		descs = append(descs, entry.Descriptor)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Size returns the number of registered skills.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Fingerprint returns a stable hash of the registered skill set. Plan cache
// entries carry the fingerprint they were computed against, so any change to
// the catalog invalidates them.
func (r *Registry) Fingerprint() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.skills))
	for name, entry := range r.skills {
		names = append(names, name+"@"+entry.Descriptor.Version)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
