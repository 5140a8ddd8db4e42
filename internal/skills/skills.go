// Package skills provides the built-in baseline skills the static default
// plan relies on: retrieval, response generation, sandboxed math
// evaluation, and web fetching. The semantic work happens in external
// collaborators reached through the interfaces below; the skills wire those
// collaborators into the execution context contract.
package skills

import (
	"context"
	"time"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/pkg/models"
)

// Well-known intermediate-data keys written by the built-in skills.
const (
	// KeyContext is the assembled retrieval context.
	KeyContext = "context"
	// KeyDocuments is the raw retrieved document list.
	KeyDocuments = "documents"
	// KeyResponse is the generated response text.
	KeyResponse = "response"
	// KeyExpression is the math expression input.
	KeyExpression = "expression"
	// KeyMathResult is the evaluated math result.
	KeyMathResult = "math_result"
	// KeyURL is the web-fetch target.
	KeyURL = "url"
	// KeyFetchedContent is the fetched page body.
	KeyFetchedContent = "fetched_content"
)

// Document is one retrieval hit.
type Document struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// SearchProvider is the external retrieval collaborator (vector store,
// search index).
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// SearchFunc adapts a function to SearchProvider.
type SearchFunc func(ctx context.Context, query string, limit int) ([]Document, error)

// Search calls the underlying function.
func (f SearchFunc) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	return f(ctx, query, limit)
}

// Generator is the external text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, query, contextText string) (response string, confidence float64, err error)
}

// GenerateFunc adapts a function to Generator.
type GenerateFunc func(ctx context.Context, query, contextText string) (string, float64, error)

// Generate calls the underlying function.
func (f GenerateFunc) Generate(ctx context.Context, query, contextText string) (string, float64, error) {
	return f(ctx, query, contextText)
}

// Vetter is the external content-vetting collaborator. Skills consult it
// before trusting fetched external content once the context's vetting flag
// is set.
type Vetter interface {
	Vet(ctx context.Context, content string) (safe bool, err error)
}

// VetFunc adapts a function to Vetter.
type VetFunc func(ctx context.Context, content string) (bool, error)

// Vet calls the underlying function.
func (f VetFunc) Vet(ctx context.Context, content string) (bool, error) {
	return f(ctx, content)
}

// Providers bundles the external collaborators the built-in skills need.
// Nil members degrade gracefully: retrieval yields an empty context,
// generation echoes the context, vetting distrusts everything.
type Providers struct {
	Search   SearchProvider
	Generate Generator
	Vet      Vetter
}

// RegisterBuiltins registers the baseline skills with the registry.
func RegisterBuiltins(reg *registry.Registry, p Providers) error {
	entries := []struct {
		desc models.SkillDescriptor
		fn   registry.SkillFunc
	}{
		{retrieveDescriptor(), retrieveSkill(p.Search)},
		{respondDescriptor(), respondSkill(p.Generate, p.Vet)},
		{mathEvalDescriptor(), mathEvalSkill()},
		{webFetchDescriptor(), webFetchSkill(nil)},
	}
	for _, e := range entries {
		if err := reg.Register(e.desc, e.fn); err != nil {
			return err
		}
	}
	return nil
}

func retrieveDescriptor() models.SkillDescriptor {
	return models.SkillDescriptor{
		Name:              "retrieve",
		Version:           "1.0.0",
		Description:       "Retrieves documents relevant to the query and assembles a context for response generation.",
		Category:          "retrieval",
		Outputs:           []string{KeyContext, KeyDocuments},
		ParallelSafe:      true,
		EstimatedDuration: 2 * time.Second,
		MaxDuration:       15 * time.Second,
	}
}

func respondDescriptor() models.SkillDescriptor {
	return models.SkillDescriptor{
		Name:              "respond",
		Version:           "1.0.0",
		Description:       "Generates the user-facing response from the assembled context.",
		Category:          "generation",
		Required:          []string{KeyContext},
		Optional:          []string{KeyMathResult, KeyFetchedContent},
		Outputs:           []string{KeyResponse},
		EstimatedDuration: 5 * time.Second,
		MaxDuration:       60 * time.Second,
	}
}

func mathEvalDescriptor() models.SkillDescriptor {
	return models.SkillDescriptor{
		Name:                   "math-eval",
		Version:                "1.0.0",
		Description:            "Evaluates an arithmetic expression in a sandbox.",
		Category:               "tool",
		Required:               []string{KeyExpression},
		Outputs:                []string{KeyMathResult},
		RequiresExternalAccess: true,
		ParallelSafe:           true,
		EstimatedDuration:      100 * time.Millisecond,
		MaxDuration:            5 * time.Second,
	}
}

func webFetchDescriptor() models.SkillDescriptor {
	return models.SkillDescriptor{
		Name:                   "web-fetch",
		Version:                "1.0.0",
		Description:            "Fetches the content of a URL. Fetched content is untrusted until vetted.",
		Category:               "tool",
		Required:               []string{KeyURL},
		Outputs:                []string{KeyFetchedContent},
		RequiresExternalAccess: true,
		RequiresVetting:        true,
		ParallelSafe:           true,
		EstimatedDuration:      3 * time.Second,
		MaxDuration:            20 * time.Second,
	}
}
