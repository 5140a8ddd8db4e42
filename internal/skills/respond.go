package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/pkg/models"
)

// respondSkill generates the user-facing response and sets it on the
// context. It is the terminal skill of the default plan.
//
// When an upstream skill has flagged external content for vetting, the
// vetting collaborator is consulted before that content enters the
// generation prompt. Unvetted or rejected content is dropped, never
// silently trusted.
func respondSkill(generate Generator, vet Vetter) registry.SkillFunc {
	return func(ctx context.Context, uif *models.ExecutionContext) error {
		contextText, _ := stringKey(uif, KeyContext)

		if fetched, ok := stringKey(uif, KeyFetchedContent); ok && fetched != "" {
			if uif.RequiresVetting() {
				safe := false
				if vet != nil {
					var err error
					safe, err = vet.Vet(ctx, fetched)
					if err != nil {
						uif.Warn("respond", "vetting_failed", "content vetting failed: %v", err)
					}
				}
				if safe {
					contextText = joinContext(contextText, fetched)
				} else {
					uif.Warn("respond", "content_unvetted", "fetched content excluded from response")
					uif.Log("respond", "dropped unvetted external content (%d bytes)", len(fetched))
				}
			} else {
				contextText = joinContext(contextText, fetched)
			}
		}

		if result, ok := stringKey(uif, KeyMathResult); ok {
			contextText = joinContext(contextText, "Computed result: "+result)
		}

		var (
			response   string
			confidence float64
		)
		if generate != nil {
			var err error
			response, confidence, err = generate.Generate(ctx, uif.Query, contextText)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
		} else {
			// No generator configured: echo what we know.
			if contextText == "" {
				response = "I don't have enough information to answer that."
				confidence = 0
			} else {
				response = contextText
				confidence = 0.3
			}
		}

		uif.Set(KeyResponse, response)
		if err := uif.SetFinalResponse(response, confidence); err != nil {
			return err
		}
		uif.Log("respond", "response generated (confidence %.2f)", confidence)
		return nil
	}
}

func stringKey(uif *models.ExecutionContext, key string) (string, bool) {
	v, ok := uif.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func joinContext(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
