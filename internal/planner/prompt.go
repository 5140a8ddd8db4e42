package planner

import (
	"fmt"
	"strings"

	"github.com/lumen-ai/conductor/pkg/models"
)

// planningPrompt is the prompt template for dynamic plan generation. The
// first argument is the skill catalog, the second the user query.
const planningPrompt = `You are the planning component of a skill orchestrator. Choose an ordered sequence of skills that answers the user query.

Available skills:
%s

User query:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "plan": ["skill-name-1", "skill-name-2"],
  "confidence": 0.9,
  "reasoning": "One or two sentences explaining the ordering"
}

Rules:
- Use only skill names from the catalog, exactly as written
- A skill's required inputs must be produced by an earlier skill's outputs
- Prefer the shortest plan that answers the query
- confidence is your estimate (0.0-1.0) that this plan answers the query
- The final skill must produce the user-facing response`

// buildPrompt renders the planning prompt for a query against the current
// skill catalog.
func buildPrompt(descs []models.SkillDescriptor, query string) string {
	var catalog strings.Builder
	for _, d := range descs {
		fmt.Fprintf(&catalog, "- %s: %s\n", d.Name, d.Description)
		if len(d.Required) > 0 {
			fmt.Fprintf(&catalog, "    requires: %s\n", strings.Join(d.Required, ", "))
		}
		if len(d.Optional) > 0 {
			fmt.Fprintf(&catalog, "    optional: %s\n", strings.Join(d.Optional, ", "))
		}
		if len(d.Outputs) > 0 {
			fmt.Fprintf(&catalog, "    outputs: %s\n", strings.Join(d.Outputs, ", "))
		}
	}
	return fmt.Sprintf(planningPrompt, catalog.String(), query)
}
