package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/pkg/models"
)

const retrieveLimit = 5

// retrieveSkill queries the search collaborator and assembles the retrieval
// context. With no provider it writes an empty context so downstream skills
// still have their required key.
func retrieveSkill(search SearchProvider) registry.SkillFunc {
	return func(ctx context.Context, uif *models.ExecutionContext) error {
		if search == nil {
			uif.Log("retrieve", "no search provider configured, empty context")
			uif.Set(KeyContext, "")
			uif.Set(KeyDocuments, []Document{})
			return nil
		}

		docs, err := search.Search(ctx, uif.Query, retrieveLimit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		var sb strings.Builder
		for i, doc := range docs {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			if doc.Title != "" {
				fmt.Fprintf(&sb, "[%s]\n", doc.Title)
			}
			sb.WriteString(doc.Content)
		}

		uif.Set(KeyContext, sb.String())
		uif.Set(KeyDocuments, docs)
		uif.Log("retrieve", "retrieved %d documents", len(docs))
		return nil
	}
}
