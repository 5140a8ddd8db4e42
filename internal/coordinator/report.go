package coordinator

import (
	"time"

	"github.com/lumen-ai/conductor/internal/planner"
	"github.com/lumen-ai/conductor/internal/validate"
	"github.com/lumen-ai/conductor/pkg/models"
)

// Report is the auditable outcome of one request. The caller always
// receives a well-formed report; raw internal errors stay in the context's
// warnings and trace.
type Report struct {
	// Context is the final execution context.
	Context *models.ExecutionContext
	// ExecutedSkills is the ordered list of skills that completed.
	ExecutedSkills []string
	// TotalDuration is the wall-clock time for the whole request.
	TotalDuration time.Duration
	// Validation is the report for the plan that was executed.
	Validation *validate.Report
	// Planning is the planner's result, nil when a static plan was supplied.
	Planning *planner.Result
	// Success is true unless the request failed outright or was cancelled.
	// A degraded response with warnings still counts as success.
	Success bool
}
