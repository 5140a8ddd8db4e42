package planner

import (
	"fmt"
	"time"
)

// PlannerTimeoutError indicates the reasoning collaborator did not answer
// within the planner's deadline.
type PlannerTimeoutError struct {
	Timeout time.Duration
}

func (e *PlannerTimeoutError) Error() string {
	return fmt.Sprintf("planner call exceeded %s deadline", e.Timeout)
}

// PlannerParseError indicates the collaborator's output did not contain a
// usable plan.
type PlannerParseError struct {
	Reason string
}

func (e *PlannerParseError) Error() string {
	return fmt.Sprintf("unparseable planner output: %s", e.Reason)
}
