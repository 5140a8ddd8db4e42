package coordinator

import (
	"errors"
	"fmt"
)

// CancelledError indicates the caller cancelled the request before it
// finished.
var CancelledError = errors.New("request cancelled")

// SkillExecutionError wraps a failure from a single skill invocation.
type SkillExecutionError struct {
	Skill string
	Err   error
}

func (e *SkillExecutionError) Error() string {
	return fmt.Sprintf("skill %q failed: %v", e.Skill, e.Err)
}

func (e *SkillExecutionError) Unwrap() error { return e.Err }
