package security

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// ToolFunc is the callable form of an external-facing tool operation. The
// operation string is the text screened against the tool's policy.
type ToolFunc func(ctx context.Context, operation string) (any, error)

// sandboxResult carries a worker's outcome across the join point.
type sandboxResult struct {
	output any
	err    error
}

// runSandboxed invokes fn inside a supervised worker with a hard wall-clock
// limit. On overrun or caller cancellation the worker is abandoned and its
// eventual result discarded; the buffered channel lets it exit without
// leaking a blocked goroutine.
func runSandboxed(ctx context.Context, limit time.Duration, fn ToolFunc, operation string) (any, bool, error) {
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan sandboxResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- sandboxResult{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		output, err := fn(runCtx, operation)
		done <- sandboxResult{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, false, res.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, nil
	}
}

// CommandRunner executes command-class tools as separate OS processes so a
// timeout kills the process rather than abandoning a goroutine.
type CommandRunner struct{}

// NewCommandRunner creates a CommandRunner.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{}
}

// Run executes a command under ctx and returns combined stdout/stderr
// output. The process is killed when ctx expires.
func (r *CommandRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}
