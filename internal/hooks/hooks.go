// Package hooks defines the boundary to external tools: task execution,
// verification, and the implementation-producing command itself are opaque
// to the core and treated as black boxes with timeouts.
package hooks

import (
	"context"

	"branchpilot/pkg/models"
)

// Result is the outcome of one external hook invocation.
type Result struct {
	// Success reports whether the hook succeeded.
	Success bool
	// Output is the free-text output of the tool.
	Output string
	// Err holds the invocation error, if any.
	Err error
}

// TaskRunner executes one task against a workspace working tree.
type TaskRunner interface {
	// RunTask invokes the external implementation tool for the task.
	// workDir is the workspace's isolated working tree.
	RunTask(ctx context.Context, task *models.Task, workDir string) Result
}

// Verifier runs the external test/verification procedure for a workspace.
type Verifier interface {
	// Verify reports pass/fail plus diagnostic text.
	Verify(ctx context.Context, workDir string) Result
}
