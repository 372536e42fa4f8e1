package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"branchpilot/pkg/models"
)

// RetryConfig configures exponential backoff retry behavior for hooks.
type RetryConfig struct {
	InitialInterval time.Duration // Initial retry interval (default 100ms)
	MaxInterval     time.Duration // Maximum retry interval (default 5s)
	MaxElapsedTime  time.Duration // Maximum total retry time (default 30s)
	Multiplier      float64       // Backoff multiplier (default 2.0)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		Multiplier:      2.0,
	}
}

// CommandHook runs a configured shell command per invocation.
// The task description and working tree are passed through environment
// variables, so any executable can serve as the implementation tool.
type CommandHook struct {
	// Command is the shell command run via "sh -c".
	Command string
	// Timeout bounds one invocation, retries excluded.
	Timeout time.Duration
	// Retry configures backoff between failed attempts.
	Retry RetryConfig

	// breaker fails fast once the external tool is clearly down.
	breaker *gobreaker.CircuitBreaker
}

// NewCommandHook creates a hook for the given shell command.
func NewCommandHook(command string, timeout time.Duration) *CommandHook {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "hook",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// User cancellation is not a tool failure.
			return errors.Is(err, context.Canceled)
		},
	})

	return &CommandHook{
		Command: command,
		Timeout: timeout,
		Retry:   DefaultRetryConfig(),
		breaker: cb,
	}
}

// Verify CommandHook implements both hook interfaces at compile time.
var (
	_ TaskRunner = (*CommandHook)(nil)
	_ Verifier   = (*CommandHook)(nil)
)

// RunTask invokes the command for one task with retry and breaker
// protection.
func (h *CommandHook) RunTask(ctx context.Context, task *models.Task, workDir string) Result {
	env := []string{
		"BRANCHPILOT_TASK_ID=" + task.ID,
		"BRANCHPILOT_TASK_DESC=" + task.Description,
		"BRANCHPILOT_TASK_CATEGORY=" + string(task.Category),
	}
	if task.Tool != "" {
		env = append(env, "BRANCHPILOT_TOOL="+task.Tool)
	}
	return h.invoke(ctx, workDir, env)
}

// Verify invokes the command as a verification pass over the workspace.
func (h *CommandHook) Verify(ctx context.Context, workDir string) Result {
	return h.invoke(ctx, workDir, []string{"BRANCHPILOT_PHASE=verify"})
}

// invoke runs the command with backoff retry inside the circuit breaker.
func (h *CommandHook) invoke(ctx context.Context, workDir string, env []string) Result {
	var output []byte

	operation := func() error {
		runCtx := ctx
		if h.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, h.Timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(runCtx, "sh", "-c", h.Command)
		cmd.Dir = workDir
		cmd.Env = append(os.Environ(), env...)

		out, err := cmd.CombinedOutput()
		output = out
		if err != nil {
			// Cancellation of the parent context is permanent.
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("hook command: %w", err)
		}
		return nil
	}

	_, err := h.breaker.Execute(func() (interface{}, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = h.Retry.InitialInterval
		bo.MaxInterval = h.Retry.MaxInterval
		bo.MaxElapsedTime = h.Retry.MaxElapsedTime
		bo.Multiplier = h.Retry.Multiplier
		return nil, backoff.Retry(operation, backoff.WithContext(bo, ctx))
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			err = fmt.Errorf("hook unavailable: %w", err)
		}
		return Result{Success: false, Output: string(output), Err: err}
	}
	return Result{Success: true, Output: string(output)}
}
