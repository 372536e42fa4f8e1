// Package lifecycle drives one workspace through the fixed multi-phase
// workflow: planning, implementing, evolving, testing, and hand-off to
// merging. Task execution within a workspace is strictly sequential.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"branchpilot/internal/events"
	"branchpilot/internal/hooks"
	"branchpilot/internal/worktree"
	"branchpilot/pkg/models"
)

// Materializer creates the isolated working tree for a workspace.
type Materializer interface {
	Create(branchName string) (*worktree.Worktree, error)
}

// PhaseError reports which phase a workspace failed in.
type PhaseError struct {
	// Phase is the phase the failure occurred in.
	Phase models.WorkspacePhase
	// Err is the underlying failure.
	Err error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Lifecycle owns one workspace from creation through testing.
// It never panics across its boundary: every failure transitions the
// workspace to FAILED and is returned as a PhaseError.
type Lifecycle struct {
	ws       *models.Workspace
	trees    Materializer
	runner   hooks.TaskRunner
	verifier hooks.Verifier
	bus      *events.Bus
}

// New creates a lifecycle for the given workspace. The workspace must be
// in the idle phase. bus may be nil when no subscriber exists.
func New(ws *models.Workspace, trees Materializer, runner hooks.TaskRunner, verifier hooks.Verifier, bus *events.Bus) *Lifecycle {
	return &Lifecycle{
		ws:       ws,
		trees:    trees,
		runner:   runner,
		verifier: verifier,
		bus:      bus,
	}
}

// Workspace returns the workspace this lifecycle drives.
func (l *Lifecycle) Workspace() *models.Workspace {
	return l.ws
}

// Run drives the workspace from IDLE through TESTING and leaves it in
// MERGING for the merge coordinator. On any phase failure the workspace
// ends in FAILED and the PhaseError is returned; the caller treats it as
// that workspace's result, not a reason to unwind.
func (l *Lifecycle) Run(ctx context.Context) error {
	if err := l.enterPlanning(); err != nil {
		return l.fail(models.PhasePlanning, err)
	}
	if err := l.enterImplementing(ctx); err != nil {
		return l.fail(models.PhaseImplementing, err)
	}
	if err := l.enterEvolving(ctx); err != nil {
		return l.fail(models.PhaseEvolving, err)
	}
	if err := l.enterTesting(ctx); err != nil {
		return l.fail(models.PhaseTesting, err)
	}
	if err := l.advance(models.PhaseMerging); err != nil {
		return l.fail(models.PhaseMerging, err)
	}
	return nil
}

// enterPlanning materializes the isolated workspace and records the
// assigned task list.
func (l *Lifecycle) enterPlanning() error {
	if err := l.advance(models.PhasePlanning); err != nil {
		return err
	}

	wt, err := l.trees.Create(l.ws.Name)
	if err != nil {
		return fmt.Errorf("materialize workspace: %w", err)
	}
	l.ws.Path = wt.Path
	return nil
}

// enterImplementing executes each non-optimization task sequentially.
// A single task failure does not abort the phase: the workspace proceeds
// with whatever succeeded.
func (l *Lifecycle) enterImplementing(ctx context.Context) error {
	if err := l.advance(models.PhaseImplementing); err != nil {
		return err
	}
	return l.runTasks(ctx, false)
}

// enterEvolving executes optimization tasks. No-op when the workspace
// carries none.
func (l *Lifecycle) enterEvolving(ctx context.Context) error {
	if err := l.advance(models.PhaseEvolving); err != nil {
		return err
	}
	return l.runTasks(ctx, true)
}

// runTasks executes the subset of tasks selected by optimization, in
// order, recording per-task outcomes on the workspace.
func (l *Lifecycle) runTasks(ctx context.Context, optimization bool) error {
	for _, task := range l.ws.Tasks {
		if (task.Category == models.CategoryOptimization) != optimization {
			continue
		}
		if task.Status.Terminal() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("workspace stopped: %w", err)
		}

		task.Start()
		res := l.runner.RunTask(ctx, task, l.ws.Path)
		if res.Success {
			task.Complete()
			l.ws.TasksCompleted++
		} else {
			msg := res.Output
			if res.Err != nil {
				msg = res.Err.Error()
			}
			task.Fail(msg)
			l.ws.TasksFailed++

			// A stop request fails the whole phase, not just this task.
			if ctx.Err() != nil {
				return fmt.Errorf("workspace stopped: %w", ctx.Err())
			}
		}
		l.ws.UpdatedAt = time.Now()
	}
	return nil
}

// enterTesting runs the verification hook. A failed verification fails
// the workspace so it never reaches merging.
func (l *Lifecycle) enterTesting(ctx context.Context) error {
	if err := l.advance(models.PhaseTesting); err != nil {
		return err
	}

	res := l.verifier.Verify(ctx, l.ws.Path)
	if !res.Success {
		if res.Err != nil {
			return fmt.Errorf("verification failed: %w", res.Err)
		}
		return fmt.Errorf("verification failed: %s", res.Output)
	}
	return nil
}

// advance moves the workspace to the next phase, enforcing the legal
// transition order.
func (l *Lifecycle) advance(to models.WorkspacePhase) error {
	from := l.ws.Phase
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	l.ws.Phase = to
	l.ws.UpdatedAt = time.Now()
	l.publishPhase(from, to)
	return nil
}

// fail transitions the workspace to FAILED, recording the failing phase
// and message.
func (l *Lifecycle) fail(phase models.WorkspacePhase, err error) error {
	from := l.ws.Phase
	if from.CanTransition(models.PhaseFailed) {
		l.ws.Phase = models.PhaseFailed
		l.publishPhase(from, models.PhaseFailed)
	}
	l.ws.FailedPhase = phase
	l.ws.Error = err.Error()
	l.ws.UpdatedAt = time.Now()

	if l.bus != nil {
		l.bus.Publish(events.TopicWorkspace, events.WorkspaceFailedEvent{
			ID:          l.ws.ID,
			Name:        l.ws.Name,
			FailedPhase: phase,
			Reason:      err.Error(),
			Timestamp:   time.Now(),
		})
	}
	return &PhaseError{Phase: phase, Err: err}
}

func (l *Lifecycle) publishPhase(from, to models.WorkspacePhase) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(events.TopicWorkspace, events.PhaseChangedEvent{
		ID:        l.ws.ID,
		Name:      l.ws.Name,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
	})
}
