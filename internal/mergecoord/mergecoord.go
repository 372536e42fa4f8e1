// Package mergecoord serializes reintegration of finished workspaces
// into the mainline. Merging is the one place shared mutable state is
// touched, so concurrency is deliberately removed here: merges run one
// at a time, priority-descending, with a settling delay between them.
package mergecoord

import (
	"context"
	"fmt"
	"sort"
	"time"

	"branchpilot/internal/events"
	"branchpilot/internal/git"
	"branchpilot/pkg/models"
)

// DefaultSettleDelay bounds the chance of a follow-up git operation
// racing the just-completed merge in the same mainline checkout.
const DefaultSettleDelay = 2 * time.Second

// Cleanup destroys a workspace's working tree and branch after a
// successful merge.
type Cleanup interface {
	Destroy(path, branch string) error
}

// Report summarizes one merge pass.
type Report struct {
	// Merged counts workspaces successfully integrated into the mainline.
	Merged int
	// Failed counts workspaces whose merge failed; each is marked FAILED
	// with the error recorded, and later merges still proceed.
	Failed int
	// Skipped counts workspaces that were not eligible (not in MERGING).
	Skipped int
}

// Coordinator merges finished workspaces into the mainline one at a time.
type Coordinator struct {
	git      git.MergeOperations
	cleanup  Cleanup
	mainline string
	settle   time.Duration
	bus      *events.Bus
}

// New creates a coordinator merging into mainline. settle <= 0 selects
// DefaultSettleDelay. cleanup and bus may be nil.
func New(gitOps git.MergeOperations, cleanup Cleanup, mainline string, settle time.Duration, bus *events.Bus) *Coordinator {
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Coordinator{
		git:      gitOps,
		cleanup:  cleanup,
		mainline: mainline,
		settle:   settle,
		bus:      bus,
	}
}

// MergeAll integrates every workspace that finished its lifecycle,
// highest priority first. Each merge attempt is independent: a failure
// marks that workspace FAILED and the pass continues. Workspaces not in
// the merge hand-off state are skipped, never merged.
func (c *Coordinator) MergeAll(ctx context.Context, workspaces []*models.Workspace) (*Report, error) {
	report := &Report{}

	var eligible []*models.Workspace
	for _, ws := range workspaces {
		if ws.Phase != models.PhaseMerging {
			report.Skipped++
			continue
		}
		eligible = append(eligible, ws)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].Name < eligible[j].Name
	})

	for i, ws := range eligible {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("merge pass interrupted: %w", err)
		}

		if err := c.mergeOne(ws); err != nil {
			ws.Phase = models.PhaseFailed
			ws.FailedPhase = models.PhaseMerging
			ws.Error = err.Error()
			ws.UpdatedAt = time.Now()
			report.Failed++
			c.publishCompleted(ws, false, err.Error())
		} else {
			ws.Phase = models.PhaseCompleted
			ws.UpdatedAt = time.Now()
			report.Merged++
			c.publishCompleted(ws, true, "")
		}

		if i < len(eligible)-1 {
			if err := c.settleDown(ctx); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// mergeOne performs a single no-ff merge of the workspace branch into
// the mainline. On failure the in-progress merge is aborted so the
// mainline checkout is left clean for the next attempt.
func (c *Coordinator) mergeOne(ws *models.Workspace) error {
	c.publishStarted(ws)

	if err := c.git.CheckoutBranch(c.mainline); err != nil {
		return fmt.Errorf("checkout %s: %w", c.mainline, err)
	}

	message := fmt.Sprintf("Merge %s (%d/%d tasks completed)", ws.Name, ws.TasksCompleted, len(ws.Tasks))
	if err := c.git.MergeNoFFMessage(ws.Name, message); err != nil {
		if abortErr := c.git.MergeAbort(); abortErr != nil {
			return fmt.Errorf("merge %s: %v (abort also failed: %w)", ws.Name, err, abortErr)
		}
		return fmt.Errorf("merge %s: %w", ws.Name, err)
	}

	if c.cleanup != nil {
		if err := c.cleanup.Destroy(ws.Path, ws.Name); err != nil {
			// The merge landed; a leftover worktree is an inconvenience,
			// not a merge failure.
			c.publishCompleted(ws, true, fmt.Sprintf("cleanup: %v", err))
		}
	}
	return nil
}

// settleDown waits out the inter-merge delay, honoring cancellation.
func (c *Coordinator) settleDown(ctx context.Context) error {
	timer := time.NewTimer(c.settle)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("merge pass interrupted: %w", ctx.Err())
	}
}

func (c *Coordinator) publishStarted(ws *models.Workspace) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.TopicMerge, events.MergeStartedEvent{
		ID:        ws.ID,
		Name:      ws.Name,
		Priority:  ws.Priority,
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) publishCompleted(ws *models.Workspace, success bool, reason string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.TopicMerge, events.MergeCompletedEvent{
		ID:        ws.ID,
		Name:      ws.Name,
		Success:   success,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}
