// Package dispatch runs ready task groups through workspace lifecycles
// under a bounded worker pool. One workspace failing never cancels its
// siblings: the dispatcher waits for all and collects each outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"branchpilot/internal/events"
	"branchpilot/internal/scheduler"
	"branchpilot/pkg/models"
)

// ErrStalled is returned when no group is ready, none is active, yet
// incomplete groups remain. It indicates an unsatisfiable dependency
// graph and is fatal to the run.
var ErrStalled = errors.New("scheduling stalled: no ready groups and none active")

// Launcher drives one workspace lifecycle to completion. An error is
// that workspace's outcome, not a reason to stop the dispatcher.
type Launcher interface {
	Launch(ctx context.Context, ws *models.Workspace) error
}

// Report summarizes one dispatcher run.
type Report struct {
	// Workspaces holds every workspace the run created, in completion order.
	Workspaces []*models.Workspace
	// Succeeded counts workspaces that reached the merge hand-off.
	Succeeded int
	// Failed counts workspaces that ended in FAILED.
	Failed int
}

// Dispatcher admits ready groups from the scheduler and fans them out to
// workspace lifecycles, never exceeding the configured capacity.
type Dispatcher struct {
	sched    *scheduler.Scheduler
	launcher Launcher
	bus      *events.Bus

	capMu sync.RWMutex
	cap   models.Capacity
}

// New creates a dispatcher. maxWorkers <= 0 is treated as 1. bus may be
// nil when no subscriber exists.
func New(sched *scheduler.Scheduler, launcher Launcher, maxWorkers int, bus *events.Bus) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Dispatcher{
		sched:    sched,
		launcher: launcher,
		bus:      bus,
		cap:      models.Capacity{Max: maxWorkers},
	}
}

// Capacity returns a snapshot of the current scheduling capacity.
func (d *Dispatcher) Capacity() models.Capacity {
	d.capMu.RLock()
	defer d.capMu.RUnlock()
	return d.cap
}

func (d *Dispatcher) setCurrent(n int) {
	d.capMu.Lock()
	d.cap.Current = n
	d.capMu.Unlock()
}

// Run admits and executes groups until the scheduler reports all
// completed. Groups are marked completed whether their workspace
// succeeded or failed, so dependents still get their turn and the final
// report carries the per-workspace outcomes. Returns ErrStalled when the
// graph cannot make progress, or the context error on cancellation.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	if d.sched.Empty() {
		return report, nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done = make(chan string, d.cap.Max*4)
	)
	active := 0

	for !d.sched.AllCompleted() {
		batch := d.sched.Ready(d.cap.Max - active)
		if len(batch) == 0 && active == 0 {
			g.Wait()
			return report, fmt.Errorf("%w (remaining: %s)", ErrStalled, strings.Join(d.sched.Remaining(), ", "))
		}

		for _, grp := range batch {
			grp := grp
			ws := d.newWorkspace(grp)
			active++
			d.setCurrent(active)
			debugLog("admit group %s (priority %d) as workspace %s [%d/%d active]",
				grp.ID, grp.Priority, ws.Name, active, d.cap.Max)
			d.publishReady(grp)

			// Workspace failures are recorded, never propagated: returning
			// an error here would tear down sibling workspaces.
			g.Go(func() error {
				err := d.launcher.Launch(ctx, ws)

				mu.Lock()
				report.Workspaces = append(report.Workspaces, ws)
				if err != nil {
					report.Failed++
				} else {
					report.Succeeded++
				}
				mu.Unlock()

				d.sched.MarkCompleted(grp.ID)
				d.publishCompleted(grp, err == nil)
				debugLog("group %s finished (workspace %s, err=%v)", grp.ID, ws.Name, err)
				done <- grp.ID
				return nil
			})
		}

		if d.sched.AllCompleted() {
			break
		}

		// Readiness only changes when a group completes, so block until
		// at least one worker hands back its slot.
		select {
		case <-done:
			active--
		case <-ctx.Done():
			g.Wait()
			d.setCurrent(0)
			return report, fmt.Errorf("dispatch interrupted: %w", ctx.Err())
		}
		for drained := false; !drained; {
			select {
			case <-done:
				active--
			default:
				drained = true
			}
		}
		d.setCurrent(active)
	}

	g.Wait()
	d.setCurrent(0)
	return report, nil
}

// newWorkspace creates the workspace for an admitted group, expanding its
// member descriptions into pending tasks.
func (d *Dispatcher) newWorkspace(grp *models.TaskGroup) *models.Workspace {
	now := time.Now()

	tasks := make([]*models.Task, 0, len(grp.Tasks))
	for _, desc := range grp.Tasks {
		tasks = append(tasks, &models.Task{
			ID:          uuid.NewString(),
			Description: desc,
			Category:    grp.Category,
			Priority:    models.PriorityMedium,
			Status:      models.TaskStatusPending,
			CreatedAt:   now,
		})
	}

	return &models.Workspace{
		ID:        uuid.NewString(),
		Name:      branchName(grp),
		GroupID:   grp.ID,
		Phase:     models.PhaseIdle,
		Tasks:     tasks,
		Priority:  grp.Priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// branchName derives a branch-style workspace name from the group's
// category prefix, a slug of its first task, and a short unique suffix.
func branchName(grp *models.TaskGroup) string {
	slug := "work"
	if len(grp.Tasks) > 0 {
		slug = slugify(grp.Tasks[0])
	}
	return grp.Category.BranchPrefix() + slug + "-" + uuid.NewString()[:8]
}

// slugify lowercases a description and keeps up to four words of
// alphanumeric runs joined by hyphens.
func slugify(s string) string {
	var words []string
	var cur strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	if len(words) > 4 {
		words = words[:4]
	}
	if len(words) == 0 {
		return "work"
	}
	return strings.Join(words, "-")
}

func (d *Dispatcher) publishReady(grp *models.TaskGroup) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.TopicGroup, events.GroupReadyEvent{
		GroupID:   grp.ID,
		Category:  grp.Category,
		Priority:  grp.Priority,
		Timestamp: time.Now(),
	})
}

func (d *Dispatcher) publishCompleted(grp *models.TaskGroup, succeeded bool) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(events.TopicGroup, events.GroupCompletedEvent{
		GroupID:   grp.ID,
		Succeeded: succeeded,
		Timestamp: time.Now(),
	})
}
