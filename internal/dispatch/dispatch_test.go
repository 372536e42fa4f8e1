package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"branchpilot/internal/scheduler"
	"branchpilot/pkg/models"
)

// fakeLauncher simulates workspace execution while tracking how many
// lifecycles run at the same instant.
type fakeLauncher struct {
	mu        sync.Mutex
	active    int
	maxActive int
	started   []string // group IDs in admission order
	delay     time.Duration
	failGroup map[string]bool
}

func (f *fakeLauncher) Launch(ctx context.Context, ws *models.Workspace) error {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.started = append(f.started, ws.GroupID)
	fail := f.failGroup[ws.GroupID]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if fail {
		ws.Phase = models.PhaseFailed
		return errors.New("implementing: tool exited 1")
	}
	ws.Phase = models.PhaseMerging
	return nil
}

func group(id string, priority int, deps ...string) *models.TaskGroup {
	return &models.TaskGroup{
		ID:        id,
		Tasks:     []string{"do " + id},
		Category:  models.CategoryFeature,
		Priority:  priority,
		DependsOn: deps,
	}
}

func newSched(t *testing.T, groups ...*models.TaskGroup) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(groups)
	if err != nil {
		t.Fatalf("scheduler.New() error = %v", err)
	}
	return s
}

func TestRunCompletesAllGroups(t *testing.T) {
	sched := newSched(t,
		group("g-setup", 10),
		group("g-a", 7, "g-setup"),
		group("g-b", 7, "g-setup"),
	)
	launcher := &fakeLauncher{}
	d := New(sched, launcher, 3, nil)

	report, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Succeeded != 3 || report.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 3/0", report.Succeeded, report.Failed)
	}
	if !sched.AllCompleted() {
		t.Error("scheduler not fully completed")
	}
	if len(launcher.started) != 3 || launcher.started[0] != "g-setup" {
		t.Errorf("admission order = %v, want g-setup first", launcher.started)
	}
}

func TestActiveWorkspacesNeverExceedMax(t *testing.T) {
	groups := []*models.TaskGroup{
		group("g-1", 5), group("g-2", 5), group("g-3", 5),
		group("g-4", 5), group("g-5", 5), group("g-6", 5),
	}
	launcher := &fakeLauncher{delay: 20 * time.Millisecond}
	d := New(newSched(t, groups...), launcher, 2, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if launcher.maxActive > 2 {
		t.Errorf("max concurrent workspaces = %d, want <= 2", launcher.maxActive)
	}
	if d.Capacity().Current != 0 {
		t.Errorf("capacity current after run = %d, want 0", d.Capacity().Current)
	}
}

func TestCapacityOneRunsStrictlySerially(t *testing.T) {
	launcher := &fakeLauncher{delay: 15 * time.Millisecond}
	d := New(newSched(t, group("g-1", 5), group("g-2", 5), group("g-3", 5)), launcher, 1, nil)

	start := time.Now()
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	elapsed := time.Since(start)

	if launcher.maxActive != 1 {
		t.Errorf("max concurrent workspaces = %d, want 1", launcher.maxActive)
	}
	if elapsed < 45*time.Millisecond {
		t.Errorf("elapsed = %v, want >= sum of individual durations (45ms)", elapsed)
	}
}

func TestPartialFailureDoesNotBlockSiblings(t *testing.T) {
	sched := newSched(t, group("g-a", 7), group("g-b", 7))
	launcher := &fakeLauncher{
		delay:     10 * time.Millisecond,
		failGroup: map[string]bool{"g-a": true},
	}
	d := New(sched, launcher, 2, nil)

	report, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
	if !sched.AllCompleted() {
		t.Error("failed group not marked completed; dependents would stall")
	}
}

func TestFailedGroupStillUnblocksDependents(t *testing.T) {
	sched := newSched(t,
		group("g-setup", 10),
		group("g-feature", 7, "g-setup"),
	)
	launcher := &fakeLauncher{failGroup: map[string]bool{"g-setup": true}}
	d := New(sched, launcher, 2, nil)

	report, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Workspaces) != 2 {
		t.Fatalf("ran %d workspaces, want 2", len(report.Workspaces))
	}
	if report.Failed != 1 || report.Succeeded != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
}

func TestAdmissionOrderIsPriorityDescending(t *testing.T) {
	sched := newSched(t, group("g-low", 3), group("g-mid", 6), group("g-high", 9))
	launcher := &fakeLauncher{delay: 10 * time.Millisecond}
	d := New(sched, launcher, 1, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"g-high", "g-mid", "g-low"}
	for i, id := range want {
		if launcher.started[i] != id {
			t.Errorf("started[%d] = %s, want %s", i, launcher.started[i], id)
		}
	}
}

func TestEmptySchedulerReturnsEmptyReport(t *testing.T) {
	d := New(newSched(t), &fakeLauncher{}, 3, nil)
	report, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Workspaces) != 0 {
		t.Errorf("workspaces = %d, want 0", len(report.Workspaces))
	}
}

func TestWorkspaceTasksBuiltFromGroup(t *testing.T) {
	grp := &models.TaskGroup{
		ID:       "g-feature",
		Tasks:    []string{"Add login feature", "Add logout feature"},
		Category: models.CategoryFeature,
		Priority: 7,
	}
	d := New(newSched(t, grp), &fakeLauncher{}, 1, nil)

	ws := d.newWorkspace(grp)
	if len(ws.Tasks) != 2 {
		t.Fatalf("task count = %d, want 2", len(ws.Tasks))
	}
	if ws.Tasks[0].Description != "Add login feature" {
		t.Errorf("task description = %q", ws.Tasks[0].Description)
	}
	if ws.Tasks[0].Category != models.CategoryFeature {
		t.Errorf("task category = %s, want %s", ws.Tasks[0].Category, models.CategoryFeature)
	}
	if !strings.HasPrefix(ws.Name, "feature/add-login-feature-") {
		t.Errorf("workspace name = %q, want feature/add-login-feature-* prefix", ws.Name)
	}
	if ws.Priority != 7 {
		t.Errorf("workspace priority = %d, want 7", ws.Priority)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fix crash on startup!", "fix-crash-on-startup"},
		{"Add OAuth2 login, logout and session refresh", "add-oauth2-login-logout"},
		{"???", "work"},
		{"", "work"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStallDetected(t *testing.T) {
	sched := newSched(t, group("g-1", 5))
	// Claim the only group out from under the dispatcher so nothing is
	// ready, nothing is active, and incomplete work remains.
	if got := sched.Ready(1); len(got) != 1 {
		t.Fatalf("pre-claim returned %d groups, want 1", len(got))
	}

	d := New(sched, &fakeLauncher{}, 2, nil)
	_, err := d.Run(context.Background())
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("Run() error = %v, want ErrStalled", err)
	}
	if !strings.Contains(err.Error(), "g-1") {
		t.Errorf("stall error %q does not name the remaining group", err)
	}
}

func TestCancellationStopsAdmission(t *testing.T) {
	groups := []*models.TaskGroup{
		group("g-1", 5), group("g-2", 5), group("g-3", 5), group("g-4", 5),
	}
	launcher := &fakeLauncher{delay: 30 * time.Millisecond}
	d := New(newSched(t, groups...), launcher, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := d.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(launcher.started) == len(groups) {
		t.Error("all groups admitted despite cancellation")
	}
}
