package worktree

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeGit implements git.Runner for tests.
type fakeGit struct {
	branches    map[string]bool
	porcelain   string
	added       []string
	removed     []string
	deleted     []string
	pruneCalls  int
	addErr      error
	removeErr   error
	commitTimes map[string]time.Time
}

func newFakeGit() *fakeGit {
	return &fakeGit{branches: map[string]bool{"main": true}, commitTimes: map[string]time.Time{}}
}

func (f *fakeGit) CurrentBranch() (string, error) { return "main", nil }
func (f *fakeGit) ListBranches() ([]string, error) {
	var out []string
	for b := range f.branches {
		out = append(out, b)
	}
	return out, nil
}
func (f *fakeGit) BranchExists(name string) (bool, error) { return f.branches[name], nil }
func (f *fakeGit) DeleteBranch(name string) error {
	delete(f.branches, name)
	f.deleted = append(f.deleted, name)
	return nil
}
func (f *fakeGit) LastCommitTime(branch string) (time.Time, error) {
	t, ok := f.commitTimes[branch]
	if !ok {
		return time.Time{}, errors.New("unknown branch")
	}
	return t, nil
}
func (f *fakeGit) WorktreeAddNewBranch(path, branch, base string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.branches[branch] = true
	f.added = append(f.added, path)
	return nil
}
func (f *fakeGit) WorktreeRemove(path string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, path)
	return nil
}
func (f *fakeGit) WorktreeListPorcelain() (string, error) { return f.porcelain, nil }
func (f *fakeGit) WorktreePruneExpireNow() error {
	f.pruneCalls++
	return nil
}
func (f *fakeGit) CheckoutBranch(name string) error              { return nil }
func (f *fakeGit) MergeNoFFMessage(branch, message string) error { return nil }
func (f *fakeGit) MergeAbort() error                             { return nil }
func (f *fakeGit) Run(args ...string) (string, error)            { return "", nil }

func newTestManager(t *testing.T, fg *fakeGit) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), "/repo", "main", fg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestCreateWorktree(t *testing.T) {
	fg := newFakeGit()
	m := newTestManager(t, fg)

	wt, err := m.Create("feature/add-login")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wt.BranchName != "feature/add-login" {
		t.Errorf("unexpected branch name %q", wt.BranchName)
	}
	if len(fg.added) != 1 {
		t.Fatalf("expected 1 worktree add call, got %d", len(fg.added))
	}
	// Slashes in branch names must not nest directories.
	if got := fg.added[0]; !strings.HasSuffix(got, "feature-add-login") {
		t.Errorf("expected flattened directory name, got %q", got)
	}
}

func TestCreateNameCollision(t *testing.T) {
	fg := newFakeGit()
	fg.branches["feature/add-login"] = true
	m := newTestManager(t, fg)

	_, err := m.Create("feature/add-login")
	if !errors.Is(err, ErrNameCollision) {
		t.Errorf("expected ErrNameCollision, got %v", err)
	}
	if len(fg.added) != 0 {
		t.Errorf("collision must not create a worktree")
	}
}

func TestRemoveDeletesBranch(t *testing.T) {
	fg := newFakeGit()
	m := newTestManager(t, fg)

	wt, err := m.Create("bugfix/crash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Remove(wt, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fg.removed) != 1 {
		t.Errorf("expected 1 worktree remove call, got %d", len(fg.removed))
	}
	if len(fg.deleted) != 1 || fg.deleted[0] != "bugfix/crash" {
		t.Errorf("expected branch bugfix/crash deleted, got %v", fg.deleted)
	}
}

func TestRemoveKeepsBranchForInspection(t *testing.T) {
	fg := newFakeGit()
	m := newTestManager(t, fg)

	wt, err := m.Create("feature/half-done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Remove(wt, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fg.deleted) != 0 {
		t.Errorf("branch should be kept, got deletions %v", fg.deleted)
	}
}

func TestListParsesPorcelain(t *testing.T) {
	fg := newFakeGit()
	fg.porcelain = "worktree /repo\nHEAD abc\nbranch refs/heads/main\n\n" +
		"worktree /tmp/wt/feature-x\nHEAD def\nbranch refs/heads/feature/x\n"
	m := newTestManager(t, fg)

	worktrees, err := m.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(worktrees) != 2 {
		t.Fatalf("expected 2 worktrees, got %d", len(worktrees))
	}
	if worktrees[1].BranchName != "feature/x" {
		t.Errorf("expected branch feature/x, got %q", worktrees[1].BranchName)
	}
	if !worktrees[1].Managed() {
		t.Error("feature/x should be recognized as managed")
	}
	if worktrees[0].Managed() {
		t.Error("main should not be recognized as managed")
	}
}

func TestListOrphans(t *testing.T) {
	fg := newFakeGit()
	fg.porcelain = "worktree /repo\nbranch refs/heads/main\n\n" +
		"worktree /tmp/wt/feature-live\nbranch refs/heads/feature/live\n\n" +
		"worktree /tmp/wt/bugfix-stale\nbranch refs/heads/bugfix/stale\n"
	m := newTestManager(t, fg)

	orphans, err := m.ListOrphans([]string{"feature/live"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
	if orphans[0].BranchName != "bugfix/stale" {
		t.Errorf("expected bugfix/stale, got %q", orphans[0].BranchName)
	}
}

func TestCleanupOrphans(t *testing.T) {
	fg := newFakeGit()
	fg.porcelain = "worktree /tmp/wt/docs-old\nbranch refs/heads/docs/old\n"
	m := newTestManager(t, fg)

	var seen []string
	removed, err := m.CleanupOrphans(nil, func(path string) { seen = append(seen, path) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if len(seen) != 1 {
		t.Errorf("expected verbose callback once, got %d", len(seen))
	}
	if fg.pruneCalls == 0 {
		t.Error("expected a final prune")
	}
}
