// Package worktree manages isolated git worktrees for workspace execution.
// Each active workspace gets its own working tree so concurrent phases never
// mutate a shared checkout; only the merge step touches the mainline.
package worktree

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"branchpilot/internal/git"
)

// ErrNameCollision indicates the requested branch already exists as an
// active workspace.
var ErrNameCollision = errors.New("workspace name collides with existing branch")

// branchPrefixes identify branchpilot-managed workspace branches.
var branchPrefixes = []string{"setup/", "feature/", "bugfix/", "test/", "docs/", "optimize/"}

// Worktree represents one managed git worktree.
type Worktree struct {
	Path       string    // Absolute path to the worktree directory
	BranchName string    // Branch checked out in this worktree
	CreatedAt  time.Time // When the worktree was created
}

// Managed returns true if the worktree branch follows the workspace
// naming convention.
func (w *Worktree) Managed() bool {
	for _, prefix := range branchPrefixes {
		if strings.HasPrefix(w.BranchName, prefix) {
			return true
		}
	}
	return false
}

// Manager handles git worktree operations for workspace isolation.
type Manager struct {
	baseDir  string // Base directory for worktrees
	repoPath string // Path to the main git repository
	mainline string // Branch all worktrees are cut from
	git      git.Runner
	mu       sync.Mutex
}

// NewManager creates a worktree manager. baseDir defaults to
// <repo>/.branchpilot/worktrees when empty.
func NewManager(baseDir, repoPath, mainline string, runner git.Runner) (*Manager, error) {
	if baseDir == "" {
		baseDir = filepath.Join(repoPath, ".branchpilot", "worktrees")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create worktree base directory: %w", err)
	}

	return &Manager{
		baseDir:  baseDir,
		repoPath: repoPath,
		mainline: mainline,
		git:      runner,
	}, nil
}

// Create materializes an isolated worktree for the given branch name, cut
// from the mainline. Fails with ErrNameCollision if the branch already
// exists; the caller reports this and keeps dispatching.
func (m *Manager) Create(branchName string) (*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := m.git.BranchExists(branchName)
	if err != nil {
		return nil, fmt.Errorf("check branch %s: %w", branchName, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrNameCollision, branchName)
	}

	// Branch names contain slashes; flatten them for the directory name.
	dirName := strings.ReplaceAll(branchName, "/", "-")
	path := filepath.Join(m.baseDir, dirName)

	if err := m.git.WorktreeAddNewBranch(path, branchName, m.mainline); err != nil {
		return nil, fmt.Errorf("create worktree: %w", err)
	}

	return &Worktree{
		Path:       path,
		BranchName: branchName,
		CreatedAt:  time.Now(),
	}, nil
}

// Remove tears down a worktree and deletes its branch.
// deleteBranch is false when the branch must outlive the tree (a failed
// workspace kept for inspection).
func (m *Manager) Remove(wt *Worktree, deleteBranch bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreeRemove(wt.Path); err != nil {
		// Fall back to direct removal when git lost track of the tree.
		if rmErr := os.RemoveAll(wt.Path); rmErr != nil {
			return fmt.Errorf("remove worktree: %w", err)
		}
	}

	if deleteBranch {
		if err := m.git.DeleteBranch(wt.BranchName); err != nil {
			return fmt.Errorf("delete branch %s: %w", wt.BranchName, err)
		}
	}
	return nil
}

// Destroy removes the worktree at path and deletes its branch. It is
// the post-merge cleanup hook: once a branch is integrated, neither the
// tree nor the branch has further value.
func (m *Manager) Destroy(path, branch string) error {
	return m.Remove(&Worktree{Path: path, BranchName: branch}, true)
}

// List returns all worktrees known to the repository.
func (m *Manager) List() ([]*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	output, err := m.git.WorktreeListPorcelain()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return parseWorktreeList(output)
}

// parseWorktreeList parses the output of 'git worktree list --porcelain'.
func parseWorktreeList(output string) ([]*Worktree, error) {
	var worktrees []*Worktree
	var current *Worktree

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if current != nil {
				worktrees = append(worktrees, current)
				current = nil
			}
			continue
		}

		if strings.HasPrefix(line, "worktree ") {
			current = &Worktree{
				Path: strings.TrimPrefix(line, "worktree "),
			}
		} else if strings.HasPrefix(line, "branch ") && current != nil {
			branchRef := strings.TrimPrefix(line, "branch ")
			current.BranchName = strings.TrimPrefix(branchRef, "refs/heads/")
		}
	}

	if current != nil {
		worktrees = append(worktrees, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}
	return worktrees, nil
}

// Prune removes references to worktrees that no longer exist on disk.
func (m *Manager) Prune() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreePruneExpireNow(); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}

// ListOrphans returns managed worktrees whose branch is not in the active
// set. The main repository checkout is never an orphan.
func (m *Manager) ListOrphans(activeBranches []string) ([]*Worktree, error) {
	worktrees, err := m.List()
	if err != nil {
		return nil, err
	}

	activeSet := make(map[string]bool)
	for _, branch := range activeBranches {
		activeSet[branch] = true
	}

	var orphans []*Worktree
	for _, wt := range worktrees {
		if !wt.Managed() {
			continue
		}
		if wt.Path == m.repoPath {
			continue
		}
		if activeSet[wt.BranchName] {
			continue
		}
		orphans = append(orphans, wt)
	}
	return orphans, nil
}

// CleanupOrphans removes orphaned worktrees and returns the removed count.
// The verbose callback, when set, is called with each removed path.
func (m *Manager) CleanupOrphans(activeBranches []string, verbose func(path string)) (int, error) {
	orphans, err := m.ListOrphans(activeBranches)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, wt := range orphans {
		if err := m.git.WorktreeRemove(wt.Path); err != nil {
			if rmErr := os.RemoveAll(wt.Path); rmErr != nil {
				continue
			}
		}
		if verbose != nil {
			verbose(wt.Path)
		}
		removed++
	}

	// Final prune cleans up dangling references.
	_ = m.git.WorktreePruneExpireNow()

	return removed, nil
}

// BaseDir returns the base directory where worktrees are created.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Mainline returns the branch worktrees are cut from and merged into.
func (m *Manager) Mainline() string {
	return m.mainline
}
