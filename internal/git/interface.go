// Package git provides an interface for git operations.
package git

import "time"

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch() (string, error)
	// ListBranches returns the names of all local branches.
	ListBranches() ([]string, error)
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(name string) error
	// LastCommitTime returns the committer time of the branch tip.
	LastCommitTime(branch string) (time.Time, error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a new worktree with a new branch cut
	// from the given base (git worktree add -b).
	WorktreeAddNewBranch(path, branch, base string) error
	// WorktreeRemove removes the worktree at the given path (force).
	WorktreeRemove(path string) error
	// WorktreeListPorcelain returns the raw porcelain listing output.
	WorktreeListPorcelain() (string, error)
	// WorktreePruneExpireNow prunes stale worktree entries with --expire now.
	WorktreePruneExpireNow() error
}

// MergeOperations defines the interface for git merge operations.
type MergeOperations interface {
	// CheckoutBranch switches the main working tree to the given branch.
	CheckoutBranch(name string) error
	// MergeNoFFMessage merges a branch with --no-ff and a custom message.
	MergeNoFFMessage(branch, message string) error
	// MergeAbort aborts an in-progress merge.
	MergeAbort() error
}

// Runner defines the complete interface for git operations.
// Consumers should prefer the focused interfaces when possible.
type Runner interface {
	BranchOperations
	WorktreeOperations
	MergeOperations
	// Run executes an arbitrary git command with the given arguments.
	Run(args ...string) (string, error)
}
