package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"branchpilot/internal/config"
	"branchpilot/internal/git"
	"branchpilot/internal/history"
	"branchpilot/internal/worktree"
)

var (
	cleanupForce   bool
	cleanupVerbose bool
	cleanupDryRun  bool
	cleanupHistory bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned worktrees and old run history",
	Long: `Clean up orphaned branchpilot worktrees.

This command:
  - Lists all branchpilot-managed worktrees
  - Identifies orphans (no matching local branch)
  - Removes orphaned worktrees and runs git worktree prune

With --history:
  - Purges runs older than the configured retention from the ledger

Use this after a crash or interrupted run.

Examples:
  branchpilot cleanup            # Interactive cleanup with confirmation
  branchpilot cleanup --force    # Skip confirmation prompt
  branchpilot cleanup --dry-run  # Show what would be removed
  branchpilot cleanup --history  # Also purge old runs`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupForce, "force", "f", false, "Skip confirmation prompt")
	cleanupCmd.Flags().BoolVarP(&cleanupVerbose, "verbose", "v", false, "Show each worktree as it's removed")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be removed without removing")
	cleanupCmd.Flags().BoolVar(&cleanupHistory, "history", false, "Purge runs older than the configured retention")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	repoPath, err := findGitRoot(cwd)
	if err != nil {
		return fmt.Errorf("find git repository: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gitRunner := git.NewRunner(repoPath)
	baseDir := cfg.Worktrees.BaseDir
	if baseDir == "" {
		baseDir = filepath.Join(repoPath, ".branchpilot", "worktrees")
	}
	trees, err := worktree.NewManager(baseDir, repoPath, cfg.Defaults.Mainline, gitRunner)
	if err != nil {
		return fmt.Errorf("create worktree manager: %w", err)
	}

	activeBranches, err := gitRunner.ListBranches()
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}

	orphans, err := trees.ListOrphans(activeBranches)
	if err != nil {
		return fmt.Errorf("list orphaned worktrees: %w", err)
	}

	if len(orphans) == 0 {
		fmt.Println("No orphaned worktrees found.")
	} else {
		fmt.Printf("Found %d orphaned worktree(s):\n", len(orphans))
		for _, wt := range orphans {
			fmt.Printf("  - %s (branch: %s)\n", wt.Path, wt.BranchName)
		}
		fmt.Println()

		switch {
		case cleanupDryRun:
			fmt.Println("Dry run mode - no worktrees were removed.")
		case cleanupForce || confirm("Remove these worktrees? [y/N] "):
			var verboseCallback func(path string)
			if cleanupVerbose {
				verboseCallback = func(path string) {
					fmt.Printf("Removed: %s\n", path)
				}
			}

			removed, err := trees.CleanupOrphans(activeBranches, verboseCallback)
			if err != nil {
				return fmt.Errorf("cleanup orphaned worktrees: %w", err)
			}
			fmt.Printf("Removed %d orphaned worktree(s).\n", removed)
		default:
			fmt.Println("Worktree cleanup cancelled.")
		}
	}

	if cleanupHistory {
		return cleanupOldRuns(repoPath, cfg)
	}
	return nil
}

// cleanupOldRuns purges runs older than the configured retention.
func cleanupOldRuns(repoPath string, cfg *config.Config) error {
	dbPath := history.ProjectDBPath(repoPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No history ledger found - nothing to purge.")
		return nil
	}

	db, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}

	if cleanupDryRun {
		fmt.Printf("Dry run: would purge runs older than %s.\n", cfg.History.Retention)
		return nil
	}

	purged, err := db.PurgeOldRuns(cfg.History.Retention)
	if err != nil {
		return fmt.Errorf("purge old runs: %w", err)
	}

	if purged > 0 {
		fmt.Printf("Purged %d run(s) older than %s.\n", purged, cfg.History.Retention)
	} else {
		fmt.Printf("No runs older than %s found.\n", cfg.History.Retention)
	}
	return nil
}

// confirm prompts on stdin and returns true on a yes answer.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
