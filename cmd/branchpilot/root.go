package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

// CheckGit verifies that the git CLI is available in PATH.
func CheckGit() error {
	_, err := exec.LookPath("git")
	if err != nil {
		return fmt.Errorf("git not found in PATH\n\n" +
			"branchpilot drives git branches and worktrees and cannot run without it.")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "branchpilot",
	Short: "Branch-per-group task orchestrator",
	Long: `branchpilot turns a free-text task list into prioritized, dependency-
linked task groups and runs each group on its own git branch.

Core flow:
- Classifies tasks by keyword into setup/feature/bugfix/test/docs/optimize
- Groups them into a dependency graph scheduled under a concurrency limit
- Drives each group through an isolated worktree lifecycle via external hooks
- Merges finished branches back into the mainline one at a time, by priority`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}

// findGitRoot finds the root of the git repository starting from the
// given directory.
func findGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a git repository")
		}
		dir = parent
	}
}
