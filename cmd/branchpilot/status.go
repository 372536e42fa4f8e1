package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"branchpilot/internal/config"
	"branchpilot/internal/git"
	"branchpilot/internal/history"
	"branchpilot/internal/resume"
	"branchpilot/pkg/models"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs and resumable workspaces",
	Long: `Display the outcome of recent runs from the history ledger, plus any
abandoned workspace branches that are recent enough to resume.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 5, "Number of recent runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if err := showRecentRuns(repoPath); err != nil {
		return err
	}
	return showResumable(repoPath, cfg)
}

func showRecentRuns(repoPath string) error {
	dbPath := history.ProjectDBPath(repoPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet. Start one with 'branchpilot run <task>...'.")
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

	runs, err := db.RecentRuns(statusLimit)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Start one with 'branchpilot run <task>...'.")
		return nil
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	bold.Printf("Last %d run(s):\n", len(runs))
	for _, run := range runs {
		duration := "running"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("  %s  %s  %d group(s), %d worker(s), %s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"), run.Status, run.GroupsTotal, run.MaxWorkers, duration)

		workspaces, err := db.RunWorkspaces(run.ID)
		if err != nil {
			return fmt.Errorf("query workspaces for run %s: %w", run.ID, err)
		}
		for _, ws := range workspaces {
			switch ws.Phase {
			case models.PhaseCompleted:
				green.Printf("    ✓ %s (%d task(s))\n", ws.Name, ws.TasksCompleted)
			case models.PhaseFailed:
				red.Printf("    ✗ %s failed in %s: %s\n", ws.Name, ws.FailedPhase, ws.Error)
			default:
				fmt.Printf("    ~ %s (%s)\n", ws.Name, ws.Phase)
			}
		}
	}
	fmt.Println()
	return nil
}

func showResumable(repoPath string, cfg *config.Config) error {
	scanner := resume.New(git.NewRunner(repoPath), cfg.Defaults.Mainline, cfg.Resume.Window)
	infos, err := scanner.Scan()
	if err != nil {
		return fmt.Errorf("scan workspaces: %w", err)
	}
	if len(infos) == 0 {
		fmt.Println("No workspace branches found.")
		return nil
	}

	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)

	bold.Printf("Workspace branches (%d):\n", len(infos))
	for _, info := range infos {
		marker := " "
		if info.Resumable {
			marker = yellow.Sprint("resumable")
		}
		fmt.Printf("  %-40s last active %s  %s\n",
			info.Name, info.LastActivity.Local().Format("2006-01-02"), marker)
	}
	return nil
}
