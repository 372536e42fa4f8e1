package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"branchpilot/internal/config"
	"branchpilot/internal/control"
	"branchpilot/internal/dispatch"
	"branchpilot/internal/events"
	"branchpilot/internal/git"
	"branchpilot/internal/grouper"
	"branchpilot/internal/history"
	"branchpilot/internal/hooks"
	"branchpilot/internal/lifecycle"
	"branchpilot/internal/mergecoord"
	"branchpilot/internal/resume"
	"branchpilot/internal/scheduler"
	"branchpilot/internal/worktree"
	"branchpilot/pkg/models"
)

var (
	runFile       string
	runMaxWorkers int
	runMainline   string
	runSettle     time.Duration
	runDryRun     bool
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run [task]...",
	Short: "Group tasks and run them on parallel branches",
	Long: `Run a list of free-text tasks.

Tasks are classified by keyword, partitioned into prioritized groups,
and executed concurrently on isolated branches. Groups whose
dependencies are unmet wait; finished branches are merged back into the
mainline one at a time, highest priority first.

Tasks come from arguments, from --file, or both:

  branchpilot run "Create project scaffold" "Add login feature"
  branchpilot run --file tasks.yaml --max-workers 5

The task file is YAML: either a plain list of strings or a mapping with
a top-level "tasks" list.

Exit status is 0 when every group completed (even if individual
workspaces failed; those are listed in the report), non-zero on an
unsatisfiable dependency graph, a scheduling stall, or interruption.`,
	Args: cobra.ArbitraryArgs,
	RunE: runTasks,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "YAML file with the task list")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Concurrent workspace limit (default from config)")
	runCmd.Flags().StringVar(&runMainline, "mainline", "", "Integration branch (default from config)")
	runCmd.Flags().DurationVar(&runSettle, "settle", 0, "Delay between merges (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the group plan without executing")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print every phase transition")
}

func runTasks(cmd *cobra.Command, args []string) error {
	descriptions := append([]string{}, args...)
	if runFile != "" {
		fromFile, err := loadTaskFile(runFile)
		if err != nil {
			return err
		}
		descriptions = append(descriptions, fromFile...)
	}
	if len(descriptions) == 0 {
		return fmt.Errorf("no tasks given: pass them as arguments or via --file")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	maxWorkers := cfg.Defaults.MaxWorkers
	if runMaxWorkers > 0 {
		maxWorkers = runMaxWorkers
	}
	mainline := cfg.Defaults.Mainline
	if runMainline != "" {
		mainline = runMainline
	}
	settle := cfg.Merge.SettleDelay
	if runSettle > 0 {
		settle = runSettle
	}

	groups := grouper.Group(descriptions)
	printPlan(groups, maxWorkers)
	if runDryRun {
		return nil
	}

	sched, err := scheduler.New(groups)
	if err != nil {
		return fmt.Errorf("unsatisfiable dependency graph: %w", err)
	}

	if err := CheckGit(); err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	repoPath, err := findGitRoot(cwd)
	if err != nil {
		return fmt.Errorf("find git repository: %w", err)
	}

	if cfg.Hooks.TaskCommand == "" {
		return fmt.Errorf("hooks.task_command is not configured: set it in %s or BRANCHPILOT_TASK_COMMAND", config.GetUserConfigPath())
	}

	gitRunner := git.NewRunner(repoPath)

	baseDir := cfg.Worktrees.BaseDir
	if baseDir == "" {
		baseDir = filepath.Join(repoPath, ".branchpilot", "worktrees")
	}
	trees, err := worktree.NewManager(baseDir, repoPath, mainline, gitRunner)
	if err != nil {
		return fmt.Errorf("create worktree manager: %w", err)
	}

	if os.Getenv("BRANCHPILOT_DEBUG") != "" {
		logger := dispatch.NewDebugLoggerForRepo(repoPath)
		dispatch.SetPackageLogger(logger)
		defer logger.Close()
	}

	watcher, err := control.NewWatcher(repoPath)
	if err != nil {
		return fmt.Errorf("start signal watcher: %w", err)
	}
	defer watcher.Close()
	// Stale signal files from a previous run must not kill this one.
	if err := watcher.Clear(); err != nil {
		return fmt.Errorf("clear stale signals: %w", err)
	}

	bus := events.NewBus()
	defer bus.Close()
	go printEvents(bus.SubscribeAll(0))

	// Advisory: surface abandoned workspaces a prior run left behind.
	reportResumable(gitRunner, mainline, cfg.Resume.Window)

	db, err := history.OpenProject(repoPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}

	runID := uuid.NewString()
	if err := db.StartRun(runID, maxWorkers, len(groups)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	launcher := &lifecycle.Launcher{
		Trees:    trees,
		Runner:   hooks.NewCommandHook(cfg.Hooks.TaskCommand, cfg.Hooks.Timeout),
		Verifier: newVerifier(cfg),
		Bus:      bus,
		Stop:     watcher,
	}

	dispatcher := dispatch.New(sched, launcher, maxWorkers, bus)
	report, runErr := dispatcher.Run(ctx)

	for _, ws := range report.Workspaces {
		if err := db.RecordWorkspace(runID, ws); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record workspace %s: %v\n", ws.Name, err)
		}
	}

	if runErr != nil {
		status := history.RunStatusStalled
		if errors.Is(runErr, context.Canceled) {
			status = history.RunStatusInterrupted
		}
		db.FinishRun(runID, status)
		return runErr
	}

	coordinator := mergecoord.New(gitRunner, trees, mainline, settle, bus)
	mergeReport, mergeErr := coordinator.MergeAll(ctx, report.Workspaces)
	for _, ws := range report.Workspaces {
		if ws.Phase != models.PhaseCompleted && ws.FailedPhase != models.PhaseMerging {
			continue
		}
		if err := db.RecordMerge(runID, ws, ws.Phase == models.PhaseCompleted, ws.Error); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record merge %s: %v\n", ws.Name, err)
		}
		// Merge outcome supersedes the pre-merge snapshot.
		db.RecordWorkspace(runID, ws)
	}
	if mergeErr != nil {
		db.FinishRun(runID, history.RunStatusInterrupted)
		return mergeErr
	}

	db.FinishRun(runID, history.RunStatusCompleted)
	printSummary(report, mergeReport)
	return nil
}

// loadTaskFile reads a YAML task list: either a plain string list or a
// mapping with a "tasks" key.
func loadTaskFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var plain []string
	if err := yaml.Unmarshal(data, &plain); err == nil {
		return plain, nil
	}

	var wrapped struct {
		Tasks []string `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse task file %s: %w", path, err)
	}
	if len(wrapped.Tasks) == 0 {
		return nil, fmt.Errorf("task file %s contains no tasks", path)
	}
	return wrapped.Tasks, nil
}

// passVerifier is used when no verify command is configured: the testing
// phase passes trivially.
type passVerifier struct{}

func (passVerifier) Verify(ctx context.Context, workDir string) hooks.Result {
	return hooks.Result{Success: true, Output: "no verify command configured"}
}

func newVerifier(cfg *config.Config) hooks.Verifier {
	if cfg.Hooks.VerifyCommand == "" {
		return passVerifier{}
	}
	return hooks.NewCommandHook(cfg.Hooks.VerifyCommand, cfg.Hooks.Timeout)
}

func printPlan(groups []*models.TaskGroup, maxWorkers int) {
	bold := color.New(color.Bold)
	bold.Printf("Planned %d group(s), max %d concurrent:\n", len(groups), maxWorkers)
	for _, grp := range groups {
		deps := "none"
		if len(grp.DependsOn) > 0 {
			deps = strings.Join(grp.DependsOn, ", ")
		}
		fmt.Printf("  %-24s %-12s priority %-3d deps: %s\n", grp.ID, grp.Category, grp.Priority, deps)
		for _, task := range grp.Tasks {
			fmt.Printf("    - %s\n", task)
		}
	}
	fmt.Println()
}

// printEvents renders bus events as progress lines until the bus closes.
func printEvents(ch <-chan events.Event) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	for ev := range ch {
		switch e := ev.(type) {
		case events.GroupReadyEvent:
			cyan.Printf("▶ %s (%s, priority %d)\n", e.GroupID, e.Category, e.Priority)
		case events.GroupCompletedEvent:
			if e.Succeeded {
				green.Printf("✓ %s\n", e.GroupID)
			} else {
				red.Printf("✗ %s\n", e.GroupID)
			}
		case events.PhaseChangedEvent:
			if runVerbose {
				fmt.Printf("  %s: %s → %s\n", e.Name, e.From, e.To)
			}
		case events.WorkspaceFailedEvent:
			red.Printf("✗ %s failed in %s: %s\n", e.Name, e.FailedPhase, e.Reason)
		case events.MergeStartedEvent:
			cyan.Printf("⇣ merging %s\n", e.Name)
		case events.MergeCompletedEvent:
			if e.Success {
				green.Printf("✓ merged %s\n", e.Name)
			} else {
				red.Printf("✗ merge failed for %s: %s\n", e.Name, e.Reason)
			}
		}
	}
}

// reportResumable lists recent abandoned workspaces. Failure here never
// blocks the run.
func reportResumable(gitOps git.BranchOperations, mainline string, window time.Duration) {
	scanner := resume.New(gitOps, mainline, window)
	resumable, err := scanner.Resumable()
	if err != nil || len(resumable) == 0 {
		return
	}

	yellow := color.New(color.FgYellow)
	yellow.Printf("Found %d resumable workspace(s) from earlier runs:\n", len(resumable))
	for _, info := range resumable {
		yellow.Printf("  %s (%s, last active %s)\n", info.Name, info.Category, info.LastActivity.Format("2006-01-02"))
	}
	fmt.Println()
}

func printSummary(report *dispatch.Report, mergeReport *mergecoord.Report) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Println()
	bold.Println("Run summary:")
	green.Printf("  %d workspace(s) merged\n", mergeReport.Merged)
	if mergeReport.Failed > 0 {
		red.Printf("  %d merge(s) failed\n", mergeReport.Failed)
	}

	var failed []*models.Workspace
	for _, ws := range report.Workspaces {
		if ws.Phase == models.PhaseFailed {
			failed = append(failed, ws)
		}
	}
	if len(failed) > 0 {
		red.Printf("  %d workspace(s) failed:\n", len(failed))
		for _, ws := range failed {
			red.Printf("    %s (%s): %s\n", ws.Name, ws.FailedPhase, ws.Error)
		}
		fmt.Println("\nFailed branches are kept for inspection; rerun or merge them manually.")
	}
}
