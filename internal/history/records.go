package history

import (
	"database/sql"
	"fmt"
	"time"

	"branchpilot/pkg/models"
)

// Run statuses recorded in the ledger.
const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusStalled     = "stalled"
	RunStatusInterrupted = "interrupted"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  *time.Time
	MaxWorkers  int
	GroupsTotal int
	Status      string
}

// WorkspaceRecord is one row of the workspaces table.
type WorkspaceRecord struct {
	ID             string
	RunID          string
	Name           string
	GroupID        string
	Priority       int
	Phase          models.WorkspacePhase
	FailedPhase    models.WorkspacePhase
	Error          string
	TasksCompleted int
	TasksFailed    int
}

// StartRun records the beginning of a run.
func (db *DB) StartRun(runID string, maxWorkers, groupsTotal int) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, started_at, max_workers, groups_total, status)
		VALUES (?, ?, ?, ?, ?)
	`, runID, formatTime(time.Now()), maxWorkers, groupsTotal, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// FinishRun records the run's terminal status.
func (db *DB) FinishRun(runID, status string) error {
	_, err := db.Exec(`
		UPDATE runs SET finished_at = ?, status = ? WHERE id = ?
	`, formatTime(time.Now()), status, runID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RecordWorkspace stores a workspace's final outcome for a run.
func (db *DB) RecordWorkspace(runID string, ws *models.Workspace) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO workspaces
			(id, run_id, name, group_id, priority, phase, failed_phase, error, tasks_completed, tasks_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ws.ID, runID, ws.Name, ws.GroupID, ws.Priority,
		string(ws.Phase), string(ws.FailedPhase), ws.Error, ws.TasksCompleted, ws.TasksFailed)
	if err != nil {
		return fmt.Errorf("record workspace %s: %w", ws.Name, err)
	}
	return nil
}

// RecordMerge stores one merge attempt's outcome.
func (db *DB) RecordMerge(runID string, ws *models.Workspace, success bool, reason string) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO merges (workspace_id, run_id, branch, success, reason, merged_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ws.ID, runID, ws.Name, boolToInt(success), reason, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record merge for %s: %w", ws.Name, err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT id, started_at, finished_at, max_workers, groups_total, status
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var (
			r          RunRecord
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.MaxWorkers, &r.GroupsTotal, &r.Status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse run start time: %w", err)
		}
		if finishedAt.Valid {
			t, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse run finish time: %w", err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// RunWorkspaces returns all workspace outcomes for a run, highest
// priority first.
func (db *DB) RunWorkspaces(runID string) ([]*WorkspaceRecord, error) {
	rows, err := db.Query(`
		SELECT id, run_id, name, group_id, priority, phase, failed_phase, error, tasks_completed, tasks_failed
		FROM workspaces WHERE run_id = ? ORDER BY priority DESC, name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	var out []*WorkspaceRecord
	for rows.Next() {
		var (
			w           WorkspaceRecord
			phase       string
			failedPhase sql.NullString
			errMsg      sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.RunID, &w.Name, &w.GroupID, &w.Priority,
			&phase, &failedPhase, &errMsg, &w.TasksCompleted, &w.TasksFailed); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		w.Phase = models.WorkspacePhase(phase)
		if failedPhase.Valid {
			w.FailedPhase = models.WorkspacePhase(failedPhase.String)
		}
		if errMsg.Valid {
			w.Error = errMsg.String
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// PurgeOldRuns deletes runs (and their workspaces and merges) older than
// the given duration. Returns the number of runs deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	if _, err := db.Exec(`
		DELETE FROM merges WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("purge old merges: %w", err)
	}
	if _, err := db.Exec(`
		DELETE FROM workspaces WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, fmt.Errorf("purge old workspaces: %w", err)
	}

	result, err := db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
