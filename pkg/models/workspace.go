package models

import "time"

// WorkspacePhase is the lifecycle state of a workspace.
type WorkspacePhase string

const (
	// PhaseIdle is the initial state before planning begins.
	PhaseIdle WorkspacePhase = "idle"
	// PhasePlanning materializes the isolated workspace and records tasks.
	PhasePlanning WorkspacePhase = "planning"
	// PhaseImplementing executes the task list sequentially.
	PhaseImplementing WorkspacePhase = "implementing"
	// PhaseEvolving runs optimization passes, if any are assigned.
	PhaseEvolving WorkspacePhase = "evolving"
	// PhaseTesting runs the external verification hook.
	PhaseTesting WorkspacePhase = "testing"
	// PhaseMerging hands the workspace off for mainline reintegration.
	PhaseMerging WorkspacePhase = "merging"
	// PhaseCompleted is the terminal success state, reachable only from merging.
	PhaseCompleted WorkspacePhase = "completed"
	// PhaseFailed is the terminal failure state, reachable from any
	// non-terminal phase.
	PhaseFailed WorkspacePhase = "failed"
)

// Terminal returns true if the phase is absorbing.
func (p WorkspacePhase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// nextPhase maps each phase to its single legal forward successor.
var nextPhase = map[WorkspacePhase]WorkspacePhase{
	PhaseIdle:         PhasePlanning,
	PhasePlanning:     PhaseImplementing,
	PhaseImplementing: PhaseEvolving,
	PhaseEvolving:     PhaseTesting,
	PhaseTesting:      PhaseMerging,
	PhaseMerging:      PhaseCompleted,
}

// CanTransition reports whether moving from p to next is legal.
// Forward moves follow the fixed phase order; PhaseFailed is reachable
// from every non-terminal phase; terminal phases are absorbing.
func (p WorkspacePhase) CanTransition(next WorkspacePhase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	return nextPhase[p] == next
}

// Workspace is an isolated, independently mutable copy of project state
// bound to one task group. No two concurrently active workspaces ever share
// a working tree.
type Workspace struct {
	// ID is the unique identifier for this workspace.
	ID string `json:"id"`
	// Name is the human-readable branch name (category prefix + intent).
	Name string `json:"name"`
	// GroupID is the task group this workspace executes.
	GroupID string `json:"group_id"`
	// Phase is the current lifecycle state.
	Phase WorkspacePhase `json:"phase"`
	// Tasks is the ordered task list assigned to this workspace.
	Tasks []*Task `json:"tasks"`
	// TasksCompleted counts member tasks that finished successfully.
	TasksCompleted int `json:"tasks_completed"`
	// TasksFailed counts member tasks that failed.
	TasksFailed int `json:"tasks_failed"`
	// Priority is inherited from the task group and orders merges.
	Priority int `json:"priority"`
	// Path is the on-disk location of the isolated working tree.
	Path string `json:"path,omitempty"`
	// FailedPhase names the phase a failure occurred in, if any.
	FailedPhase WorkspacePhase `json:"failed_phase,omitempty"`
	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the workspace was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the workspace last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}

// Capacity is the process-wide concurrency budget for active workspaces.
type Capacity struct {
	// Current is the number of active workspaces.
	Current int `json:"current"`
	// Max is the configured ceiling.
	Max int `json:"max"`
}

// Available returns the number of admission slots left.
func (c Capacity) Available() int {
	if n := c.Max - c.Current; n > 0 {
		return n
	}
	return 0
}
