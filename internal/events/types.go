package events

import (
	"time"

	"branchpilot/pkg/models"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	WorkspaceID() string
}

// Topic constants
const (
	TopicGroup     = "group"
	TopicWorkspace = "workspace"
	TopicMerge     = "merge"
)

// Event type constants
const (
	EventTypeGroupReady      = "group.ready"
	EventTypeGroupCompleted  = "group.completed"
	EventTypePhaseChanged    = "workspace.phase"
	EventTypeWorkspaceFailed = "workspace.failed"
	EventTypeMergeStarted    = "merge.started"
	EventTypeMergeCompleted  = "merge.completed"
)

// GroupReadyEvent is published when a group is admitted for execution.
type GroupReadyEvent struct {
	GroupID   string
	Category  models.Category
	Priority  int
	Timestamp time.Time
}

func (e GroupReadyEvent) EventType() string   { return EventTypeGroupReady }
func (e GroupReadyEvent) WorkspaceID() string { return "" }

// GroupCompletedEvent is published when a group is marked completed.
type GroupCompletedEvent struct {
	GroupID   string
	Succeeded bool
	Timestamp time.Time
}

func (e GroupCompletedEvent) EventType() string   { return EventTypeGroupCompleted }
func (e GroupCompletedEvent) WorkspaceID() string { return "" }

// PhaseChangedEvent is published on every workspace phase transition.
type PhaseChangedEvent struct {
	ID        string
	Name      string
	From      models.WorkspacePhase
	To        models.WorkspacePhase
	Timestamp time.Time
}

func (e PhaseChangedEvent) EventType() string   { return EventTypePhaseChanged }
func (e PhaseChangedEvent) WorkspaceID() string { return e.ID }

// WorkspaceFailedEvent is published when a workspace reaches FAILED.
type WorkspaceFailedEvent struct {
	ID          string
	Name        string
	FailedPhase models.WorkspacePhase
	Reason      string
	Timestamp   time.Time
}

func (e WorkspaceFailedEvent) EventType() string   { return EventTypeWorkspaceFailed }
func (e WorkspaceFailedEvent) WorkspaceID() string { return e.ID }

// MergeStartedEvent is published when a merge enters the critical section.
type MergeStartedEvent struct {
	ID        string
	Name      string
	Priority  int
	Timestamp time.Time
}

func (e MergeStartedEvent) EventType() string   { return EventTypeMergeStarted }
func (e MergeStartedEvent) WorkspaceID() string { return e.ID }

// MergeCompletedEvent is published after each merge attempt.
type MergeCompletedEvent struct {
	ID        string
	Name      string
	Success   bool
	Reason    string
	Timestamp time.Time
}

func (e MergeCompletedEvent) EventType() string   { return EventTypeMergeCompleted }
func (e MergeCompletedEvent) WorkspaceID() string { return e.ID }
