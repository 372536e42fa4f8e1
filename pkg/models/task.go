package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Category classifies a task description into one of the fixed work kinds.
type Category string

const (
	// CategorySetup covers scaffolding and project initialization work.
	CategorySetup Category = "setup"
	// CategoryFeature covers new functionality. It is the default category.
	CategoryFeature Category = "feature"
	// CategoryBugFix covers defect repair.
	CategoryBugFix Category = "bug_fix"
	// CategoryTest covers test and coverage work.
	CategoryTest Category = "test"
	// CategoryDocs covers documentation work.
	CategoryDocs Category = "docs"
	// CategoryOptimization covers refactoring and performance work.
	CategoryOptimization Category = "optimization"
)

// Valid returns true if the category is a known value.
func (c Category) Valid() bool {
	switch c {
	case CategorySetup, CategoryFeature, CategoryBugFix, CategoryTest, CategoryDocs, CategoryOptimization:
		return true
	default:
		return false
	}
}

// Priority is the scheduling weight of a task. Higher runs sooner.
type Priority string

const (
	// PriorityLow is for work that can wait.
	PriorityLow Priority = "low"
	// PriorityMedium is the default priority.
	PriorityMedium Priority = "medium"
	// PriorityHigh is for work that should be scheduled first.
	PriorityHigh Priority = "high"
)

// Task represents an atomic unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" yaml:"id"`
	// Description is the free-text description of the work.
	Description string `json:"description" yaml:"description"`
	// Category is the classified work kind.
	Category Category `json:"category" yaml:"category,omitempty"`
	// Priority is the scheduling weight.
	Priority Priority `json:"priority" yaml:"priority,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"status,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Tool is the external tool tag assigned to execute this task, if any.
	Tool string `json:"tool,omitempty" yaml:"tool,omitempty"`
	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"-"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty" yaml:"-"`
}

// Start marks the task as in progress.
func (t *Task) Start() {
	t.Status = TaskStatusInProgress
}

// Complete marks the task as successfully finished.
func (t *Task) Complete() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
}

// Fail marks the task as failed and records the error message.
func (t *Task) Fail(msg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.CompletedAt = &now
	t.Error = msg
}
