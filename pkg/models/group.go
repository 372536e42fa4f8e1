package models

import "time"

// Group priorities. Higher schedules sooner among ready groups.
const (
	// GroupPrioritySetup is assigned to the setup group.
	GroupPrioritySetup = 10
	// GroupPriorityBugFix is assigned to the bug-fix group.
	GroupPriorityBugFix = 9
	// GroupPriorityFeature is assigned to feature sub-groups.
	GroupPriorityFeature = 7
	// GroupPriorityTest is assigned to the test group.
	GroupPriorityTest = 6
	// GroupPriorityDocs is assigned to the docs group.
	GroupPriorityDocs = 4
	// GroupPriorityOptimization is assigned to the optimization group.
	GroupPriorityOptimization = 3
)

// TaskGroup is a batch of tasks sharing a category, scheduled as one unit.
// A group is atomic from the scheduler's point of view: every member task
// must finish, successfully or not, before the group is marked completed.
type TaskGroup struct {
	// ID is the unique identifier for this group.
	ID string `json:"id"`
	// Tasks is the ordered list of member task descriptions.
	Tasks []string `json:"tasks"`
	// Category is the shared work kind of the member tasks.
	Category Category `json:"category"`
	// Priority is the numeric scheduling weight. Higher runs sooner.
	Priority int `json:"priority"`
	// DependsOn lists group IDs that must all be completed before this
	// group is ready.
	DependsOn []string `json:"depends_on,omitempty"`
	// EstimatedDuration is informational only and never affects correctness.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
	// Completed reports whether the scheduler has marked this group done.
	Completed bool `json:"completed"`
}

// BranchPrefix returns the workspace naming prefix for a category.
func (c Category) BranchPrefix() string {
	switch c {
	case CategorySetup:
		return "setup/"
	case CategoryBugFix:
		return "bugfix/"
	case CategoryTest:
		return "test/"
	case CategoryDocs:
		return "docs/"
	case CategoryOptimization:
		return "optimize/"
	default:
		return "feature/"
	}
}
