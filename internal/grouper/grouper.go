// Package grouper partitions free-text task lists into prioritized,
// inter-dependent task groups.
package grouper

import (
	"fmt"
	"time"

	"branchpilot/internal/classify"
	"branchpilot/pkg/models"
)

// featureChunkSize bounds the blast radius of any one concurrent workspace
// and increases parallelism opportunities.
const featureChunkSize = 2

// perTaskEstimate is the informational duration estimate per member task.
// It never affects scheduling correctness.
const perTaskEstimate = 5 * time.Minute

// Group partitions task descriptions into task groups with the fixed
// priority and dependency shape:
//
//   - one setup group (priority 10, no dependencies), if any setup tasks
//   - feature sub-groups of at most two tasks (priority 7), each depending
//     on the setup group if one exists
//   - one bug-fix group (priority 9, no dependencies)
//   - one test group (priority 6) depending on all feature sub-groups
//   - one docs group (priority 4, no dependencies)
//   - one optimization group (priority 3) depending on every other group
//
// The result is deterministic for a given input: group IDs are derived from
// the category and emission index, member order follows input order, and the
// predecessor relation is acyclic by construction. An empty input produces
// an empty group list.
func Group(descriptions []string) []*models.TaskGroup {
	buckets := make(map[models.Category][]string)
	for _, desc := range descriptions {
		cat := classify.Classify(desc)
		buckets[cat] = append(buckets[cat], desc)
	}

	var groups []*models.TaskGroup
	var allIDs []string

	emit := func(g *models.TaskGroup) {
		groups = append(groups, g)
		allIDs = append(allIDs, g.ID)
	}

	var setupID string
	if setup := buckets[models.CategorySetup]; len(setup) > 0 {
		g := newGroup("setup", 0, models.CategorySetup, setup, models.GroupPrioritySetup, nil)
		setupID = g.ID
		emit(g)
	}

	var featureIDs []string
	features := buckets[models.CategoryFeature]
	for i := 0; i < len(features); i += featureChunkSize {
		end := i + featureChunkSize
		if end > len(features) {
			end = len(features)
		}

		var deps []string
		if setupID != "" {
			deps = []string{setupID}
		}

		g := newGroup("feature", len(featureIDs), models.CategoryFeature, features[i:end], models.GroupPriorityFeature, deps)
		featureIDs = append(featureIDs, g.ID)
		emit(g)
	}

	if bugs := buckets[models.CategoryBugFix]; len(bugs) > 0 {
		// Bugs are assumed independent of feature work and must not be
		// blocked by it.
		emit(newGroup("bugfix", 0, models.CategoryBugFix, bugs, models.GroupPriorityBugFix, nil))
	}

	if tests := buckets[models.CategoryTest]; len(tests) > 0 {
		// Tests exercise features, so they follow every feature sub-group.
		emit(newGroup("test", 0, models.CategoryTest, tests, models.GroupPriorityTest, featureIDs))
	}

	if docs := buckets[models.CategoryDocs]; len(docs) > 0 {
		emit(newGroup("docs", 0, models.CategoryDocs, docs, models.GroupPriorityDocs, nil))
	}

	if opts := buckets[models.CategoryOptimization]; len(opts) > 0 {
		// Optimization sees the fully-implemented state, so it depends on
		// every group emitted before it.
		deps := append([]string{}, allIDs...)
		emit(newGroup("optimize", 0, models.CategoryOptimization, opts, models.GroupPriorityOptimization, deps))
	}

	return groups
}

// newGroup builds a TaskGroup with a deterministic ID.
func newGroup(kind string, index int, cat models.Category, tasks []string, priority int, deps []string) *models.TaskGroup {
	id := fmt.Sprintf("group-%s-%d", kind, index+1)
	return &models.TaskGroup{
		ID:                id,
		Tasks:             append([]string{}, tasks...),
		Category:          cat,
		Priority:          priority,
		DependsOn:         deps,
		EstimatedDuration: time.Duration(len(tasks)) * perTaskEstimate,
	}
}
