// Package graph provides the dependency graph used for group scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/toposort"

	"branchpilot/pkg/models"
)

// ErrCycleDetected indicates a circular dependency between task groups.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrUnknownDependency indicates a group references a predecessor that was
// never registered.
var ErrUnknownDependency = errors.New("dependency references unknown group")

// GroupGraph is a directed acyclic graph of task groups. Nodes are groups,
// edges are "blocked by" relationships taken from each group's DependsOn set.
type GroupGraph struct {
	mu sync.RWMutex
	// nodes maps group ID to the group itself.
	nodes map[string]*models.TaskGroup
	// edges maps group ID to the IDs of groups it is blocked by.
	edges map[string][]string
	// completed tracks which groups have been marked complete.
	completed map[string]bool
}

// New creates an empty group graph.
func New() *GroupGraph {
	return &GroupGraph{
		nodes:     make(map[string]*models.TaskGroup),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
	}
}

// Build registers all groups and their predecessor edges.
// Returns ErrUnknownDependency if a predecessor references an unregistered
// group, or ErrCycleDetected if the predecessor relation has a cycle.
func (g *GroupGraph) Build(groups []*models.TaskGroup) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, grp := range groups {
		g.nodes[grp.ID] = grp
		g.edges[grp.ID] = nil
	}

	for _, grp := range groups {
		for _, depID := range grp.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("group %s: %w: %s", grp.ID, ErrUnknownDependency, depID)
			}
			g.edges[grp.ID] = append(g.edges[grp.ID], depID)
		}
	}

	if _, err := g.sortLocked(); err != nil {
		return err
	}
	return nil
}

// TopologicalSort returns group IDs ordered so that every predecessor comes
// before the groups that depend on it.
func (g *GroupGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortLocked()
}

// sortLocked runs the topological sort. Caller must hold the lock.
func (g *GroupGraph) sortLocked() ([]string, error) {
	var edges []toposort.Edge
	for id := range g.nodes {
		deps := g.edges[id]
		if len(deps) == 0 {
			// Edge from nil keeps dependency-free groups in the result.
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range deps {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// Ready returns IDs of groups that are not completed and whose every
// predecessor is completed.
func (g *GroupGraph) Ready() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id := range g.nodes {
		if g.completed[id] {
			continue
		}

		satisfied := true
		for _, depID := range g.edges[id] {
			if !g.completed[depID] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkComplete marks a group as completed. Idempotent; completing an
// unknown ID is a no-op.
func (g *GroupGraph) MarkComplete(groupID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[groupID]; !exists {
		return
	}
	g.completed[groupID] = true
	g.nodes[groupID].Completed = true
}

// Get returns the group for an ID, or nil if not found.
func (g *GroupGraph) Get(groupID string) *models.TaskGroup {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[groupID]
}

// Size returns the number of groups in the graph.
func (g *GroupGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// CompletedCount returns the number of completed groups.
func (g *GroupGraph) CompletedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.completed)
}

// IsComplete reports whether a group has been marked completed.
func (g *GroupGraph) IsComplete(groupID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.completed[groupID]
}

// Dependencies returns the IDs the given group is blocked by.
func (g *GroupGraph) Dependencies(groupID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[groupID]
}

// Dependents returns the IDs of groups blocked by the given group.
func (g *GroupGraph) Dependents(groupID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for id, deps := range g.edges {
		for _, depID := range deps {
			if depID == groupID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}
