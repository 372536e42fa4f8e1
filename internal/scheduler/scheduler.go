// Package scheduler computes the ready set of task groups under a
// concurrency budget.
package scheduler

import (
	"sort"
	"sync"

	"branchpilot/internal/graph"
	"branchpilot/pkg/models"
)

// Scheduler maintains the set of task groups and their completion state.
// The ready subset is computed on demand, priority-descending, and bounded
// by a caller-supplied count.
type Scheduler struct {
	mu    sync.RWMutex
	graph *graph.GroupGraph
	// inFlight tracks groups handed out by Ready that have not been
	// marked completed yet, so a group is never admitted twice.
	inFlight map[string]bool
}

// New builds a scheduler over the given groups.
// Returns graph.ErrCycleDetected or graph.ErrUnknownDependency if the
// predecessor relation is inconsistent.
func New(groups []*models.TaskGroup) (*Scheduler, error) {
	g := graph.New()
	if err := g.Build(groups); err != nil {
		return nil, err
	}
	return &Scheduler{
		graph:    g,
		inFlight: make(map[string]bool),
	}, nil
}

// Ready returns up to maxCount groups whose every predecessor is completed,
// sorted by descending priority. Groups already handed out and not yet
// completed are excluded. maxCount <= 0 returns nil.
func (s *Scheduler) Ready(maxCount int) []*models.TaskGroup {
	if maxCount <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*models.TaskGroup
	for _, id := range s.graph.Ready() {
		if s.inFlight[id] {
			continue
		}
		if grp := s.graph.Get(id); grp != nil {
			candidates = append(candidates, grp)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > maxCount {
		candidates = candidates[:maxCount]
	}

	for _, grp := range candidates {
		s.inFlight[grp.ID] = true
	}
	return candidates
}

// MarkCompleted marks a group as completed and releases its in-flight slot.
// Idempotent: marking twice has the same observable effect as once.
func (s *Scheduler) MarkCompleted(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph.MarkComplete(groupID)
	delete(s.inFlight, groupID)
}

// Release returns a group handed out by Ready to the schedulable pool
// without completing it. Used when admission fails before execution starts.
func (s *Scheduler) Release(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, groupID)
}

// AllCompleted reports whether every group has been marked completed.
func (s *Scheduler) AllCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.CompletedCount() == s.graph.Size()
}

// InFlightCount returns the number of groups handed out and not completed.
func (s *Scheduler) InFlightCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inFlight)
}

// Empty reports whether the scheduler holds no groups at all.
func (s *Scheduler) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Size() == 0
}

// Progress returns completion as a percentage in [0, 100].
// An empty scheduler reports 100.
func (s *Scheduler) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.graph.Size()
	if total == 0 {
		return 100
	}
	return float64(s.graph.CompletedCount()) / float64(total) * 100
}

// Get returns the group for an ID, or nil.
func (s *Scheduler) Get(groupID string) *models.TaskGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Get(groupID)
}

// Remaining returns the IDs of groups not yet completed.
func (s *Scheduler) Remaining() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, id := range s.allIDsLocked() {
		if !s.graph.IsComplete(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// allIDsLocked returns every group ID. Caller must hold the lock.
func (s *Scheduler) allIDsLocked() []string {
	order, err := s.graph.TopologicalSort()
	if err != nil {
		// Build already validated the graph, so the sort cannot fail here.
		return nil
	}
	return order
}
