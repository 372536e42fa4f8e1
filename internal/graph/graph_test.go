package graph

import (
	"errors"
	"sort"
	"testing"

	"branchpilot/pkg/models"
)

func TestNewGraphEmpty(t *testing.T) {
	g := New()
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
	if ready := g.Ready(); len(ready) != 0 {
		t.Errorf("expected no ready groups, got %d", len(ready))
	}
}

func TestGraphBuildAndReady(t *testing.T) {
	g := New()
	groups := []*models.TaskGroup{
		{ID: "setup", Priority: 10},
		{ID: "feature", Priority: 7, DependsOn: []string{"setup"}},
		{ID: "bugfix", Priority: 9},
		{ID: "test", Priority: 6, DependsOn: []string{"feature"}},
	}

	if err := g.Build(groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.Ready()
	sort.Strings(ready)
	if len(ready) != 2 || ready[0] != "bugfix" || ready[1] != "setup" {
		t.Errorf("expected ready set {bugfix, setup}, got %v", ready)
	}
}

func TestGraphReadyNeverIncludesBlockedGroups(t *testing.T) {
	g := New()
	groups := []*models.TaskGroup{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"a", "b"}},
	}
	if err := g.Build(groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every ready group's predecessor set must be a subset of completed.
	check := func() {
		for _, id := range g.Ready() {
			for _, dep := range g.Dependencies(id) {
				if !g.IsComplete(dep) {
					t.Errorf("ready group %s has incomplete predecessor %s", id, dep)
				}
			}
		}
	}

	check()
	g.MarkComplete("a")
	check()
	g.MarkComplete("b")
	check()
}

func TestGraphMarkCompleteIdempotent(t *testing.T) {
	g := New()
	if err := g.Build([]*models.TaskGroup{{ID: "a"}, {ID: "b", DependsOn: []string{"a"}}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.MarkComplete("a")
	first := g.Ready()
	g.MarkComplete("a")
	second := g.Ready()

	if len(first) != len(second) {
		t.Errorf("double completion changed the ready set: %v vs %v", first, second)
	}
	if g.CompletedCount() != 1 {
		t.Errorf("expected 1 completed group, got %d", g.CompletedCount())
	}
}

func TestGraphCycleDetected(t *testing.T) {
	g := New()
	groups := []*models.TaskGroup{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}

	err := g.Build(groups)
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestGraphUnknownDependency(t *testing.T) {
	g := New()
	groups := []*models.TaskGroup{
		{ID: "a", DependsOn: []string{"ghost"}},
	}

	err := g.Build(groups)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Errorf("expected ErrUnknownDependency, got %v", err)
	}
}

func TestGraphTopologicalSort(t *testing.T) {
	g := New()
	groups := []*models.TaskGroup{
		{ID: "setup"},
		{ID: "feature-1", DependsOn: []string{"setup"}},
		{ID: "feature-2", DependsOn: []string{"setup"}},
		{ID: "test", DependsOn: []string{"feature-1", "feature-2"}},
	}
	if err := g.Build(groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 groups in sort, got %d", len(order))
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, grp := range groups {
		for _, dep := range grp.DependsOn {
			if pos[dep] > pos[grp.ID] {
				t.Errorf("dependency %s sorted after dependent %s", dep, grp.ID)
			}
		}
	}
}

func TestGraphDependents(t *testing.T) {
	g := New()
	groups := []*models.TaskGroup{
		{ID: "setup"},
		{ID: "f1", DependsOn: []string{"setup"}},
		{ID: "f2", DependsOn: []string{"setup"}},
	}
	if err := g.Build(groups); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.Dependents("setup")
	if len(deps) != 2 {
		t.Errorf("expected 2 dependents of setup, got %d", len(deps))
	}
}

func TestGraphMarkCompleteUnknownID(t *testing.T) {
	g := New()
	if err := g.Build([]*models.TaskGroup{{ID: "a"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.MarkComplete("ghost")
	if g.CompletedCount() != 0 {
		t.Errorf("completing unknown ID should be a no-op, got %d completed", g.CompletedCount())
	}
}
