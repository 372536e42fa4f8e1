package grouper

import (
	"reflect"
	"testing"

	"branchpilot/pkg/models"
)

func findByCategory(groups []*models.TaskGroup, cat models.Category) []*models.TaskGroup {
	var out []*models.TaskGroup
	for _, g := range groups {
		if g.Category == cat {
			out = append(out, g)
		}
	}
	return out
}

func TestGroupEmptyInput(t *testing.T) {
	groups := Group(nil)
	if len(groups) != 0 {
		t.Errorf("expected no groups for empty input, got %d", len(groups))
	}
}

func TestGroupScaffoldScenario(t *testing.T) {
	groups := Group([]string{
		"Create project scaffold",
		"Add login feature",
		"Add logout feature",
		"Write tests",
		"Fix crash on startup",
	})

	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}

	setup := findByCategory(groups, models.CategorySetup)
	if len(setup) != 1 {
		t.Fatalf("expected 1 setup group, got %d", len(setup))
	}
	if setup[0].Priority != models.GroupPrioritySetup {
		t.Errorf("setup priority = %d, want %d", setup[0].Priority, models.GroupPrioritySetup)
	}
	if len(setup[0].DependsOn) != 0 {
		t.Errorf("setup group must have no dependencies, got %v", setup[0].DependsOn)
	}
	if len(setup[0].Tasks) != 1 {
		t.Errorf("setup group should hold 1 task, got %d", len(setup[0].Tasks))
	}

	features := findByCategory(groups, models.CategoryFeature)
	if len(features) != 1 {
		t.Fatalf("expected 1 feature sub-group, got %d", len(features))
	}
	if len(features[0].Tasks) != 2 {
		t.Errorf("feature group should hold 2 tasks, got %d", len(features[0].Tasks))
	}
	if features[0].Priority != models.GroupPriorityFeature {
		t.Errorf("feature priority = %d, want %d", features[0].Priority, models.GroupPriorityFeature)
	}
	if !reflect.DeepEqual(features[0].DependsOn, []string{setup[0].ID}) {
		t.Errorf("feature group must depend on setup, got %v", features[0].DependsOn)
	}

	bugs := findByCategory(groups, models.CategoryBugFix)
	if len(bugs) != 1 {
		t.Fatalf("expected 1 bug_fix group, got %d", len(bugs))
	}
	if bugs[0].Priority != models.GroupPriorityBugFix {
		t.Errorf("bug_fix priority = %d, want %d", bugs[0].Priority, models.GroupPriorityBugFix)
	}
	if len(bugs[0].DependsOn) != 0 {
		t.Errorf("bug_fix group must have no dependencies, got %v", bugs[0].DependsOn)
	}

	tests := findByCategory(groups, models.CategoryTest)
	if len(tests) != 1 {
		t.Fatalf("expected 1 test group, got %d", len(tests))
	}
	if tests[0].Priority != models.GroupPriorityTest {
		t.Errorf("test priority = %d, want %d", tests[0].Priority, models.GroupPriorityTest)
	}
	if !reflect.DeepEqual(tests[0].DependsOn, []string{features[0].ID}) {
		t.Errorf("test group must depend on the feature group, got %v", tests[0].DependsOn)
	}
}

func TestGroupFeatureChunking(t *testing.T) {
	groups := Group([]string{
		"Add alpha widget",
		"Add beta widget",
		"Add gamma widget",
		"Add delta widget",
		"Add epsilon widget",
	})

	features := findByCategory(groups, models.CategoryFeature)
	if len(features) != 3 {
		t.Fatalf("expected 3 feature sub-groups for 5 tasks, got %d", len(features))
	}
	if len(features[0].Tasks) != 2 || len(features[1].Tasks) != 2 || len(features[2].Tasks) != 1 {
		t.Errorf("unexpected chunk sizes: %d, %d, %d",
			len(features[0].Tasks), len(features[1].Tasks), len(features[2].Tasks))
	}
	// Without setup tasks, feature sub-groups have no dependencies.
	for _, f := range features {
		if len(f.DependsOn) != 0 {
			t.Errorf("feature group %s should have no deps without setup, got %v", f.ID, f.DependsOn)
		}
	}
}

func TestGroupOptimizationDependsOnEverything(t *testing.T) {
	groups := Group([]string{
		"Create project scaffold",
		"Add search",
		"Write tests",
		"Update docs",
		"Optimize hot path",
	})

	opts := findByCategory(groups, models.CategoryOptimization)
	if len(opts) != 1 {
		t.Fatalf("expected 1 optimization group, got %d", len(opts))
	}

	want := len(groups) - 1
	if len(opts[0].DependsOn) != want {
		t.Errorf("optimization group should depend on all %d other groups, got %d",
			want, len(opts[0].DependsOn))
	}
	if opts[0].Priority != models.GroupPriorityOptimization {
		t.Errorf("optimization priority = %d, want %d", opts[0].Priority, models.GroupPriorityOptimization)
	}
}

func TestGroupDeterministic(t *testing.T) {
	input := []string{
		"Create scaffold",
		"Add login",
		"Fix crash",
		"Write tests",
	}

	a := Group(input)
	b := Group(input)

	if len(a) != len(b) {
		t.Fatalf("group counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("group %d: IDs differ: %s vs %s", i, a[i].ID, b[i].ID)
		}
		if !reflect.DeepEqual(a[i].Tasks, b[i].Tasks) {
			t.Errorf("group %d: member order differs", i)
		}
		if !reflect.DeepEqual(a[i].DependsOn, b[i].DependsOn) {
			t.Errorf("group %d: dependencies differ", i)
		}
	}
}

func TestGroupAcyclic(t *testing.T) {
	// Predecessors must always reference groups emitted earlier, which
	// rules out cycles by construction.
	groups := Group([]string{
		"Create scaffold",
		"Add one", "Add two", "Add three",
		"Fix bug",
		"Write tests",
		"Update readme",
		"Refactor core",
	})

	seen := make(map[string]bool)
	for _, g := range groups {
		for _, dep := range g.DependsOn {
			if !seen[dep] {
				t.Errorf("group %s depends on %s which was not emitted earlier", g.ID, dep)
			}
		}
		seen[g.ID] = true
	}
}
