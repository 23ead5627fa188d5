package planner

import "testing"

func taskPlan(tasks ...*Task) *TaskPlan {
	return &TaskPlan{Tasks: tasks}
}

func TestValidateAcceptsValidDAG(t *testing.T) {
	plan := taskPlan(
		&Task{ID: "t1"},
		&Task{ID: "t2", Dependencies: []string{"t1"}},
		&Task{ID: "t3", Dependencies: []string{"t1", "t2"}},
	)
	if msg := validate(plan); msg != "" {
		t.Fatalf("expected valid DAG to pass, got %q", msg)
	}
}

func TestValidateRejectsDuplicateID(t *testing.T) {
	plan := taskPlan(&Task{ID: "t1"}, &Task{ID: "t1"})
	if msg := validate(plan); msg == "" {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	plan := taskPlan(&Task{ID: "t1", Dependencies: []string{"missing"}})
	if msg := validate(plan); msg == "" {
		t.Fatal("expected unresolved dependency to be rejected")
	}
}

// S7: a direct cycle must be detected and rejected.
func TestValidateRejectsDirectCycle(t *testing.T) {
	plan := taskPlan(
		&Task{ID: "t1", Dependencies: []string{"t2"}},
		&Task{ID: "t2", Dependencies: []string{"t1"}},
	)
	if msg := validate(plan); msg == "" {
		t.Fatal("expected a 2-cycle to be rejected")
	}
}

func TestValidateRejectsIndirectCycle(t *testing.T) {
	plan := taskPlan(
		&Task{ID: "t1", Dependencies: []string{"t3"}},
		&Task{ID: "t2", Dependencies: []string{"t1"}},
		&Task{ID: "t3", Dependencies: []string{"t2"}},
	)
	if msg := validate(plan); msg == "" {
		t.Fatal("expected a 3-node cycle to be rejected")
	}
}

func TestFindCycleReturnsEmptyForDAGWithSharedDependency(t *testing.T) {
	tasks := []*Task{
		{ID: "a"},
		{ID: "b", Dependencies: []string{"a"}},
		{ID: "c", Dependencies: []string{"a"}},
		{ID: "d", Dependencies: []string{"b", "c"}},
	}
	byID := map[string]*Task{}
	for _, t := range tasks {
		byID[t.ID] = t
	}
	if cyc := findCycle(tasks, byID); cyc != "" {
		t.Fatalf("expected no cycle in a diamond DAG, got %q", cyc)
	}
}
