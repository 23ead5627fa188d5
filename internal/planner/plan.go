// Package planner implements the task planner and executor (C6): a
// fixed-schema LLM call that decomposes a query into a DAG of tasks, a DAG
// validator, and an executor that runs ready tasks through nested C5
// agent loops.
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/virattt/dexter-sub002/internal/llm"
)

// TaskStatus is one task's lifecycle state within a plan's execution.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskComplete  TaskStatus = "complete"
	TaskFailed    TaskStatus = "failed"
)

// ToolCallSpec is one required tool invocation named in a plan task.
type ToolCallSpec struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Task is one node of a TaskPlan's dependency graph (spec §4.6).
type Task struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	ToolCalls    []ToolCallSpec `json:"tool_calls,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`

	Status TaskStatus `json:"status"`
	Result string     `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// TaskPlan is the decomposition of a single query into a DAG of tasks.
type TaskPlan struct {
	Tasks []*Task
}

// planResponse is the decode target for llm.ExecutionPlanSchema.
type planResponse struct {
	Tasks []struct {
		ID           string         `json:"id"`
		Description  string         `json:"description"`
		ToolCalls    []ToolCallSpec `json:"tool_calls"`
		Dependencies []string       `json:"dependencies"`
	} `json:"tasks"`
}

// Plan asks the model to decompose query into a TaskPlan, validating the
// result per spec §4.6 (unique ids, resolvable dependencies, no cycles).
// Any validation failure returns an empty plan and a debug message rather
// than an error, matching the spec's "surface a debug message" contract.
func Plan(ctx context.Context, registry *llm.Registry, model, toolCatalog, query string) (*TaskPlan, string) {
	resp, err := registry.Complete(ctx, llm.Request{
		Model:        model,
		SystemPrompt: "Decompose the user's query into a DAG of tasks. Each task may require tool calls and may depend on other tasks by id.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Available tools:\n%s\n\nQuery: %s", toolCatalog, query)},
		},
		OutputSchema: &llm.ExecutionPlanSchema,
		MaxTokens:    2048,
	})
	if err != nil {
		return &TaskPlan{}, fmt.Sprintf("planning call failed: %v", err)
	}

	raw := resp.Structured
	if len(raw) == 0 {
		raw = json.RawMessage(resp.Text)
	}
	parsed, err := llm.Validate[planResponse](raw)
	if err != nil {
		return &TaskPlan{}, fmt.Sprintf("planning response did not match schema: %v", err)
	}

	plan := &TaskPlan{}
	for _, t := range parsed.Tasks {
		plan.Tasks = append(plan.Tasks, &Task{
			ID:           t.ID,
			Description:  t.Description,
			ToolCalls:    t.ToolCalls,
			Dependencies: t.Dependencies,
			Status:       TaskPending,
		})
	}

	if msg := validate(plan); msg != "" {
		return &TaskPlan{}, msg
	}
	return plan, ""
}

// validate checks unique ids, resolvable dependencies, and acyclicity,
// returning a non-empty debug message on the first violation found.
func validate(plan *TaskPlan) string {
	byID := make(map[string]*Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if _, dup := byID[t.ID]; dup {
			return fmt.Sprintf("duplicate task id: %s", t.ID)
		}
		byID[t.ID] = t
	}
	for _, t := range plan.Tasks {
		for _, dep := range t.Dependencies {
			if _, ok := byID[dep]; !ok {
				return fmt.Sprintf("task %s depends on unknown task %s", t.ID, dep)
			}
		}
	}
	if cycleID := findCycle(plan.Tasks, byID); cycleID != "" {
		return fmt.Sprintf("Circular dependencies detected (at task %s)", cycleID)
	}
	return ""
}

// findCycle runs a DFS with an explicit recursion stack (spec §4.6's
// "DFS with recursion stack") over the dependency graph, returning the id
// of a task found on a cycle, or "" if the graph is acyclic.
func findCycle(tasks []*Task, byID map[string]*Task) string {
	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(tasks))

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case onStack:
			return id
		case done:
			return ""
		}
		state[id] = onStack
		for _, dep := range byID[id].Dependencies {
			if cyc := visit(dep); cyc != "" {
				return cyc
			}
		}
		state[id] = done
		return ""
	}

	for _, t := range tasks {
		if state[t.ID] == unvisited {
			if cyc := visit(t.ID); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}
