package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/virattt/dexter-sub002/internal/agent"
)

// RunTask runs a single task's query through a nested C5 agent loop,
// returning its event stream. The executor forwards every event to its
// caller unmodified and reads the answer off the terminal Done event.
type RunTask func(ctx context.Context, task *Task) <-chan agent.Event

// Execute runs plan to completion (spec §4.6 Execution): ready tasks
// (pending, all dependencies complete) run one at a time, in plan order,
// and readiness is re-evaluated after each task completes or fails;
// tasks at the same dependency level therefore run sequentially, since
// the contract only forbids running a task before its dependencies are
// complete. Every
// event from every nested run is forwarded to out, in task-completion
// order. Returns an error if execution stalls with pending/running tasks
// and no task ready (a cycle or a cascading failure).
func Execute(ctx context.Context, plan *TaskPlan, run RunTask, out chan<- agent.Event) error {
	byID := make(map[string]*Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		byID[t.ID] = t
	}

	for {
		ready := readyTasks(plan.Tasks, byID)
		if len(ready) == 0 {
			if anyPendingOrRunning(plan.Tasks) {
				return fmt.Errorf("blocked: cycle or cascading failure")
			}
			return nil
		}

		for _, t := range ready[:1] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.Status = TaskRunning
			runTaskQuery(t, byID)

			var answer string
			var failed error
			events := run(ctx, t)
			for ev := range events {
				out <- ev
				if ev.Type == agent.EventDone {
					answer = ev.Answer
					if ev.Status == agent.StatusError {
						failed = ev.Err
					}
				}
			}

			if failed != nil {
				t.Status = TaskFailed
				t.Error = failed.Error()
				continue
			}
			t.Status = TaskComplete
			t.Result = answer
		}
	}
}

// runTaskQuery rewrites t.Description into the actual query text sent to
// the nested agent run, per spec §4.6 step 3: a synthesis task (no tool
// calls) gets its dependencies' results concatenated as context; an
// ordinary task gets the required tool calls spelled out as JSON.
func runTaskQuery(t *Task, byID map[string]*Task) {
	if len(t.ToolCalls) == 0 {
		var depResults []string
		for _, dep := range t.Dependencies {
			if d, ok := byID[dep]; ok {
				depResults = append(depResults, d.Result)
			}
		}
		t.Description = t.Description + "\n\nContext:\n" + strings.Join(depResults, "\n")
		return
	}

	var depResults []string
	for _, dep := range t.Dependencies {
		if d, ok := byID[dep]; ok {
			depResults = append(depResults, d.Result)
		}
	}
	toolCallsJSON, _ := json.Marshal(t.ToolCalls)
	var b strings.Builder
	b.WriteString(t.Description)
	if len(depResults) > 0 {
		b.WriteString("\n\nContext:\n")
		b.WriteString(strings.Join(depResults, "\n"))
	}
	b.WriteString("\n\nRequired tool calls: ")
	b.Write(toolCallsJSON)
	t.Description = b.String()
}

func readyTasks(tasks []*Task, byID map[string]*Task) []*Task {
	var ready []*Task
	for _, t := range tasks {
		if t.Status != TaskPending {
			continue
		}
		allDepsComplete := true
		for _, dep := range t.Dependencies {
			if d, ok := byID[dep]; !ok || d.Status != TaskComplete {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, t)
		}
	}
	return ready
}

func anyPendingOrRunning(tasks []*Task) bool {
	for _, t := range tasks {
		if t.Status == TaskPending || t.Status == TaskRunning {
			return true
		}
	}
	return false
}
