package agent

import "time"

// EventType enumerates the agent loop's observable event stream (spec
// §4.5). Exactly one producer emits these, strictly ordered; within one
// iteration every ToolStart has exactly one matching ToolEnd or ToolError.
type EventType string

const (
	EventThinking         EventType = "thinking"
	EventToolStart        EventType = "tool_start"
	EventToolProgress     EventType = "tool_progress"
	EventToolEnd          EventType = "tool_end"
	EventToolError        EventType = "tool_error"
	EventToolLimit        EventType = "tool_limit"
	EventContextCleared   EventType = "context_cleared"
	EventPermissionNeeded EventType = "permission_request"
	EventAnswerStart      EventType = "answer_start"
	EventAnswerChunk      EventType = "answer_chunk"
	EventDone             EventType = "done"
)

// Status is the terminal (or current) status carried by a Done event.
type Status string

const (
	StatusReasoning   Status = "reasoning"
	StatusAnswering   Status = "answering"
	StatusDone        Status = "done"
	StatusInterrupted Status = "interrupted"
	StatusError       Status = "error"
)

// Event is a single emission on the loop's event stream. Only the fields
// relevant to Type are populated; the rest are zero.
type Event struct {
	Type      EventType
	Iteration int

	// thinking
	Precis string

	// tool_start / tool_progress / tool_end / tool_error
	ToolCallID string
	ToolName   string
	ToolArgs   map[string]any
	ToolResult string
	ToolErr    error

	// tool_limit
	Reason string

	// context_cleared
	ClearedCount int
	KeptCount    int

	// permission_request
	PermissionTool string

	// answer_chunk
	AnswerChunk string

	// done
	Answer       string
	ToolTrace    []ToolCallRecord
	Iterations   int
	Elapsed      time.Duration
	Usage        Usage
	Status       Status
	Err          error
}

// ToolCallRecord is one entry of a Done event's tool-call trace.
type ToolCallRecord struct {
	Iteration int
	ToolName  string
	Args      map[string]any
	Result    string
	IsError   bool
}

// Usage is the aggregated token accounting across every C1 call the run
// made (reasoning iterations plus the final answer stream).
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

func (u *Usage) add(other *Usage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}
