// Package llm implements the LLM client facade (C1): a uniform
// complete/stream contract over multiple provider SDKs, with retries,
// cancellation, and usage normalization. No provider name or vendor SDK
// term is meant to leak past this package's boundary into the agent loop.
package llm

import (
	"context"
	"encoding/json"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolSpec describes a tool as exposed to the model (a narrowed view of
// tools.Tool, to keep this package decoupled from the tool registry).
type ToolSpec struct {
	Name        string
	Description string
	JSONSchema  map[string]any
}

// Usage is the normalized token accounting for a single request, extracted
// from whichever shape the provider returns it in (spec §4.1).
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Request is a single completion request, provider-agnostic.
type Request struct {
	Model          string
	SystemPrompt   string
	Messages       []Message
	Tools          []ToolSpec
	OutputSchema   *Schema
	MaxTokens      int
}

// Message is one turn of conversation history sent to the model.
type Message struct {
	Role        string // "user" | "assistant" | "tool"
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolResult is the outcome of a previously dispatched tool call, fed back
// to the model on the next turn.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Response is the non-streaming result of Complete.
type Response struct {
	Text       string
	Structured json.RawMessage
	ToolCalls  []ToolCall
	Usage      *Usage
}

// StreamChunk is one element of a Stream sequence.
type StreamChunk struct {
	Text  string
	Err   error
	Usage *Usage
	Done  bool
}

// Client is the uniform facade every agent-loop and tool-context caller
// depends on. Concrete providers are never referenced outside this
// package's providers subpackage and the Registry that selects among them.
type Client interface {
	// Complete sends a single request and returns its full response
	// (buffering any provider-side stream internally).
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a single request and returns a channel of text chunks,
	// closed when the provider's stream ends or fails terminally.
	Stream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
