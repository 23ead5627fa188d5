// Package agent implements the agent loop (C5): the reason/dispatch/
// terminate iteration protocol that drives a single query to an answer,
// emitting a strictly-ordered event stream nexus-style over a channel.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/virattt/dexter-sub002/internal/history"
	"github.com/virattt/dexter-sub002/internal/llm"
	"github.com/virattt/dexter-sub002/internal/tools"
	"github.com/virattt/dexter-sub002/internal/toolcontext"
)

// FinishToolName is the distinguished tool call a model emits to signal
// "I'm done reasoning, move to the answer phase" (spec §4.5 step 3a).
const FinishToolName = "finish"

// DefaultMaxIterations is nexus's loop.go default, carried unchanged.
const DefaultMaxIterations = 10

// DefaultCompactionThresholdBytes is the implementation threshold spec
// §4.5 leaves open: 24,000 bytes of accumulated tool-result text in the
// running prompt triggers compaction, keeping the DefaultKeepRecent most
// recent results (Open Question decision, see DESIGN.md).
const DefaultCompactionThresholdBytes = 24000

// DefaultKeepRecent is N in "clear all but the N most recent tool
// results" (spec §4.5 Context compaction, N >= 1).
const DefaultKeepRecent = 3

// Config configures a Loop. Zero values fall back to the defaults above.
type Config struct {
	Model                    string
	SystemPrompt             string
	MaxIterations            int
	CompactionThresholdBytes int
	KeepRecentToolResults    int
}

func (c Config) sanitized() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.CompactionThresholdBytes <= 0 {
		c.CompactionThresholdBytes = DefaultCompactionThresholdBytes
	}
	if c.KeepRecentToolResults <= 0 {
		c.KeepRecentToolResults = DefaultKeepRecent
	}
	return c
}

// Loop is a single agent loop bound to one session's dependencies: an LLM
// facade, a tool registry, a tool-context store, and conversation history.
type Loop struct {
	llm     *llm.Registry
	tools   *tools.Registry
	store   *toolcontext.Store
	history *history.History
	cfg     Config
}

// New creates a Loop. history may be nil for a stateless run.
func New(llmRegistry *llm.Registry, toolRegistry *tools.Registry, store *toolcontext.Store, hist *history.History, cfg Config) *Loop {
	return &Loop{llm: llmRegistry, tools: toolRegistry, store: store, history: hist, cfg: cfg.sanitized()}
}

// Run drives query to completion, returning a channel of events. The
// channel is closed after the terminal Done event (or after an
// interrupted/error Done if ctx is cancelled or C1 fails terminally).
func (l *Loop) Run(ctx context.Context, query, queryID string) <-chan Event {
	out := make(chan Event, 16)
	go l.run(ctx, query, queryID, out)
	return out
}

func (l *Loop) run(ctx context.Context, query, queryID string, out chan<- Event) {
	defer close(out)
	start := time.Now()

	st := &iterationState{status: StatusReasoning}

	var relevantHistory []history.Turn
	if l.history != nil {
		relevantHistory = l.history.SelectRelevantMessages(ctx, query)
	}

	toolSpecs := l.toolSpecs()

	for {
		if ctx.Err() != nil {
			l.emitInterrupted(out, st, start)
			return
		}

		prompt := l.buildIterationPrompt(query, relevantHistory, st)
		resp, err := l.llm.Complete(ctx, llm.Request{
			Model:        l.cfg.Model,
			SystemPrompt: l.cfg.SystemPrompt,
			Messages:     []llm.Message{{Role: "user", Content: prompt}},
			Tools:        toolSpecs,
			MaxTokens:    4096,
		})
		if err != nil {
			if ctx.Err() != nil {
				l.emitInterrupted(out, st, start)
				return
			}
			out <- Event{Type: EventDone, Iteration: st.iteration, Status: StatusError, Err: fmt.Errorf("agent: reasoning call failed: %w", err), Iterations: st.iteration, Elapsed: time.Since(start), Usage: st.usage}
			return
		}
		st.usage.add(resp.Usage)

		out <- Event{Type: EventThinking, Iteration: st.iteration, Precis: precisOf(resp.Text)}

		finished := false
		for _, tc := range resp.ToolCalls {
			if ctx.Err() != nil {
				l.emitInterrupted(out, st, start)
				return
			}
			if tc.Name == FinishToolName {
				finished = true
				continue
			}
			l.dispatchToolCall(ctx, out, st, queryID, tc)
		}

		if cleared, kept := st.compactIfNeeded(l.cfg.CompactionThresholdBytes, l.cfg.KeepRecentToolResults); cleared > 0 {
			out <- Event{Type: EventContextCleared, Iteration: st.iteration, ClearedCount: cleared, KeptCount: kept}
		}

		noToolCalls := len(resp.ToolCalls) == 0
		atCap := st.iteration >= l.cfg.MaxIterations-1
		if finished || noToolCalls || atCap {
			if atCap && !finished && !noToolCalls {
				out <- Event{Type: EventToolLimit, Iteration: st.iteration, Reason: "max iterations reached"}
			}
			break
		}
		st.iteration++
	}

	l.answerPhase(ctx, out, st, query, queryID, relevantHistory, start)
}

func (st *iterationState) compactIfNeeded(thresholdBytes, keepRecent int) (int, int) {
	if st.accumulatedBytes() <= thresholdBytes {
		return 0, len(st.toolResults)
	}
	return st.compact(keepRecent)
}

func (l *Loop) dispatchToolCall(ctx context.Context, out chan<- Event, st *iterationState, queryID string, tc llm.ToolCall) {
	var args map[string]any
	if len(tc.Args) > 0 {
		_ = json.Unmarshal(tc.Args, &args)
	}
	if args == nil {
		args = map[string]any{}
	}

	out <- Event{Type: EventToolStart, Iteration: st.iteration, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: args}

	result, err := l.tools.Invoke(ctx, tc.Name, args)
	if err != nil {
		st.trace = append(st.trace, ToolCallRecord{Iteration: st.iteration, ToolName: tc.Name, Args: args, Result: err.Error(), IsError: true})
		out <- Event{Type: EventToolError, Iteration: st.iteration, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: args, ToolErr: err}
		return
	}

	if l.store != nil {
		// persistence failure doesn't invalidate the tool result itself
		_, _ = l.store.Save(ctx, tc.Name, args, result, "", queryID)
	}

	entry := toolResultEntry{iteration: st.iteration, toolName: tc.Name, args: args, result: result, bytes: len(result)}
	st.toolResults = append(st.toolResults, entry)
	st.trace = append(st.trace, ToolCallRecord{Iteration: st.iteration, ToolName: tc.Name, Args: args, Result: result})

	out <- Event{Type: EventToolEnd, Iteration: st.iteration, ToolCallID: tc.ID, ToolName: tc.Name, ToolArgs: args, ToolResult: result}
}

func (l *Loop) answerPhase(ctx context.Context, out chan<- Event, st *iterationState, query, queryID string, relevantHistory []history.Turn, start time.Time) {
	st.status = StatusAnswering
	out <- Event{Type: EventAnswerStart, Iteration: st.iteration}

	var contextFiles []string
	if l.store != nil {
		contextFiles = l.store.SelectRelevant(ctx, query)
	}
	var contextData []toolcontext.ContextData
	if l.store != nil && len(contextFiles) > 0 {
		contextData, _ = l.store.LoadContexts(contextFiles)
	}

	finalPrompt := l.buildAnswerPrompt(query, relevantHistory, st, contextData)

	stream, err := l.llm.Stream(ctx, llm.Request{
		Model:        l.cfg.Model,
		SystemPrompt: l.cfg.SystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: finalPrompt}},
		MaxTokens:    4096,
	})
	if err != nil {
		out <- Event{Type: EventDone, Iteration: st.iteration, Status: StatusError, Err: fmt.Errorf("agent: answer stream failed: %w", err), Iterations: st.iteration, Elapsed: time.Since(start), Usage: st.usage}
		return
	}

	var answer strings.Builder
	for chunk := range stream {
		if ctx.Err() != nil {
			l.emitInterrupted(out, st, start)
			return
		}
		if chunk.Err != nil {
			out <- Event{Type: EventDone, Iteration: st.iteration, Status: StatusError, Err: chunk.Err, Answer: answer.String(), Iterations: st.iteration, Elapsed: time.Since(start), Usage: st.usage}
			return
		}
		st.usage.add(chunk.Usage)
		if chunk.Text != "" {
			answer.WriteString(chunk.Text)
			out <- Event{Type: EventAnswerChunk, Iteration: st.iteration, AnswerChunk: chunk.Text}
		}
		if chunk.Done {
			break
		}
	}

	if l.history != nil {
		_ = l.history.AddMessage(ctx, query, answer.String())
	}

	out <- Event{
		Type:       EventDone,
		Iteration:  st.iteration,
		Status:     StatusDone,
		Answer:     answer.String(),
		ToolTrace:  st.trace,
		Iterations: st.iteration + 1,
		Elapsed:    time.Since(start),
		Usage:      st.usage,
	}
}

func (l *Loop) emitInterrupted(out chan<- Event, st *iterationState, start time.Time) {
	out <- Event{
		Type:       EventDone,
		Iteration:  st.iteration,
		Status:     StatusInterrupted,
		ToolTrace:  st.trace,
		Iterations: st.iteration + 1,
		Elapsed:    time.Since(start),
		Usage:      st.usage,
	}
}

func (l *Loop) toolSpecs() []llm.ToolSpec {
	entries := l.tools.Entries()
	specs := make([]llm.ToolSpec, 0, len(entries)+1)
	for _, e := range entries {
		specs = append(specs, llm.ToolSpec{Name: e.Name, Description: e.RichDescription, JSONSchema: e.Tool.JSONSchema()})
	}
	specs = append(specs, llm.ToolSpec{
		Name:        FinishToolName,
		Description: "Call this when you have enough information to answer and want to stop reasoning.",
		JSONSchema:  map[string]any{"type": "object", "properties": map[string]any{}},
	})
	return specs
}

func (l *Loop) buildIterationPrompt(query string, hist []history.Turn, st *iterationState) string {
	var b strings.Builder
	if formatted := history.FormatForPlanning(hist); formatted != "" {
		b.WriteString("Relevant prior turns:\n")
		b.WriteString(formatted)
		b.WriteString("\n")
	}
	for _, r := range st.toolResults {
		fmt.Fprintf(&b, "Tool %s result: %s\n", r.toolName, r.result)
	}
	b.WriteString("User query: ")
	b.WriteString(query)
	return b.String()
}

func (l *Loop) buildAnswerPrompt(query string, hist []history.Turn, st *iterationState, contextData []toolcontext.ContextData) string {
	var b strings.Builder
	if formatted := history.FormatForAnswerGeneration(hist); formatted != "" {
		b.WriteString(formatted)
		b.WriteString("\n")
	}
	for _, cd := range contextData {
		fmt.Fprintf(&b, "Context from %s: %s\n", cd.ToolName, cd.Summary)
	}
	for _, r := range st.toolResults {
		fmt.Fprintf(&b, "Tool %s result: %s\n", r.toolName, r.result)
	}
	b.WriteString("Answer the user's query: ")
	b.WriteString(query)
	return b.String()
}

// precisOf extracts a short natural-language precis from a reasoning
// response's text for the thinking event, per spec §4.5 step 1.
func precisOf(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".\n"); idx > 0 && idx < 200 {
		return text[:idx]
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
