// Package history implements the per-session conversation history store
// (C4): an append-only, disk-persisted list of question/answer turns with
// an LLM-backed relevance filter used to build prompts without replaying
// the entire conversation every turn.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/virattt/dexter-sub002/internal/llm"
	"github.com/virattt/dexter-sub002/internal/persistence"
	"github.com/virattt/dexter-sub002/internal/toolcontext"
)

// Turn is one persisted question/answer pair (spec §3 Message).
type Turn struct {
	ID        int       `json:"id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// History is a single session's append-only turn log plus an LLM-backed
// relevance selector with a fingerprint cache over past selections.
type History struct {
	mu    sync.Mutex
	path  string
	llm   *llm.Registry
	model string

	turns  []Turn
	nextID int

	cacheFP  string
	cacheSel []int
}

// storedHistory is the on-disk shape of a conversation-history file, spec
// §6: `{messages: [...], model, savedAt}`.
type storedHistory struct {
	Messages []Turn    `json:"messages"`
	Model    string    `json:"model"`
	SavedAt  time.Time `json:"savedAt"`
}

// Load reads the history file at path if present (missing file yields an
// empty History, matching the persistence package's zero-value contract).
func Load(path string, registry *llm.Registry, model string) (*History, error) {
	h := &History{path: path, llm: registry, model: model}
	var stored storedHistory
	if err := persistence.ReadJSON(path, &stored); err != nil {
		return nil, fmt.Errorf("history: load %s: %w", path, err)
	}
	h.turns = stored.Messages
	for _, t := range h.turns {
		if t.ID >= h.nextID {
			h.nextID = t.ID + 1
		}
	}
	return h, nil
}

func (h *History) flushLocked() error {
	payload := storedHistory{Messages: h.turns, Model: h.model, SavedAt: time.Now()}
	return persistence.WriteJSON(h.path, payload)
}

// AddMessage appends a new turn: it generates a one-sentence summary of
// the answer via the LLM (falling back to a templated summary on failure
// per spec §4.4), invalidates the selection cache, and flushes to disk.
func (h *History) AddMessage(ctx context.Context, query, answer string) error {
	summary := h.summarize(ctx, query, answer)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{
		ID:        h.nextID,
		Query:     query,
		Answer:    answer,
		Summary:   summary,
		Timestamp: time.Now(),
	})
	h.nextID++
	h.cacheFP = ""
	h.cacheSel = nil

	return h.flushLocked()
}

func (h *History) summarize(ctx context.Context, query, answer string) string {
	fallback := func() string {
		return "Answer to: " + truncateRunes(query, 100)
	}
	if h.llm == nil {
		return fallback()
	}
	resp, err := h.llm.Complete(ctx, llm.Request{
		Model:        h.model,
		SystemPrompt: "Summarize the following answer in exactly one sentence.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Question: %s\nAnswer: %s", query, answer)},
		},
		MaxTokens: 128,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return fallback()
	}
	return strings.TrimSpace(resp.Text)
}

// selectedMessages is the decode target for llm.SelectedMessagesSchema.
type selectedMessages struct {
	MessageIDs []int `json:"message_ids"`
}

// SelectRelevantMessages asks the model which past turns are relevant to
// query, caching the result against a fingerprint of (query, turn count)
// so repeated calls for the same query within a turn don't re-invoke the
// model. Fails closed (spec §4.4): any error returns no turns, since a
// wrong inclusion is worse than an empty history here.
func (h *History) SelectRelevantMessages(ctx context.Context, query string) []Turn {
	h.mu.Lock()
	turns := make([]Turn, len(h.turns))
	copy(turns, h.turns)
	fp := toolcontext.Fingerprint("history_select", map[string]any{"query": query, "n": len(turns)})
	if fp == h.cacheFP {
		ids := make([]int, len(h.cacheSel))
		copy(ids, h.cacheSel)
		h.mu.Unlock()
		return turnsByID(turns, ids)
	}
	h.mu.Unlock()

	if len(turns) == 0 || h.llm == nil {
		return nil
	}

	listing := make([]map[string]any, len(turns))
	for i, t := range turns {
		listing[i] = map[string]any{"id": t.ID, "query": t.Query, "summary": t.Summary}
	}
	listingJSON, _ := json.Marshal(listing)

	resp, err := h.llm.Complete(ctx, llm.Request{
		Model:        h.model,
		SystemPrompt: "Select which of the following past conversation turns are relevant to the user's new query. Respond with JSON {\"message_ids\": [...]}.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("New query: %s\n\nPast turns:\n%s", query, listingJSON)},
		},
		OutputSchema: &llm.SelectedMessagesSchema,
		MaxTokens:    512,
	})
	if err != nil {
		return nil
	}
	raw := resp.Structured
	if len(raw) == 0 {
		raw = json.RawMessage(resp.Text)
	}
	sel, err := llm.Validate[selectedMessages](raw)
	if err != nil {
		return nil
	}

	h.mu.Lock()
	h.cacheFP = fp
	h.cacheSel = sel.MessageIDs
	h.mu.Unlock()

	return turnsByID(turns, sel.MessageIDs)
}

func turnsByID(turns []Turn, ids []int) []Turn {
	byID := make(map[int]Turn, len(turns))
	for _, t := range turns {
		byID[t.ID] = t
	}
	var out []Turn
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// FormatForPlanning renders turns as a compact block suitable for the task
// planner's prompt (spec §4.6).
func FormatForPlanning(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", t.Query, t.Summary)
	}
	return b.String()
}

// FormatForAnswerGeneration renders turns as a conversational transcript
// suitable for the final answer-generation prompt (spec §4.5).
func FormatForAnswerGeneration(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n\n", t.Query, t.Answer)
	}
	return b.String()
}

// Clear empties the history and flushes the empty state to disk.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
	h.nextID = 0
	h.cacheFP = ""
	h.cacheSel = nil
	return h.flushLocked()
}

// truncateRunes cuts s to at most n runes without splitting a multibyte
// UTF-8 rune (the spec §4.4 fallback summary is `query[:100]`, which must
// not emit invalid UTF-8 when query's 100th byte lands mid-rune).
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= n {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// Turns returns a snapshot of all persisted turns, oldest first.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}
