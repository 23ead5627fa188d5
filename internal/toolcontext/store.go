package toolcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/virattt/dexter-sub002/internal/llm"
	"github.com/virattt/dexter-sub002/internal/persistence"
)

// Artifact is the persisted tool-output record (spec §3 ToolArtifact).
// Identity is its Fingerprint; two artifacts with equal fingerprint are
// equivalent and the later save simply overwrites the file.
type Artifact struct {
	Filepath  string         `json:"-"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	Summary   string         `json:"summary"`
	Result    string         `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
	QueryID   string         `json:"query_id,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
}

// Pointer is the lightweight in-memory index entry appended after every
// save (spec §4.3 step 3): enough to let selectRelevant ask the model
// which artifacts matter without reading every file back off disk.
type Pointer struct {
	Filepath string
	Filename string
	ToolName string
	Args     map[string]any
	Summary  string
	TaskID   string
	QueryID  string
}

// Store is the content-addressed tool-output store (C3).
type Store struct {
	mu       sync.Mutex
	baseDir  string
	llm      *llm.Registry
	model    string
	pointers []Pointer
}

// New creates a Store rooted at baseDir (e.g. "<base>/tool_contexts").
func New(baseDir string, registry *llm.Registry, summarizerModel string) *Store {
	return &Store{baseDir: baseDir, llm: registry, model: summarizerModel}
}

// filename implements spec §4.3's naming rule: "<TICKER>_<tool>_<fp>.json"
// when args.ticker is a string, else "<tool>_<fp>.json".
func filename(toolName string, args map[string]any, fp string) string {
	if ticker, ok := args["ticker"].(string); ok && strings.TrimSpace(ticker) != "" {
		return fmt.Sprintf("%s_%s_%s.json", strings.ToUpper(ticker), toolName, fp)
	}
	return fmt.Sprintf("%s_%s.json", toolName, fp)
}

// Save persists result under its content-addressed filename, generates a
// one-sentence LLM summary (falling back to a templated summary on
// failure), and appends a Pointer to the in-memory index (spec §4.3 Save).
func (s *Store) Save(ctx context.Context, toolName string, args map[string]any, result string, taskID, queryID string) (*Artifact, error) {
	fp := Fingerprint(toolName, args)
	fname := filename(toolName, args, fp)
	path := filepath.Join(s.baseDir, fname)

	summary := s.summarize(ctx, toolName, args, result)

	artifact := &Artifact{
		ToolName:  toolName,
		Args:      args,
		Summary:   summary,
		Result:    result,
		Timestamp: time.Now(),
		QueryID:   queryID,
		TaskID:    taskID,
	}

	if err := persistence.WriteJSON(path, artifact); err != nil {
		return nil, fmt.Errorf("toolcontext: save %s: %w", fname, err)
	}
	artifact.Filepath = path

	s.mu.Lock()
	s.pointers = append(s.pointers, Pointer{
		Filepath: path,
		Filename: fname,
		ToolName: toolName,
		Args:     args,
		Summary:  summary,
		TaskID:   taskID,
		QueryID:  queryID,
	})
	s.mu.Unlock()

	return artifact, nil
}

// summarize asks the LLM for a one-sentence summary of result (truncated
// to the first 1000 chars, spec §4.3 step 2), falling back to a templated
// summary on any failure so Save never blocks on a flaky model call.
func (s *Store) summarize(ctx context.Context, toolName string, args map[string]any, result string) string {
	fallback := func() string {
		argsJSON, _ := json.Marshal(args)
		return fmt.Sprintf("%s output with args %s", toolName, string(argsJSON))
	}
	if s.llm == nil {
		return fallback()
	}
	preview := result
	if len(preview) > 1000 {
		preview = preview[:1000]
	}
	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:        s.model,
		SystemPrompt: "Summarize the following tool output in exactly one sentence.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Tool: %s\nOutput:\n%s", toolName, preview)},
		},
		MaxTokens: 128,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return fallback()
	}
	return strings.TrimSpace(resp.Text)
}

// Pointers returns a snapshot of the in-memory pointer index.
func (s *Store) Pointers() []Pointer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pointer, len(s.pointers))
	copy(out, s.pointers)
	return out
}

// selectedContexts is the decode target for llm.SelectedContextsSchema.
type selectedContexts struct {
	ContextIDs []int `json:"context_ids"`
}

// SelectRelevant asks the model which pointers are relevant to query,
// fail-open per spec §4.3: on any error, every pointer's filepath is
// returned rather than none, because availability beats precision here.
func (s *Store) SelectRelevant(ctx context.Context, query string) []string {
	pointers := s.Pointers()
	if len(pointers) == 0 {
		return nil
	}
	if s.llm == nil {
		return allFilepaths(pointers)
	}

	listing := make([]map[string]any, len(pointers))
	for i, p := range pointers {
		listing[i] = map[string]any{"id": i, "tool_name": p.ToolName, "args": p.Args, "summary": p.Summary}
	}
	listingJSON, _ := json.Marshal(listing)

	resp, err := s.llm.Complete(ctx, llm.Request{
		Model:        s.model,
		SystemPrompt: "Select which of the following tool-context entries are relevant to the user's query. Respond with JSON {\"context_ids\": [...]}.",
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Query: %s\n\nEntries:\n%s", query, listingJSON)},
		},
		OutputSchema: &llm.SelectedContextsSchema,
		MaxTokens:    512,
	})
	if err != nil {
		return allFilepaths(pointers)
	}

	raw := resp.Structured
	if len(raw) == 0 {
		raw = json.RawMessage(resp.Text)
	}
	sel, err := llm.Validate[selectedContexts](raw)
	if err != nil {
		return allFilepaths(pointers)
	}

	var out []string
	for _, id := range sel.ContextIDs {
		if id >= 0 && id < len(pointers) {
			out = append(out, pointers[id].Filepath)
		}
	}
	return out
}

func allFilepaths(pointers []Pointer) []string {
	out := make([]string, len(pointers))
	for i, p := range pointers {
		out[i] = p.Filepath
	}
	return out
}

// ContextData is a best-effort-loaded artifact body for answer-time
// prompt assembly.
type ContextData struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
	Summary  string         `json:"summary"`
	Result   string         `json:"result"`
}

// LoadContexts best-effort reads each filepath, skipping (and logging via
// the returned errs slice) any malformed file rather than failing the
// whole batch (spec §4.3 loadContexts).
func (s *Store) LoadContexts(filepaths []string) ([]ContextData, []error) {
	var out []ContextData
	var errs []error
	for _, fp := range filepaths {
		data, err := os.ReadFile(fp)
		if err != nil {
			errs = append(errs, fmt.Errorf("toolcontext: read %s: %w", fp, err))
			continue
		}
		var cd ContextData
		if err := json.Unmarshal(data, &cd); err != nil {
			errs = append(errs, fmt.Errorf("toolcontext: decode %s: %w", fp, err))
			continue
		}
		out = append(out, cd)
	}
	return out, errs
}
