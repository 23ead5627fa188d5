package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry is a thread-safe catalog of available tools, gated by which
// capability env vars are present in the process environment (spec §4.2).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool if every capability it declares is satisfied by the
// process environment, matching spec §4.2's "registry(model) → seq<...>
// derived from the capability configuration". Tools with unmet
// capabilities are silently skipped, the same as not existing.
func (r *Registry) Register(tool Tool) {
	for _, cap := range tool.Capabilities() {
		if strings.TrimSpace(os.Getenv(cap)) == "" {
			return
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Entries returns the registry(model) catalog view, sorted by name for
// deterministic prompt construction.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.tools))
	for name, t := range r.tools {
		entries = append(entries, Entry{Name: name, Tool: t, RichDescription: t.Description()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// BuildToolDescriptions produces the prompt-injection block from spec
// §4.2: one "### name\n\nrichDescription" section per registered tool.
func (r *Registry) BuildToolDescriptions() string {
	var b strings.Builder
	for _, e := range r.Entries() {
		b.WriteString("### ")
		b.WriteString(e.Name)
		b.WriteString("\n\n")
		b.WriteString(e.RichDescription)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Invoke validates args against the tool's JSON schema and runs it,
// always returning a string result (structured results are
// JSON-serialized) per spec §4.2.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("tool not found: %s", name)
	}
	if schema := tool.JSONSchema(); len(schema) > 0 {
		if err := validateAgainstSchema(schema, args); err != nil {
			return "", fmt.Errorf("tool %s: invalid args: %w", name, err)
		}
	}
	return tool.Invoke(ctx, args)
}

// validateAgainstSchema compiles schema in-memory with
// santhosh-tekuri/jsonschema and validates args against it.
func validateAgainstSchema(schema map[string]any, args map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	const resourceURL = "mem://tool-schema.json"
	if err := compiler.AddResource(resourceURL, strings.NewReader(string(raw))); err != nil {
		return err
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return err
	}
	// jsonschema validates against json.RawMessage-decoded values (map[string]any
	// with JSON number semantics), so round-trip args through encoding/json.
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(argsJSON, &instance); err != nil {
		return err
	}
	return compiled.Validate(instance)
}
