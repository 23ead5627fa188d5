package tools

import (
	"context"
	"os"
	"testing"
)

type fakeTool struct {
	name   string
	caps   []string
	schema map[string]any
	result string
	err    error
}

func (f *fakeTool) Name() string              { return f.name }
func (f *fakeTool) Description() string       { return "a fake tool for tests" }
func (f *fakeTool) JSONSchema() map[string]any { return f.schema }
func (f *fakeTool) Capabilities() []string     { return f.caps }
func (f *fakeTool) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return f.result, f.err
}

func TestRegisterSkipsToolWithUnmetCapability(t *testing.T) {
	os.Unsetenv("DEXTER_TEST_CAPABILITY")
	r := NewRegistry()
	r.Register(&fakeTool{name: "gated", caps: []string{"DEXTER_TEST_CAPABILITY"}})

	if _, ok := r.Get("gated"); ok {
		t.Fatal("expected tool with unmet capability to not be registered")
	}
}

func TestRegisterAllowsToolWithSatisfiedCapability(t *testing.T) {
	t.Setenv("DEXTER_TEST_CAPABILITY", "1")
	r := NewRegistry()
	r.Register(&fakeTool{name: "gated", caps: []string{"DEXTER_TEST_CAPABILITY"}})

	if _, ok := r.Get("gated"); !ok {
		t.Fatal("expected tool with satisfied capability to be registered")
	}
}

func TestEntriesAreSortedByName(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "zeta"})
	r.Register(&fakeTool{name: "alpha"})
	r.Register(&fakeTool{name: "mid"})

	entries := r.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "alpha" || entries[1].Name != "mid" || entries[2].Name != "zeta" {
		t.Fatalf("expected sorted order, got %+v", entries)
	}
}

func TestInvokeValidatesArgsAgainstSchema(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{
		name:   "echo",
		result: "ok",
		schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"message": map[string]any{"type": "string"}},
			"required":             []any{"message"},
			"additionalProperties": false,
		},
	})

	if _, err := r.Invoke(context.Background(), "echo", map[string]any{"message": "hi"}); err != nil {
		t.Fatalf("expected valid args to pass, got %v", err)
	}
	if _, err := r.Invoke(context.Background(), "echo", map[string]any{}); err == nil {
		t.Fatal("expected missing required field to fail validation")
	}
	if _, err := r.Invoke(context.Background(), "echo", map[string]any{"message": 5}); err == nil {
		t.Fatal("expected wrong type to fail validation")
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Invoke(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected invoking an unregistered tool to error")
	}
}

func TestBuildToolDescriptionsIncludesEachToolName(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "alpha"})
	r.Register(&fakeTool{name: "beta"})

	out := r.BuildToolDescriptions()
	if !contains(out, "### alpha") || !contains(out, "### beta") {
		t.Fatalf("expected both tool names in descriptions, got %q", out)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
