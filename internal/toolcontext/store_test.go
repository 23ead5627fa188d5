package toolcontext

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSaveWritesArtifactAndPointer(t *testing.T) {
	store := New(t.TempDir(), nil, "")
	artifact, err := store.Save(context.Background(), "get_stock_quote", map[string]any{"ticker": "aapl"}, `{"price":150}`, "task1", "query1")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if artifact.Filepath == "" {
		t.Fatal("expected a non-empty filepath")
	}
	if filepath.Base(artifact.Filepath)[:4] != "AAPL" {
		t.Fatalf("expected ticker-prefixed filename, got %q", artifact.Filepath)
	}

	pointers := store.Pointers()
	if len(pointers) != 1 || pointers[0].ToolName != "get_stock_quote" {
		t.Fatalf("expected one pointer for the saved artifact, got %+v", pointers)
	}
}

func TestFilenameWithoutTickerFallsBackToToolAndFingerprint(t *testing.T) {
	store := New(t.TempDir(), nil, "")
	artifact, err := store.Save(context.Background(), "web_search", map[string]any{"query": "go generics"}, "results", "", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	base := filepath.Base(artifact.Filepath)
	want := "web_search_"
	if len(base) < len(want) || base[:len(want)] != want {
		t.Fatalf("expected filename to start with %q, got %q", want, base)
	}
}

func TestSelectRelevantFailsOpenWithoutLLM(t *testing.T) {
	store := New(t.TempDir(), nil, "")
	if _, err := store.Save(context.Background(), "get_stock_quote", map[string]any{"ticker": "AAPL"}, "data", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := store.Save(context.Background(), "get_stock_quote", map[string]any{"ticker": "MSFT"}, "data", "", ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := store.SelectRelevant(context.Background(), "what about AAPL")
	if len(got) != 2 {
		t.Fatalf("expected fail-open to return every pointer's filepath, got %v", got)
	}
}

func TestSelectRelevantEmptyStoreReturnsNil(t *testing.T) {
	store := New(t.TempDir(), nil, "")
	if got := store.SelectRelevant(context.Background(), "anything"); got != nil {
		t.Fatalf("expected nil for an empty store, got %v", got)
	}
}

func TestLoadContextsSkipsMissingFiles(t *testing.T) {
	store := New(t.TempDir(), nil, "")
	artifact, err := store.Save(context.Background(), "get_stock_quote", map[string]any{"ticker": "AAPL"}, "data", "", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, errs := store.LoadContexts([]string{artifact.Filepath, "/does/not/exist.json"})
	if len(out) != 1 {
		t.Fatalf("expected one loaded context, got %d", len(out))
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error for the missing file, got %d", len(errs))
	}
}
