package history

import (
	"context"
	"path/filepath"
	"testing"
)

func TestAddMessageAssignsSequentialIDsStartingAtZero(t *testing.T) {
	h, err := Load(filepath.Join(t.TempDir(), "history.json"), nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx := context.Background()
	if err := h.AddMessage(ctx, "q1", "a1"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if err := h.AddMessage(ctx, "q2", "a2"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	turns := h.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	// spec §8 property 1: the first appended turn is always id 0.
	if turns[0].ID != 0 {
		t.Fatalf("expected first turn id 0, got %d", turns[0].ID)
	}
	if turns[1].ID != 1 {
		t.Fatalf("expected second turn id 1, got %d", turns[1].ID)
	}
}

func TestAddMessagePersistsFullAnswerSeparatelyFromSummary(t *testing.T) {
	h, err := Load(filepath.Join(t.TempDir(), "history.json"), nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx := context.Background()
	if err := h.AddMessage(ctx, "what is AAPL trading at", "AAPL is trading at $150."); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	turns := h.Turns()
	if turns[0].Answer != "AAPL is trading at $150." {
		t.Fatalf("expected full answer to be persisted, got %q", turns[0].Answer)
	}
	if turns[0].Summary == "" {
		t.Fatal("expected a fallback summary to be generated without an LLM registry")
	}
}

func TestFormatForAnswerGenerationUsesFullAnswerNotSummary(t *testing.T) {
	turns := []Turn{{Query: "q", Answer: "full answer text", Summary: "short summary"}}
	out := FormatForAnswerGeneration(turns)
	if !contains(out, "full answer text") {
		t.Fatalf("expected answer-generation format to include the full answer, got %q", out)
	}
	if contains(out, "short summary") {
		t.Fatalf("expected answer-generation format to not include the summary, got %q", out)
	}
}

func TestFormatForPlanningUsesSummaryNotFullAnswer(t *testing.T) {
	turns := []Turn{{Query: "q", Answer: "full answer text", Summary: "short summary"}}
	out := FormatForPlanning(turns)
	if !contains(out, "short summary") {
		t.Fatalf("expected planning format to include the summary, got %q", out)
	}
	if contains(out, "full answer text") {
		t.Fatalf("expected planning format to not include the full answer, got %q", out)
	}
}

func TestLoadMissingFileYieldsEmptyHistory(t *testing.T) {
	h, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(h.Turns()) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(h.Turns()))
	}
}

func TestClearResetsTurnsAndNextID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	h, err := Load(path, nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx := context.Background()
	_ = h.AddMessage(ctx, "q1", "a1")
	if err := h.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(h.Turns()) != 0 {
		t.Fatal("expected Clear to empty the turn list")
	}
	_ = h.AddMessage(ctx, "q2", "a2")
	if h.Turns()[0].ID != 0 {
		t.Fatalf("expected id counter to reset after Clear, got %d", h.Turns()[0].ID)
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
