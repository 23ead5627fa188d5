package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSONReadJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.json")
	want := sample{Name: "alpha", Count: 3}

	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got sample
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be renamed away, stat err = %v", err)
	}
}

func TestReadJSONMissingFileIsZeroValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	var got sample
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON on missing file: %v", err)
	}
	if got != (sample{}) {
		t.Fatalf("expected zero value, got %+v", got)
	}
}

func TestWriteJSONWithBackupRestoresOnCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	if err := WriteJSONWithBackup(path, sample{Name: "v1", Count: 1}); err != nil {
		t.Fatalf("first WriteJSONWithBackup: %v", err)
	}
	if err := WriteJSONWithBackup(path, sample{Name: "v2", Count: 2}); err != nil {
		t.Fatalf("second WriteJSONWithBackup: %v", err)
	}

	// Corrupt the live file; the backup should hold the previous good version.
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	var got sample
	if err := ReadJSONWithBackup(path, &got); err != nil {
		t.Fatalf("ReadJSONWithBackup: %v", err)
	}
	if got.Name != "v1" {
		t.Fatalf("expected restore from backup to yield v1, got %+v", got)
	}
}

func TestReadNDJSONSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.ndjson")
	content := "{\"name\":\"a\",\"count\":1}\nnot json\n{\"name\":\"b\",\"count\":2}\n\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var got []sample
	err := ReadNDJSON(path, func(line []byte) error {
		var s sample
		if err := json.Unmarshal(line, &s); err != nil {
			return err
		}
		got = append(got, s)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadNDJSON: %v", err)
	}
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Fatalf("expected two decoded entries skipping the malformed line, got %+v", got)
	}
}
