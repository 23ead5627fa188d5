package pairing

import (
	"path/filepath"
	"testing"
)

func TestUpsertRequestFirstCodePersists(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairing.json"))

	code1, created1, err := store.UpsertRequest("+1 (555) 123-4567")
	if err != nil {
		t.Fatalf("UpsertRequest: %v", err)
	}
	if !created1 {
		t.Fatal("expected first UpsertRequest to create a new request")
	}
	if len(code1) != CodeLength {
		t.Fatalf("expected a %d-digit code, got %q", CodeLength, code1)
	}

	// Same phone (even under a differently formatted input) must not get a
	// new code: the first code persists while the request is pending.
	code2, created2, err := store.UpsertRequest("whatsapp:+15551234567")
	if err != nil {
		t.Fatalf("second UpsertRequest: %v", err)
	}
	if created2 {
		t.Fatal("expected second UpsertRequest for the same phone to not create a new request")
	}
	if code1 != code2 {
		t.Fatalf("expected the same code to persist, got %q then %q", code1, code2)
	}
}

func TestApproveCodeRemovesRequest(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairing.json"))

	code, _, err := store.UpsertRequest("+15551234567")
	if err != nil {
		t.Fatalf("UpsertRequest: %v", err)
	}

	phone, err := store.ApproveCode(code)
	if err != nil {
		t.Fatalf("ApproveCode: %v", err)
	}
	if phone != "+15551234567" {
		t.Fatalf("expected approved phone +15551234567, got %q", phone)
	}

	if _, err := store.ApproveCode(code); err != ErrCodeNotFound {
		t.Fatalf("expected ErrCodeNotFound on re-approval, got %v", err)
	}
}

func TestApproveCodeUnknownCode(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairing.json"))
	if _, err := store.ApproveCode("000000"); err != ErrCodeNotFound {
		t.Fatalf("expected ErrCodeNotFound for an unknown code, got %v", err)
	}
}

func TestUpsertRequestPersistsAcrossStoreInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairing.json")
	store1 := NewStore(path)
	code, _, err := store1.UpsertRequest("+15551234567")
	if err != nil {
		t.Fatalf("UpsertRequest: %v", err)
	}

	store2 := NewStore(path)
	phone, err := store2.ApproveCode(code)
	if err != nil {
		t.Fatalf("ApproveCode via a fresh Store instance: %v", err)
	}
	if phone != "+15551234567" {
		t.Fatalf("expected +15551234567, got %q", phone)
	}
}
