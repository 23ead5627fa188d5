// Package pairing implements the pairing-request store referenced by C8:
// a single atomic JSON file mapping a normalized E.164 phone number to a
// pending 6-digit pairing code, adapted from nexus's
// internal/pairing.Store (which keys per-channel with a longer
// alphanumeric code); spec §6 keys this store directly by E.164 with a
// numeric code instead.
package pairing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/virattt/dexter-sub002/internal/access"
	"github.com/virattt/dexter-sub002/internal/persistence"
)

// CodeLength is the numeric pairing code length (spec §4.8: "random
// 6-digit code").
const CodeLength = 6

// ErrCodeNotFound indicates no pending request matches a code.
var ErrCodeNotFound = errors.New("pairing: code not found")

// Request is one pending pairing request (spec §6 "Pairing store"). ID is
// an opaque internal correlation id (not part of the spec's keyed-by-E164
// schema) surfaced in logs and approval audit trails so a pairing request
// can be referenced independently of its phone number or code.
type Request struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

type storeFile struct {
	Requests map[string]Request `json:"requests"`
}

// Store is the atomic-JSON-backed pairing request store, keyed by
// normalized E.164.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store persisting to path (typically
// $DEXTER_PAIRING_PATH, spec §6 Environment variables).
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (storeFile, error) {
	var f storeFile
	if err := persistence.ReadJSONWithBackup(s.path, &f); err != nil {
		return storeFile{}, err
	}
	if f.Requests == nil {
		f.Requests = make(map[string]Request)
	}
	return f, nil
}

func (s *Store) save(f storeFile) error {
	return persistence.WriteJSONWithBackup(s.path, f)
}

// UpsertRequest creates a pending pairing request for phone, matching
// nexus's UpsertRequest collision-handling: an existing request for the
// same phone is returned unchanged (same code, same CreatedAt, nothing
// rewritten, created=false); a new phone gets a freshly generated code
// unique among pending requests.
func (s *Store) UpsertRequest(phone string) (code string, created bool, err error) {
	phone = access.NormalizeE164(phone)
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return "", false, err
	}

	if existing, ok := f.Requests[phone]; ok {
		return existing.Code, false, nil
	}

	existingCodes := make(map[string]bool, len(f.Requests))
	for _, r := range f.Requests {
		existingCodes[r.Code] = true
	}
	newCode, err := generateUniqueCode(existingCodes)
	if err != nil {
		return "", false, err
	}

	f.Requests[phone] = Request{ID: uuid.NewString(), Phone: phone, Code: newCode, CreatedAt: time.Now()}
	if err := s.save(f); err != nil {
		return "", false, err
	}
	return newCode, true, nil
}

// ApproveCode resolves code to its pending phone number, removing the
// request. Returns ErrCodeNotFound if no pending request matches.
func (s *Store) ApproveCode(code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return "", err
	}
	for phone, r := range f.Requests {
		if r.Code == code {
			delete(f.Requests, phone)
			if err := s.save(f); err != nil {
				return "", err
			}
			return phone, nil
		}
	}
	return "", ErrCodeNotFound
}

// BuildPairingReply renders the message sent back to an unpaired sender
// (spec §4.8's buildPairingReply(code, senderId)).
func BuildPairingReply(code, senderID string) string {
	return fmt.Sprintf("You're not yet paired with this assistant. Send code %s to an approved contact, or ask an admin to approve %s.", code, senderID)
}

func generateUniqueCode(existing map[string]bool) (string, error) {
	for i := 0; i < 500; i++ {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if !existing[code] {
			return code, nil
		}
	}
	return "", errors.New("pairing: failed to generate unique code")
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}
