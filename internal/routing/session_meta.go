package routing

import (
	"sync"
	"time"

	"github.com/virattt/dexter-sub002/internal/persistence"
)

// SessionMeta is one session's last-used routing metadata (spec §6
// "Session meta").
type SessionMeta struct {
	SessionKey    string    `json:"sessionKey"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	LastChannel   string    `json:"lastChannel"`
	LastTo        string    `json:"lastTo"`
	LastAccountID string    `json:"lastAccountId"`
	LastAgentID   string    `json:"lastAgentId"`
}

type sessionMetaFile struct {
	Sessions map[string]SessionMeta `json:"sessions"`
}

// SessionMetaStore is one JSON file of session metadata keyed by session
// key, at the path its creator chooses. It does not partition by agent:
// cmd/gateway keeps the sessions of every agent in one session_meta.json
// behind one lock.
type SessionMetaStore struct {
	mu   sync.Mutex
	path string
}

// NewSessionMetaStore creates a store backed by path.
func NewSessionMetaStore(path string) *SessionMetaStore {
	return &SessionMetaStore{path: path}
}

// UpsertSessionMeta performs the atomic read-modify-write from spec §4.9:
// preserves createdAt across updates, refreshes updatedAt, and replaces
// the last-used channel/recipient/account/agent fields with update's.
func (s *SessionMetaStore) UpsertSessionMeta(sessionKey string, update SessionMeta) (SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f sessionMetaFile
	if err := persistence.ReadJSON(s.path, &f); err != nil {
		return SessionMeta{}, err
	}
	if f.Sessions == nil {
		f.Sessions = make(map[string]SessionMeta)
	}

	now := time.Now()
	existing, had := f.Sessions[sessionKey]

	meta := update
	meta.SessionKey = sessionKey
	meta.UpdatedAt = now
	if had {
		meta.CreatedAt = existing.CreatedAt
	} else {
		meta.CreatedAt = now
	}

	f.Sessions[sessionKey] = meta
	if err := persistence.WriteJSON(s.path, f); err != nil {
		return SessionMeta{}, err
	}
	return meta, nil
}

// Get returns the currently stored metadata for sessionKey, if any.
func (s *SessionMetaStore) Get(sessionKey string) (SessionMeta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var f sessionMetaFile
	if err := persistence.ReadJSON(s.path, &f); err != nil {
		return SessionMeta{}, false, err
	}
	meta, ok := f.Sessions[sessionKey]
	return meta, ok, nil
}
