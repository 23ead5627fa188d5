// Package routing implements route resolution and session-key
// construction (C9): mapping an inbound event to an agent id via
// gateway.json bindings, and building the canonical session key that
// scopes conversation history and the per-session serializer (C10).
package routing

import (
	"fmt"
	"strings"
)

// Binding is one entry of gateway.json's `bindings` array.
type Binding struct {
	AgentID string
	Match   Match
}

// Match is a binding's selector (spec §4.9): channel is required;
// accountId/peerKind/peerId are progressively more specific.
type Match struct {
	Channel   string
	AccountID string // "", "*", or an exact account id
	PeerKind  string
	PeerID    string
}

// Peer identifies the specific conversation partner within an account.
type Peer struct {
	Kind string
	ID   string
}

// Route is resolveRoute's result.
type Route struct {
	AgentID   string
	MatchedBy string // "binding.peer" | "binding.account" | "binding.channel" | "default"
}

// ResolveRoute implements spec §4.9 resolveRoute: filter by channel
// (case-insensitive), then prefer a peer-level match, then account-level,
// then channel-level, else defaultAgentID.
func ResolveRoute(bindings []Binding, channel, accountID string, peer *Peer, defaultAgentID string) Route {
	var candidates []Binding
	for _, b := range bindings {
		if !strings.EqualFold(b.Match.Channel, channel) {
			continue
		}
		if b.Match.AccountID != "" && b.Match.AccountID != "*" && b.Match.AccountID != accountID {
			continue
		}
		candidates = append(candidates, b)
	}

	if peer != nil {
		for _, b := range candidates {
			if b.Match.PeerKind == peer.Kind && b.Match.PeerID == peer.ID {
				return Route{AgentID: b.AgentID, MatchedBy: "binding.peer"}
			}
		}
	}
	for _, b := range candidates {
		if b.Match.AccountID != "" && b.Match.PeerID == "" {
			return Route{AgentID: b.AgentID, MatchedBy: "binding.account"}
		}
	}
	for _, b := range candidates {
		if b.Match.AccountID == "" && b.Match.PeerID == "" {
			return Route{AgentID: b.AgentID, MatchedBy: "binding.channel"}
		}
	}
	return Route{AgentID: defaultAgentID, MatchedBy: "default"}
}

// SessionKeyParts is the decomposed form BuildSessionKey canonicalizes;
// ParseSessionKey is its inverse for the round-trip property in spec §8.
type SessionKeyParts struct {
	AgentID   string
	Channel   string
	AccountID string
	Peer      *Peer
}

// BuildSessionKey canonicalizes to "agent:<id>:main" (no peer) or
// "agent:<id>:<channel>:<account>:<peerKind>:<peerId>" (spec §4.9).
func BuildSessionKey(p SessionKeyParts) string {
	if p.Peer == nil {
		return fmt.Sprintf("agent:%s:main", p.AgentID)
	}
	return fmt.Sprintf("agent:%s:%s:%s:%s:%s", p.AgentID, p.Channel, p.AccountID, p.Peer.Kind, p.Peer.ID)
}

// ParseSessionKey is BuildSessionKey's inverse, supporting the spec §8
// round-trip property: BuildSessionKey(Parse(BuildSessionKey(x))) ==
// BuildSessionKey(x).
func ParseSessionKey(key string) (SessionKeyParts, bool) {
	parts := strings.Split(key, ":")
	if len(parts) == 3 && parts[0] == "agent" && parts[2] == "main" {
		return SessionKeyParts{AgentID: parts[1]}, true
	}
	if len(parts) == 6 && parts[0] == "agent" {
		return SessionKeyParts{
			AgentID:   parts[1],
			Channel:   parts[2],
			AccountID: parts[3],
			Peer:      &Peer{Kind: parts[4], ID: parts[5]},
		}, true
	}
	return SessionKeyParts{}, false
}
