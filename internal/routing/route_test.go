package routing

import "testing"

func TestResolveRoutePrecedence(t *testing.T) {
	bindings := []Binding{
		{AgentID: "channel-agent", Match: Match{Channel: "discord"}},
		{AgentID: "account-agent", Match: Match{Channel: "discord", AccountID: "acct1"}},
		{AgentID: "peer-agent", Match: Match{Channel: "discord", AccountID: "acct1", PeerKind: "user", PeerID: "u1"}},
	}

	// S5: a peer-level match beats an account-level match beats a
	// channel-level match beats the default.
	r := ResolveRoute(bindings, "discord", "acct1", &Peer{Kind: "user", ID: "u1"}, "default-agent")
	if r.AgentID != "peer-agent" || r.MatchedBy != "binding.peer" {
		t.Fatalf("expected peer match to win, got %+v", r)
	}

	r = ResolveRoute(bindings, "discord", "acct1", &Peer{Kind: "user", ID: "other"}, "default-agent")
	if r.AgentID != "account-agent" || r.MatchedBy != "binding.account" {
		t.Fatalf("expected account match to win, got %+v", r)
	}

	r = ResolveRoute(bindings, "discord", "acct2", &Peer{Kind: "user", ID: "u1"}, "default-agent")
	if r.AgentID != "channel-agent" || r.MatchedBy != "binding.channel" {
		t.Fatalf("expected channel match to win, got %+v", r)
	}

	r = ResolveRoute(bindings, "telegram", "acct1", nil, "default-agent")
	if r.AgentID != "default-agent" || r.MatchedBy != "default" {
		t.Fatalf("expected default fallback, got %+v", r)
	}
}

func TestResolveRouteChannelIsCaseInsensitive(t *testing.T) {
	bindings := []Binding{{AgentID: "a1", Match: Match{Channel: "Discord"}}}
	r := ResolveRoute(bindings, "discord", "acct", nil, "default")
	if r.AgentID != "a1" {
		t.Fatalf("expected case-insensitive channel match, got %+v", r)
	}
}

func TestSessionKeyRoundTrip(t *testing.T) {
	cases := []SessionKeyParts{
		{AgentID: "agent1"},
		{AgentID: "agent1", Channel: "discord", AccountID: "acct1", Peer: &Peer{Kind: "user", ID: "u1"}},
	}
	for _, parts := range cases {
		key := BuildSessionKey(parts)
		parsed, ok := ParseSessionKey(key)
		if !ok {
			t.Fatalf("ParseSessionKey(%q) failed to parse", key)
		}
		if BuildSessionKey(parsed) != key {
			t.Errorf("round trip mismatch: built %q, reparsed/rebuilt to %q", key, BuildSessionKey(parsed))
		}
	}
}

func TestParseSessionKeyRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "not:a:key", "agent:1:2:3:4"} {
		if _, ok := ParseSessionKey(bad); ok {
			t.Errorf("ParseSessionKey(%q) unexpectedly succeeded", bad)
		}
	}
}
