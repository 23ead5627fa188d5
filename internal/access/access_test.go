package access

import (
	"testing"
	"time"
)

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "+15551234567",
		"whatsapp:+15551234567": "+15551234567",
		"  +15551234567  ":  "+15551234567",
		"15551234567":        "+15551234567",
		"":                   "",
	}
	for in, want := range cases {
		if got := NormalizeE164(in); got != want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeE164Idempotent(t *testing.T) {
	inputs := []string{"+1 (555) 123-4567", "whatsapp:+15551234567", "15551234567", ""}
	for _, in := range inputs {
		once := NormalizeE164(in)
		twice := NormalizeE164(once)
		if once != twice {
			t.Errorf("NormalizeE164 not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestCheckInboundSelfChatMode(t *testing.T) {
	policy := Policy{SelfE164: "+15550000000", AllowFrom: []string{"+15550000000"}}

	// S1: self-chat group message is blocked outright.
	d := CheckInbound(policy, Inbound{Group: true, SenderE164: "+15550000000"}, nil)
	if d.Allowed || d.DenyReason != "group_blocked_self_chat_mode" {
		t.Fatalf("expected group blocked in self-chat mode, got %+v", d)
	}

	// S2: own outbound-to-self direct message is allowed and marks read.
	d = CheckInbound(policy, Inbound{IsFromMe: true, SenderE164: "+15550000000"}, nil)
	if !d.Allowed || !d.IsSelfChat || !d.ShouldMarkRead {
		t.Fatalf("expected self-chat direct message allowed, got %+v", d)
	}

	// Any other sender in self-chat mode is denied even as a direct message.
	d = CheckInbound(policy, Inbound{SenderE164: "+15559999999"}, nil)
	if d.Allowed {
		t.Fatalf("expected non-self sender denied in self-chat mode, got %+v", d)
	}
}

func TestCheckInboundGroupPolicies(t *testing.T) {
	// S3: group open policy allows anyone.
	open := Policy{GroupPolicy: GroupOpen}
	if d := CheckInbound(open, Inbound{Group: true, SenderE164: "+1"}, nil); !d.Allowed {
		t.Fatalf("expected open group policy to allow, got %+v", d)
	}

	// S4: group allowlist only allows listed senders.
	allow := Policy{GroupPolicy: GroupAllowlist, GroupAllowFrom: []string{"+15551234567"}}
	if d := CheckInbound(allow, Inbound{Group: true, SenderE164: "+15551234567"}, nil); !d.Allowed {
		t.Fatalf("expected allowlisted group sender to be allowed, got %+v", d)
	}
	if d := CheckInbound(allow, Inbound{Group: true, SenderE164: "+19999999999"}, nil); d.Allowed {
		t.Fatalf("expected non-allowlisted group sender denied, got %+v", d)
	}

	disabled := Policy{GroupPolicy: GroupDisabled}
	if d := CheckInbound(disabled, Inbound{Group: true, SenderE164: "+1"}, nil); d.Allowed {
		t.Fatalf("expected disabled group policy to deny, got %+v", d)
	}
}

func TestCheckInboundDirectPairing(t *testing.T) {
	policy := Policy{DMPolicy: DMPairing}
	var recorded string
	record := func(sender string) (string, bool) {
		recorded = sender
		return "123456", true
	}

	d := CheckInbound(policy, Inbound{SenderE164: "+15551234567"}, record)
	if d.Allowed {
		t.Fatalf("expected pairing DM to be denied on first contact, got %+v", d)
	}
	if recorded != "+15551234567" {
		t.Fatalf("expected pairing to be recorded for sender, got %q", recorded)
	}
}

func TestCheckInboundDirectPairingGraceSkipsBacklog(t *testing.T) {
	now := time.Now()
	policy := Policy{
		DMPolicy:    DMPairing,
		ConnectedAt: now,
	}
	var called bool
	record := func(string) (string, bool) {
		called = true
		return "", false
	}

	d := CheckInbound(policy, Inbound{
		SenderE164:       "+15551234567",
		MessageTimestamp: now.Add(-time.Hour),
	}, record)

	if d.Allowed {
		t.Fatalf("expected backlog message to be denied, got %+v", d)
	}
	if called {
		t.Fatalf("expected no pairing to be recorded for historical backlog message")
	}
}

func TestCheckInboundDirectDisabledAndOpen(t *testing.T) {
	disabled := Policy{DMPolicy: DMDisabled}
	if d := CheckInbound(disabled, Inbound{SenderE164: "+1"}, nil); d.Allowed {
		t.Fatalf("expected disabled DM policy to deny, got %+v", d)
	}

	open := Policy{DMPolicy: DMOpen}
	if d := CheckInbound(open, Inbound{SenderE164: "+1"}, nil); !d.Allowed {
		t.Fatalf("expected open DM policy to allow, got %+v", d)
	}
}
