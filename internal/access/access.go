// Package access implements inbound access control (C8): a pure decision
// function over an account's allowlist/group/DM policy plus the pairing
// flow that lets an unknown sender request access.
package access

import (
	"regexp"
	"strings"
	"time"
)

// GroupPolicy is the account's policy for messages arriving in a group.
type GroupPolicy string

const (
	GroupOpen      GroupPolicy = "open"
	GroupAllowlist GroupPolicy = "allowlist"
	GroupDisabled  GroupPolicy = "disabled"
)

// DMPolicy is the account's policy for direct messages.
type DMPolicy string

const (
	DMOpen      DMPolicy = "open"
	DMAllowlist DMPolicy = "allowlist"
	DMPairing   DMPolicy = "pairing"
	DMDisabled  DMPolicy = "disabled"
)

// DefaultPairingGrace is the default pairing grace window (spec §4.8,
// §5 Timeouts): messages older than this relative to the account's
// reconnect time are historical backlog and never trigger a pairing
// reply.
const DefaultPairingGrace = 30 * time.Second

// Policy is the account-level access policy evaluated by CheckInbound.
type Policy struct {
	SelfE164        string
	AllowFrom       []string // wildcard "*" honored
	GroupPolicy     GroupPolicy
	GroupAllowFrom  []string
	DMPolicy        DMPolicy
	ConnectedAt     time.Time
	PairingGrace    time.Duration
}

// Inbound is the normalized inbound event CheckInbound decides over.
type Inbound struct {
	Group             bool
	IsFromMe          bool
	SenderE164        string
	MessageTimestamp  time.Time
}

// Decision is CheckInbound's result (spec §4.8's
// "{allowed, shouldMarkRead, isSelfChat, denyReason?}").
type Decision struct {
	Allowed       bool
	ShouldMarkRead bool
	IsSelfChat    bool
	DenyReason    string
}

func wildcardOrMatch(list []string, sender string) bool {
	for _, v := range list {
		if v == "*" || v == sender {
			return true
		}
	}
	return false
}

func isSelfChatMode(policy Policy) bool {
	return policy.SelfE164 != "" && wildcardOrMatch(policy.AllowFrom, policy.SelfE164)
}

// CheckInbound is the pure decision function from spec §4.8.
func CheckInbound(policy Policy, in Inbound, recordPairing func(senderE164 string) (code string, ok bool)) Decision {
	if isSelfChatMode(policy) {
		if in.Group {
			return Decision{Allowed: false, DenyReason: "group_blocked_self_chat_mode"}
		}
		if in.IsFromMe && in.SenderE164 == policy.SelfE164 {
			return Decision{Allowed: true, ShouldMarkRead: true, IsSelfChat: true}
		}
		return Decision{Allowed: false, DenyReason: "sender_not_self_in_self_chat_mode"}
	}

	if in.Group {
		return checkGroup(policy, in)
	}
	return checkDirect(policy, in, recordPairing)
}

func checkGroup(policy Policy, in Inbound) Decision {
	if policy.GroupPolicy != GroupOpen && policy.GroupPolicy != GroupAllowlist {
		return Decision{Allowed: false, DenyReason: "group_policy_not_permissive"}
	}
	if policy.GroupPolicy == GroupOpen {
		return Decision{Allowed: true, ShouldMarkRead: true}
	}
	if len(policy.GroupAllowFrom) == 0 {
		return Decision{Allowed: false, DenyReason: "group_allowlist_empty"}
	}
	if !wildcardOrMatch(policy.GroupAllowFrom, in.SenderE164) {
		return Decision{Allowed: false, DenyReason: "group_sender_not_allowlisted"}
	}
	return Decision{Allowed: true, ShouldMarkRead: true}
}

func checkDirect(policy Policy, in Inbound, recordPairing func(string) (string, bool)) Decision {
	if policy.DMPolicy == DMDisabled {
		return Decision{Allowed: false}
	}
	if in.IsFromMe && in.SenderE164 != policy.SelfE164 {
		return Decision{Allowed: false, DenyReason: "outbound_dm_to_non_self"}
	}
	if policy.DMPolicy == DMOpen {
		return Decision{Allowed: true, ShouldMarkRead: true}
	}
	if wildcardOrMatch(policy.AllowFrom, in.SenderE164) {
		return Decision{Allowed: true, ShouldMarkRead: true}
	}

	if policy.DMPolicy == DMPairing && !withinPairingGrace(policy, in) && recordPairing != nil {
		recordPairing(in.SenderE164)
	}
	return Decision{Allowed: false, DenyReason: "dm_sender_not_allowlisted"}
}

// withinPairingGrace reports whether the message is historical backlog
// relative to the connection time (spec §4.8 "Pairing grace").
func withinPairingGrace(policy Policy, in Inbound) bool {
	if policy.ConnectedAt.IsZero() || in.MessageTimestamp.IsZero() {
		return false
	}
	grace := policy.PairingGrace
	if grace <= 0 {
		grace = DefaultPairingGrace
	}
	return in.MessageTimestamp.Before(policy.ConnectedAt.Add(-grace))
}

var e164Allowed = regexp.MustCompile(`[^\d+]`)

// NormalizeE164 strips a leading "whatsapp:" prefix, trims whitespace,
// removes every character outside [0-9+], and guarantees a leading "+"
// (spec §4.8 Normalization). Idempotent: NormalizeE164(NormalizeE164(x))
// == NormalizeE164(x) (spec §8 round-trip property).
func NormalizeE164(x string) string {
	x = strings.TrimSpace(x)
	x = strings.TrimPrefix(x, "whatsapp:")
	x = e164Allowed.ReplaceAllString(x, "")
	x = strings.TrimLeft(x, "+")
	if x == "" {
		return ""
	}
	return "+" + x
}
