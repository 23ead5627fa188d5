// Package gateway implements the gateway orchestrator (C10): the
// dedupe -> access-check -> route -> session-meta -> allowFrom re-check ->
// typing-indicator -> per-session-serialized agent turn -> outbound-reply
// pipeline that ties
// every other component together, grounded on nexus's
// internal/gateway/runtime.go dispatch shape.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/virattt/dexter-sub002/internal/access"
	"github.com/virattt/dexter-sub002/internal/agent"
	"github.com/virattt/dexter-sub002/internal/channels"
	"github.com/virattt/dexter-sub002/internal/dedupe"
	"github.com/virattt/dexter-sub002/internal/history"
	"github.com/virattt/dexter-sub002/internal/llm"
	"github.com/virattt/dexter-sub002/internal/pairing"
	"github.com/virattt/dexter-sub002/internal/routing"
	"github.com/virattt/dexter-sub002/internal/toolcontext"
	"github.com/virattt/dexter-sub002/internal/tools"
)

// Sender delivers outbound operations to a channel. The implementation
// used by cmd/gateway (channels.MultiSender) does not check the
// destination against the account's allowFrom: HandleInbound re-checks a
// direct-message destination with allowFromPermits before the agent turn,
// and pairing replies are sent without that check.
type Sender interface {
	Send(ctx context.Context, channel, accountID, peerID string, isGroup bool, body string) error
	SendComposing(ctx context.Context, channel, accountID, peerID string, isGroup bool) error
}

// TypingInterval is how often the composing presence is refreshed during
// a turn (spec §5 Timeouts).
const TypingInterval = 5 * time.Second

// HistoryFactory opens (or creates) the conversation-history store for a
// session key.
type HistoryFactory func(sessionKey string) (*history.History, error)

// Orchestrator wires every other component into the single
// HandleInbound pipeline.
type Orchestrator struct {
	Dedup        *dedupe.Cache
	SessionMeta  *routing.SessionMetaStore
	Pairing      *pairing.Store
	Sender       Sender
	LLM          *llm.Registry
	Tools        *tools.Registry
	ToolStore    *toolcontext.Store
	OpenHistory  HistoryFactory
	Logger       *slog.Logger
	BrandTag     string
	DefaultModel string
	Metrics      *Metrics

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// InboundEvent is the normalized inbound shape from spec §6.
type InboundEvent struct {
	AccountID        string
	Channel          string
	From             string // raw peer id (group id or direct sender id)
	SenderE164       string
	SelfE164         string
	Group            bool
	IsFromMe         bool
	Body             string
	MessageKey       string
	MessageTimestamp time.Time
}

// AccountPolicy bundles an account's routing and access-control
// configuration for one HandleInbound call.
type AccountPolicy struct {
	Bindings       []routing.Binding
	DefaultAgentID string
	AccessPolicy   access.Policy
}

// HandleInbound runs the full C10 pipeline for one inbound event. Errors
// are logged and never propagated to the transport (spec §4.10 step 8).
func (o *Orchestrator) HandleInbound(ctx context.Context, ev InboundEvent, pol AccountPolicy) {
	log := o.logger().With("channel", ev.Channel, "account", ev.AccountID)

	if o.Dedup.IsRecentInbound(ev.MessageKey) {
		log.Debug("dropping duplicate inbound message", "messageKey", ev.MessageKey)
		return
	}

	if o.Metrics != nil {
		o.Metrics.InboundTotal.WithLabelValues(ev.Channel).Inc()
	}

	decision := access.CheckInbound(pol.AccessPolicy, access.Inbound{
		Group:            ev.Group,
		IsFromMe:         ev.IsFromMe,
		SenderE164:       ev.SenderE164,
		MessageTimestamp: ev.MessageTimestamp,
	}, func(senderE164 string) (string, bool) {
		if o.Pairing == nil {
			return "", false
		}
		code, _, err := o.Pairing.UpsertRequest(senderE164)
		if err != nil {
			log.Warn("pairing upsert failed", "error", err)
			return "", false
		}
		if o.Sender != nil {
			_ = o.Sender.Send(ctx, ev.Channel, ev.AccountID, ev.From, ev.Group, pairing.BuildPairingReply(code, senderE164))
		}
		return code, true
	})
	if !decision.Allowed {
		log.Info("inbound denied", "reason", decision.DenyReason)
		if o.Metrics != nil {
			o.Metrics.DeniedTotal.WithLabelValues(decision.DenyReason).Inc()
		}
		return
	}

	var peer *routing.Peer
	if !decision.IsSelfChat {
		kind := "direct"
		if ev.Group {
			kind = "group"
		}
		peer = &routing.Peer{Kind: kind, ID: ev.From}
	}
	route := routing.ResolveRoute(pol.Bindings, ev.Channel, ev.AccountID, peer, pol.DefaultAgentID)
	sessionKey := routing.BuildSessionKey(routing.SessionKeyParts{AgentID: route.AgentID, Channel: ev.Channel, AccountID: ev.AccountID, Peer: peer})

	if o.SessionMeta != nil {
		if _, err := o.SessionMeta.UpsertSessionMeta(sessionKey, routing.SessionMeta{
			LastChannel:   ev.Channel,
			LastTo:        ev.From,
			LastAccountID: ev.AccountID,
			LastAgentID:   route.AgentID,
		}); err != nil {
			log.Warn("session meta upsert failed", "error", err)
		}
	}

	// Defense in depth: re-verify a direct-message reply destination
	// against allowFrom even though CheckInbound already decided the
	// inbound sender is allowed. Group destinations are not re-checked.
	if !allowFromPermits(pol.AccessPolicy, ev) {
		log.Warn("outbound destination blocked by allowFrom", "to", ev.From)
		return
	}

	o.runSerializedTurn(ctx, sessionKey, ev, log)
}

func allowFromPermits(pol access.Policy, ev InboundEvent) bool {
	if ev.Group {
		return true // group policy already evaluated in CheckInbound
	}
	for _, v := range pol.AllowFrom {
		if v == "*" || v == ev.SenderE164 {
			return true
		}
	}
	return pol.DMPolicy == access.DMOpen
}

func (o *Orchestrator) sessionLock(sessionKey string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions == nil {
		o.sessions = make(map[string]*sync.Mutex)
	}
	m, ok := o.sessions[sessionKey]
	if !ok {
		m = &sync.Mutex{}
		o.sessions[sessionKey] = m
	}
	return m
}

// runSerializedTurn enforces the per-session FIFO invariant (spec §4.10
// step 5, §5 "at most one agent turn in flight at a time"): it acquires
// the session's own mutex so concurrent inbound events for the same
// session queue up, while different sessions proceed concurrently.
func (o *Orchestrator) runSerializedTurn(ctx context.Context, sessionKey string, ev InboundEvent, log *slog.Logger) {
	lock := o.sessionLock(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	turnID := uuid.NewString()
	log = log.With("turnID", turnID)

	stopTyping := o.startTypingLoop(ctx, ev)
	defer stopTyping()

	ctx, span := traceTurn(ctx, sessionKey, turnID)
	start := time.Now()
	answer, err := o.runTurn(ctx, sessionKey, ev)
	span.End()
	o.Metrics.observeTurn(ev.Channel, start, err)
	if err != nil {
		log.Error("agent turn failed", "error", err)
		return
	}
	if strings.TrimSpace(answer) == "" {
		return
	}

	reply := o.formatReply(answer)
	if o.Sender != nil {
		if err := o.Sender.Send(ctx, ev.Channel, ev.AccountID, ev.From, ev.Group, reply); err != nil {
			log.Error("send reply failed", "error", err)
		}
	}
}

func (o *Orchestrator) startTypingLoop(ctx context.Context, ev InboundEvent) func() {
	if o.Sender == nil {
		return func() {}
	}
	stopCh := make(chan struct{})
	go func() {
		_ = o.Sender.SendComposing(ctx, ev.Channel, ev.AccountID, ev.From, ev.Group)
		ticker := time.NewTicker(TypingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = o.Sender.SendComposing(ctx, ev.Channel, ev.AccountID, ev.From, ev.Group)
			}
		}
	}()
	return func() { close(stopCh) }
}

// runTurn implements spec §4.10 step 6: open the session's history, run
// C5 (which appends the query and answer to that history itself), and
// capture the answer.
func (o *Orchestrator) runTurn(ctx context.Context, sessionKey string, ev InboundEvent) (string, error) {
	var hist *history.History
	if o.OpenHistory != nil {
		h, err := o.OpenHistory(sessionKey)
		if err != nil {
			return "", fmt.Errorf("gateway: open history for %s: %w", sessionKey, err)
		}
		hist = h
	}

	loop := agent.New(o.LLM, o.Tools, o.ToolStore, hist, agent.Config{Model: o.DefaultModel})
	events := loop.Run(ctx, ev.Body, ev.MessageKey)

	var answer string
	var turnErr error
	for e := range events {
		if e.Type == agent.EventDone {
			answer = e.Answer
			if e.Status == agent.StatusError {
				turnErr = e.Err
			}
		}
	}
	if turnErr != nil {
		return "", turnErr
	}
	return answer, nil
}

// formatReply does the minimal markdown re-write and brand-tag prefix
// from spec §4.10 step 7.
func (o *Orchestrator) formatReply(answer string) string {
	body := strings.ReplaceAll(answer, "**", "*")
	if o.BrandTag == "" {
		return body
	}
	return fmt.Sprintf("[%s] %s", o.BrandTag, body)
}

// ChannelBridge wires a channels.Manager's InboundHandler to an
// Orchestrator, translating channels.Inbound into HandleInbound's
// InboundEvent and AccountPolicy using per-account config.
func ChannelBridge(o *Orchestrator, resolvePolicy func(channel, accountID string) AccountPolicy) channels.InboundHandler {
	return func(in channels.Inbound) {
		pol := resolvePolicy(in.Channel, in.AccountID)
		ev := InboundEvent{
			AccountID:        in.AccountID,
			Channel:          in.Channel,
			From:             in.GroupID,
			SenderE164:       in.SenderID,
			Group:            in.IsGroup,
			IsFromMe:         in.FromSelf,
			Body:             in.Text,
			MessageKey:       in.MessageID,
			MessageTimestamp: in.Timestamp,
		}
		if !in.IsGroup {
			ev.From = in.SenderID
		}
		o.HandleInbound(context.Background(), ev, pol)
	}
}
