package channels

import (
	"context"
	"fmt"
	"time"
)

// Inbound is a channel-agnostic view of one received message, the shape
// every concrete adapter (discord, telegram, slack, whatsapp) normalizes
// its SDK's event into before handing it to the gateway orchestrator (C10).
type Inbound struct {
	Channel       string
	AccountID     string
	MessageID     string
	SenderID      string
	IsGroup       bool
	GroupID       string
	Text          string
	Timestamp     time.Time
	FromSelf      bool
}

// InboundHandler is called by an adapter for every normalized inbound
// message. It is supplied by the gateway orchestrator so adapters never
// import it directly (avoiding an import cycle: gateway depends on
// channels, not the reverse).
type InboundHandler func(Inbound)

// Outbound is a reply an adapter must deliver back to the originating
// peer.
type Outbound struct {
	AccountID string
	PeerID    string
	IsGroup   bool
	Text      string
}

// ChannelSender is the outbound half of a single channel adapter (spec §6
// Outbound operations), scoped to one already-running account.
type ChannelSender interface {
	Send(ctx context.Context, accountID, peerID string, isGroup bool, body string) error
	SendComposing(ctx context.Context, accountID, peerID string, isGroup bool) error
}

// MultiSender dispatches by channel name to the ChannelSender registered
// for it, satisfying the gateway orchestrator's Sender interface without
// channels importing the gateway package (avoiding an import cycle).
type MultiSender struct {
	senders map[string]ChannelSender
}

// NewMultiSender builds a MultiSender over a channel-name -> ChannelSender
// map, e.g. {"discord": discordPlugin, "telegram": telegramPlugin}.
func NewMultiSender(senders map[string]ChannelSender) *MultiSender {
	return &MultiSender{senders: senders}
}

func (m *MultiSender) Send(ctx context.Context, channel, accountID, peerID string, isGroup bool, body string) error {
	s, ok := m.senders[channel]
	if !ok {
		return fmt.Errorf("channels: no sender registered for channel %q", channel)
	}
	return s.Send(ctx, accountID, peerID, isGroup, body)
}

func (m *MultiSender) SendComposing(ctx context.Context, channel, accountID, peerID string, isGroup bool) error {
	s, ok := m.senders[channel]
	if !ok {
		return fmt.Errorf("channels: no sender registered for channel %q", channel)
	}
	return s.SendComposing(ctx, accountID, peerID, isGroup)
}
