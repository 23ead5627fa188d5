// Package discord adapts github.com/bwmarrin/discordgo to the C7 channel
// plugin contract, grounded on nexus's internal/channels/discord adapter.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/virattt/dexter-sub002/internal/channels"
)

// AccountConfig is one Discord bot account's settings (spec §4.7 Account).
type AccountConfig struct {
	Token   string
	Enabled bool
}

// Config is the Discord slice of gateway.json: one AccountConfig per
// configured bot account id.
type Config map[string]AccountConfig

// Plugin implements channels.Plugin[Config, AccountConfig] and
// channels.ChannelSender for Discord. Sessions are tracked by account id
// so outbound Send/SendComposing can reach the live gateway connection
// StartAccount opened.
type Plugin struct {
	OnInbound channels.InboundHandler
	Logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*discordgo.Session
}

func (p *Plugin) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (*Plugin) ListAccountIDs(cfg Config) []string {
	ids := make([]string, 0, len(cfg))
	for id := range cfg {
		ids = append(ids, id)
	}
	return ids
}

func (*Plugin) ResolveAccount(cfg Config, id string) (AccountConfig, bool) {
	acct, ok := cfg[id]
	return acct, ok
}

func (*Plugin) IsEnabled(acct AccountConfig, _ Config) bool { return acct.Enabled }

func (*Plugin) IsConfigured(acct AccountConfig, _ Config) bool { return acct.Token != "" }

func (p *Plugin) setSession(accountID string, s *discordgo.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		p.sessions = make(map[string]*discordgo.Session)
	}
	if s == nil {
		delete(p.sessions, accountID)
		return
	}
	p.sessions[accountID] = s
}

func (p *Plugin) session(accountID string) (*discordgo.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[accountID]
	return s, ok
}

// StartAccount opens a Discord gateway session and registers a message
// handler that normalizes incoming events into channels.Inbound, blocking
// until ctx is cancelled.
func (p *Plugin) StartAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	session, err := discordgo.New("Bot " + acctCtx.Account.Token)
	if err != nil {
		return fmt.Errorf("discord: new session for account %s: %w", acctCtx.AccountID, err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	remove := session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		if p.OnInbound == nil {
			return
		}
		p.OnInbound(channels.Inbound{
			Channel:   "discord",
			AccountID: acctCtx.AccountID,
			MessageID: m.ID,
			SenderID:  m.Author.ID,
			IsGroup:   m.GuildID != "",
			GroupID:   m.ChannelID,
			Text:      m.Content,
			Timestamp: messageTimestamp(m),
			FromSelf:  s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID,
		})
	})
	defer remove()

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: open session for account %s: %w", acctCtx.AccountID, err)
	}
	defer session.Close()

	p.setSession(acctCtx.AccountID, session)
	defer p.setSession(acctCtx.AccountID, nil)

	<-ctx.Done()
	return nil
}

// StopAccount has no adapter-specific teardown beyond ctx cancellation in
// StartAccount; context cancellation closes the session via the deferred
// session.Close() above.
func (*Plugin) StopAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	return nil
}

// Send implements channels.ChannelSender: peerID is a Discord channel id
// for both direct messages and guild channels.
func (p *Plugin) Send(ctx context.Context, accountID, peerID string, isGroup bool, body string) error {
	session, ok := p.session(accountID)
	if !ok {
		return fmt.Errorf("discord: account %s is not running", accountID)
	}
	_, err := session.ChannelMessageSend(peerID, body)
	return err
}

// SendComposing implements channels.ChannelSender's typing indicator.
func (p *Plugin) SendComposing(ctx context.Context, accountID, peerID string, isGroup bool) error {
	session, ok := p.session(accountID)
	if !ok {
		return fmt.Errorf("discord: account %s is not running", accountID)
	}
	return session.ChannelTyping(peerID)
}

func messageTimestamp(m *discordgo.MessageCreate) time.Time {
	if !m.Timestamp.IsZero() {
		return m.Timestamp
	}
	return time.Now()
}
