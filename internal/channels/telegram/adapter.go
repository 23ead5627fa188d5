// Package telegram adapts github.com/go-telegram/bot to the C7 channel
// plugin contract, grounded on nexus's internal/channels/telegram adapter.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/virattt/dexter-sub002/internal/channels"
)

// AccountConfig is one Telegram bot account's settings.
type AccountConfig struct {
	Token   string
	Enabled bool
}

// Config is the Telegram slice of gateway.json.
type Config map[string]AccountConfig

// Plugin implements channels.Plugin[Config, AccountConfig] and
// channels.ChannelSender for Telegram, tracking the live *bot.Bot per
// account so outbound calls can reach it.
type Plugin struct {
	OnInbound channels.InboundHandler
	Logger    *slog.Logger

	mu   sync.Mutex
	bots map[string]*bot.Bot
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

func (*Plugin) IsEnabled(acct AccountConfig, _ Config) bool    { return acct.Enabled }
func (*Plugin) IsConfigured(acct AccountConfig, _ Config) bool { return acct.Token != "" }

func (p *Plugin) setBot(accountID string, b *bot.Bot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bots == nil {
		p.bots = make(map[string]*bot.Bot)
	}
	if b == nil {
		delete(p.bots, accountID)
		return
	}
	p.bots[accountID] = b
}

func (p *Plugin) bot(accountID string) (*bot.Bot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bots[accountID]
	return b, ok
}

// StartAccount runs a long-polling Telegram bot for the account, blocking
// until ctx is cancelled (bot.Bot.Start is itself blocking, matching the
// teacher's runLongPolling shape).
func (p *Plugin) StartAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	handler := func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
		if update.Message == nil {
			return
		}
		if p.OnInbound == nil {
			return
		}
		m := update.Message
		p.OnInbound(channels.Inbound{
			Channel:   "telegram",
			AccountID: acctCtx.AccountID,
			MessageID: strconv.Itoa(m.ID),
			SenderID:  senderID(m),
			IsGroup:   m.Chat.Type != "private",
			GroupID:   strconv.FormatInt(m.Chat.ID, 10),
			Text:      m.Text,
			Timestamp: time.Unix(int64(m.Date), 0),
		})
	}

	b, err := bot.New(acctCtx.Account.Token, bot.WithDefaultHandler(handler))
	if err != nil {
		return fmt.Errorf("telegram: new bot for account %s: %w", acctCtx.AccountID, err)
	}

	p.setBot(acctCtx.AccountID, b)
	defer p.setBot(acctCtx.AccountID, nil)

	b.Start(ctx)
	return nil
}

// StopAccount has no adapter-specific teardown; bot.Bot.Start returns when
// ctx is cancelled.
func (*Plugin) StopAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	return nil
}

// Send implements channels.ChannelSender: peerID is the Telegram chat id.
func (p *Plugin) Send(ctx context.Context, accountID, peerID string, isGroup bool, body string) error {
	b, ok := p.bot(accountID)
	if !ok {
		return fmt.Errorf("telegram: account %s is not running", accountID)
	}
	chatID, err := strconv.ParseInt(peerID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", peerID, err)
	}
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: body})
	return err
}

// SendComposing implements channels.ChannelSender's typing indicator.
func (p *Plugin) SendComposing(ctx context.Context, accountID, peerID string, isGroup bool) error {
	b, ok := p.bot(accountID)
	if !ok {
		return fmt.Errorf("telegram: account %s is not running", accountID)
	}
	chatID, err := strconv.ParseInt(peerID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", peerID, err)
	}
	_, err = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: tgmodels.ChatActionTyping})
	return err
}

func senderID(m *tgmodels.Message) string {
	if m.From == nil {
		return ""
	}
	return strconv.FormatInt(m.From.ID, 10)
}
