// Package slack adapts github.com/slack-go/slack (Socket Mode) to the C7
// channel plugin contract, grounded on nexus's internal/channels/slack
// adapter.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/virattt/dexter-sub002/internal/channels"
)

// AccountConfig is one Slack workspace app's settings.
type AccountConfig struct {
	BotToken string // xoxb- token for API calls
	AppToken string // xapp- token for Socket Mode
	Enabled  bool
}

// Config is the Slack slice of gateway.json.
type Config map[string]AccountConfig

// Plugin implements channels.Plugin[Config, AccountConfig] and
// channels.ChannelSender for Slack, tracking the live *slack.Client per
// account so outbound calls can reach it.
type Plugin struct {
	OnInbound channels.InboundHandler
	Logger    *slog.Logger

	mu      sync.Mutex
	clients map[string]*slack.Client
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
func (*Plugin) IsConfigured(acct AccountConfig, _ Config) bool {
	return acct.BotToken != "" && acct.AppToken != ""
}

func (p *Plugin) setClient(accountID string, c *slack.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients == nil {
		p.clients = make(map[string]*slack.Client)
	}
	if c == nil {
		delete(p.clients, accountID)
		return
	}
	p.clients[accountID] = c
}

func (p *Plugin) client(accountID string) (*slack.Client, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.clients[accountID]
	return c, ok
}

// StartAccount opens a Socket Mode connection and dispatches normalized
// inbound messages, blocking until ctx is cancelled.
func (p *Plugin) StartAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	client := slack.New(acctCtx.Account.BotToken, slack.OptionAppLevelToken(acctCtx.Account.AppToken))
	socketClient := socketmode.New(client)
	p.setClient(acctCtx.AccountID, client)
	defer p.setClient(acctCtx.AccountID, nil)

	botID := ""
	if auth, err := client.AuthTestContext(ctx); err == nil {
		botID = auth.UserID
	}

	runErr := make(chan error, 1)
	go func() { runErr <- socketClient.Run() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			return err
		case event, ok := <-socketClient.Events:
			if !ok {
				return nil
			}
			if event.Type != socketmode.EventTypeEventsAPI {
				if event.Request != nil {
					socketClient.Ack(*event.Request)
				}
				continue
			}
			apiEvent, ok := event.Data.(slackevents.EventsAPIEvent)
			socketClient.Ack(*event.Request)
			if !ok || apiEvent.Type != slackevents.CallbackEvent {
				continue
			}
			p.handleInner(acctCtx.AccountID, botID, apiEvent.InnerEvent.Data)
		}
	}
}

func (p *Plugin) handleInner(accountID, botID string, data any) {
	ev, ok := data.(*slackevents.MessageEvent)
	if !ok || p.OnInbound == nil {
		return
	}
	if ev.BotID != "" || ev.User == botID {
		return
	}
	if ev.SubType != "" && ev.SubType != "file_share" {
		return
	}

	p.OnInbound(channels.Inbound{
		Channel:   "slack",
		AccountID: accountID,
		MessageID: fmt.Sprintf("%s:%s", ev.Channel, ev.TimeStamp),
		SenderID:  ev.User,
		IsGroup:   !strings.HasPrefix(ev.Channel, "D"),
		GroupID:   ev.Channel,
		Text:      ev.Text,
		Timestamp: parseSlackTimestamp(ev.TimeStamp),
	})
}

// StopAccount has no adapter-specific teardown beyond ctx cancellation;
// StartAccount's select loop returns as soon as ctx is Done.
func (*Plugin) StopAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	return nil
}

// Send implements channels.ChannelSender: peerID is a Slack channel id
// (public/private channel or "D..." DM channel).
func (p *Plugin) Send(ctx context.Context, accountID, peerID string, isGroup bool, body string) error {
	client, ok := p.client(accountID)
	if !ok {
		return fmt.Errorf("slack: account %s is not running", accountID)
	}
	_, _, err := client.PostMessageContext(ctx, peerID, slack.MsgOptionText(body, false))
	return err
}

// SendComposing is a no-op: Slack's Web API has no typing indicator for
// Socket Mode bot messages.
func (p *Plugin) SendComposing(ctx context.Context, accountID, peerID string, isGroup bool) error {
	return nil
}

func parseSlackTimestamp(ts string) time.Time {
	parts := strings.SplitN(ts, ".", 2)
	if len(parts) == 0 {
		return time.Now()
	}
	var sec int64
	if _, err := fmt.Sscanf(parts[0], "%d", &sec); err != nil {
		return time.Now()
	}
	return time.Unix(sec, 0)
}
