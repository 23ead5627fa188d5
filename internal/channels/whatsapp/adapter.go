// Package whatsapp is a boundary-only C7 channel plugin. WhatsApp
// transport (device pairing, the Noise protocol handshake, multi-device
// session state) is treated as an external collaborator per spec §1 and
// is never wired to a concrete library (see DESIGN.md); this package
// exists so gateway.json can name a "whatsapp" channel and have it
// resolve to a real Plugin value that simply never reports itself
// configured.
package whatsapp

import (
	"context"
	"log/slog"

	"github.com/virattt/dexter-sub002/internal/channels"
)

// AccountConfig is one WhatsApp-linked-device account's settings. In this
// boundary-only implementation, LinkedDeviceJID is always empty, which
// IsConfigured treats as "not ready to start".
type AccountConfig struct {
	LinkedDeviceJID string
	Enabled         bool
}

// Config is the WhatsApp slice of gateway.json.
type Config map[string]AccountConfig

// Plugin implements channels.Plugin[Config, AccountConfig] for WhatsApp.
// StartAccount is never reached in practice because IsConfigured is
// always false without a real transport wired in; it is implemented so
// the type satisfies channels.Plugin end to end.
type Plugin struct {
	OnInbound channels.InboundHandler
	Logger    *slog.Logger
}

func (Plugin) ListAccountIDs(cfg Config) []string {
	ids := make([]string, 0, len(cfg))
	for id := range cfg {
		ids = append(ids, id)
	}
	return ids
}

func (Plugin) ResolveAccount(cfg Config, id string) (AccountConfig, bool) {
	acct, ok := cfg[id]
	return acct, ok
}

func (Plugin) IsEnabled(acct AccountConfig, _ Config) bool { return acct.Enabled }

// IsConfigured reports whether the account has a linked-device JID. This
// repo does not implement the WhatsApp transport that links a device, so
// the JID has to come from an external collaborator.
func (Plugin) IsConfigured(acct AccountConfig, _ Config) bool {
	return acct.LinkedDeviceJID != ""
}

func (Plugin) StartAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	<-ctx.Done()
	return nil
}

func (Plugin) StopAccount(ctx context.Context, acctCtx *channels.AccountContext[AccountConfig]) error {
	return nil
}
