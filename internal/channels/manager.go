// Package channels implements the channel plugin manager (C7): a
// generic <Config, Account> lifecycle manager over per-account
// goroutines, mirroring nexus's managers package's start/stop/snapshot
// shape but generalized to any channel plugin rather than one concrete
// provider.
package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Plugin is implemented by a concrete channel adapter (Discord, Telegram,
// Slack, ...). Config is the channel's slice of gateway.json; Account is
// the resolved per-account settings type.
type Plugin[Config, Account any] interface {
	// ListAccountIDs returns every account id configured for this channel.
	ListAccountIDs(cfg Config) []string
	// ResolveAccount looks up a single account's settings.
	ResolveAccount(cfg Config, id string) (Account, bool)
	// IsEnabled reports whether the account is administratively enabled.
	IsEnabled(acct Account, cfg Config) bool
	// IsConfigured reports whether the account has the credentials/settings
	// it needs to start (e.g. a bot token is present).
	IsConfigured(acct Account, cfg Config) bool
	// StartAccount runs until ctx is cancelled or a terminal error occurs.
	StartAccount(ctx context.Context, acctCtx *AccountContext[Account]) error
	// StopAccount performs adapter-specific teardown. Optional: adapters
	// that need no extra teardown beyond context cancellation may leave
	// this a no-op.
	StopAccount(ctx context.Context, acctCtx *AccountContext[Account]) error
}

// AccountContext is the view a plugin's StartAccount/StopAccount gets of
// its own running account (spec §4.7's "accountId, account, abortSignal,
// getStatus, setStatus").
type AccountContext[Account any] struct {
	AccountID string
	Account   Account

	mu     sync.Mutex
	status AccountStatus
}

// GetStatus returns a snapshot of the account's current status.
func (a *AccountContext[Account]) GetStatus() AccountStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// SetStatus replaces the account's status.
func (a *AccountContext[Account]) SetStatus(s AccountStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s
}

// AccountStatus is the runtime status of one channel account.
type AccountStatus struct {
	Running     bool
	LastError   string
	LastStartAt time.Time
	LastStopAt  time.Time
}

// accountRuntime tracks one running (or stopped) account's goroutine and
// cancellation.
type accountRuntime[Account any] struct {
	cancel context.CancelFunc
	done   chan struct{}
	ctx    *AccountContext[Account]
}

// Manager runs the lifecycle described in spec §4.7 for a single channel
// plugin across all of its configured accounts.
type Manager[Config, Account any] struct {
	mu      sync.Mutex
	plugin  Plugin[Config, Account]
	cfg     Config
	log     *slog.Logger
	running map[string]*accountRuntime[Account]
}

// NewManager creates a Manager bound to plugin and the channel's current
// config slice.
func NewManager[Config, Account any](plugin Plugin[Config, Account], cfg Config, logger *slog.Logger) *Manager[Config, Account] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager[Config, Account]{
		plugin:  plugin,
		cfg:     cfg,
		log:     logger.With("component", "channel-manager"),
		running: make(map[string]*accountRuntime[Account]),
	}
}

// StartAccount implements spec §4.7's startAccount(id) lifecycle.
func (m *Manager[Config, Account]) StartAccount(ctx context.Context, id string) {
	m.mu.Lock()
	if _, ok := m.running[id]; ok {
		m.mu.Unlock()
		return
	}

	acct, ok := m.plugin.ResolveAccount(m.cfg, id)
	if !ok || !m.plugin.IsEnabled(acct, m.cfg) || !m.plugin.IsConfigured(acct, m.cfg) {
		m.mu.Unlock()
		return
	}

	acctCtx := &AccountContext[Account]{AccountID: id, Account: acct}
	runCtx, cancel := context.WithCancel(ctx)
	rt := &accountRuntime[Account]{cancel: cancel, done: make(chan struct{}), ctx: acctCtx}
	acctCtx.SetStatus(AccountStatus{Running: true, LastStartAt: time.Now()})
	m.running[id] = rt
	m.mu.Unlock()

	go func() {
		defer close(rt.done)
		err := m.plugin.StartAccount(runCtx, acctCtx)
		if err != nil {
			acctCtx.SetStatus(AccountStatus{Running: false, LastError: err.Error()})
			m.log.Error("channel account stopped with error", "account", id, "error", err)
			return
		}
		acctCtx.SetStatus(AccountStatus{Running: false, LastStopAt: time.Now()})
	}()
}

// StopAccount implements spec §4.7's stopAccount(id): cancel the signal,
// call the plugin's teardown if any, then wait for the goroutine to exit.
func (m *Manager[Config, Account]) StopAccount(ctx context.Context, id string) error {
	m.mu.Lock()
	rt, ok := m.running[id]
	if ok {
		delete(m.running, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	rt.cancel()
	if err := m.plugin.StopAccount(ctx, rt.ctx); err != nil {
		m.log.Warn("channel account teardown failed", "account", id, "error", err)
	}
	<-rt.done
	return nil
}

// StartAll starts every configured account.
func (m *Manager[Config, Account]) StartAll(ctx context.Context) {
	for _, id := range m.plugin.ListAccountIDs(m.cfg) {
		m.StartAccount(ctx, id)
	}
}

// StopAll stops every currently running account.
func (m *Manager[Config, Account]) StopAll(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.StopAccount(ctx, id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop account %s: %w", id, err)
		}
	}
	return firstErr
}

// Snapshot is one account's merged config/runtime view, per spec §4.7's
// getSnapshot() "merged map over configured and known-runtime ids".
type Snapshot struct {
	AccountID string
	Status    AccountStatus
	Known     bool // true if currently configured in cfg
}

// GetSnapshot returns the merged view over every account id that is
// either currently configured or has runtime state (e.g. a just-removed
// account that is still winding down).
func (m *Manager[Config, Account]) GetSnapshot() map[string]Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Snapshot)
	for _, id := range m.plugin.ListAccountIDs(m.cfg) {
		out[id] = Snapshot{AccountID: id, Known: true}
	}
	for id, rt := range m.running {
		s := out[id]
		s.AccountID = id
		s.Status = rt.ctx.GetStatus()
		out[id] = s
	}
	return out
}
