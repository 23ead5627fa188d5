package channels

import (
	"context"
	"testing"
	"time"
)

type fakeAccount struct {
	Enabled   bool
	Configured bool
}

type fakeConfig map[string]fakeAccount

type fakePlugin struct {
	startCalls int
	stopCalls  int
	block      chan struct{}
}

func (p *fakePlugin) ListAccountIDs(cfg fakeConfig) []string {
	ids := make([]string, 0, len(cfg))
	for id := range cfg {
		ids = append(ids, id)
	}
	return ids
}

func (p *fakePlugin) ResolveAccount(cfg fakeConfig, id string) (fakeAccount, bool) {
	a, ok := cfg[id]
	return a, ok
}

func (p *fakePlugin) IsEnabled(a fakeAccount, _ fakeConfig) bool    { return a.Enabled }
func (p *fakePlugin) IsConfigured(a fakeAccount, _ fakeConfig) bool { return a.Configured }

func (p *fakePlugin) StartAccount(ctx context.Context, acctCtx *AccountContext[fakeAccount]) error {
	p.startCalls++
	<-ctx.Done()
	return nil
}

func (p *fakePlugin) StopAccount(ctx context.Context, acctCtx *AccountContext[fakeAccount]) error {
	p.stopCalls++
	return nil
}

func TestManagerStartAllSkipsDisabledAndUnconfigured(t *testing.T) {
	cfg := fakeConfig{
		"good":       {Enabled: true, Configured: true},
		"disabled":   {Enabled: false, Configured: true},
		"unconfigured": {Enabled: true, Configured: false},
	}
	plugin := &fakePlugin{}
	mgr := NewManager[fakeConfig, fakeAccount](plugin, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.StartAll(ctx)

	// give the goroutine a moment to enter StartAccount
	time.Sleep(10 * time.Millisecond)

	snap := mgr.GetSnapshot()
	if !snap["good"].Status.Running {
		t.Fatalf("expected account 'good' to be running, got %+v", snap["good"])
	}
	if snap["disabled"].Status.Running {
		t.Fatal("expected disabled account to not be running")
	}
	if snap["unconfigured"].Status.Running {
		t.Fatal("expected unconfigured account to not be running")
	}
	if plugin.startCalls != 1 {
		t.Fatalf("expected exactly 1 StartAccount call, got %d", plugin.startCalls)
	}
}

func TestManagerStopAccountWaitsForGoroutineExit(t *testing.T) {
	cfg := fakeConfig{"acct": {Enabled: true, Configured: true}}
	plugin := &fakePlugin{}
	mgr := NewManager[fakeConfig, fakeAccount](plugin, cfg, nil)

	ctx := context.Background()
	mgr.StartAccount(ctx, "acct")
	time.Sleep(10 * time.Millisecond)

	if err := mgr.StopAccount(context.Background(), "acct"); err != nil {
		t.Fatalf("StopAccount: %v", err)
	}
	if plugin.stopCalls != 1 {
		t.Fatalf("expected StopAccount to be called once, got %d", plugin.stopCalls)
	}

	snap := mgr.GetSnapshot()
	if snap["acct"].Status.Running {
		t.Fatal("expected account to no longer be running after StopAccount")
	}
}

func TestManagerStartAccountIsIdempotent(t *testing.T) {
	cfg := fakeConfig{"acct": {Enabled: true, Configured: true}}
	plugin := &fakePlugin{}
	mgr := NewManager[fakeConfig, fakeAccount](plugin, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.StartAccount(ctx, "acct")
	mgr.StartAccount(ctx, "acct")
	time.Sleep(10 * time.Millisecond)

	if plugin.startCalls != 1 {
		t.Fatalf("expected a second StartAccount call for the same id to be a no-op, got %d calls", plugin.startCalls)
	}
}
