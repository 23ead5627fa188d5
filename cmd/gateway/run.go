package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/virattt/dexter-sub002/internal/access"
	"github.com/virattt/dexter-sub002/internal/channels"
	"github.com/virattt/dexter-sub002/internal/channels/discord"
	"github.com/virattt/dexter-sub002/internal/channels/slack"
	"github.com/virattt/dexter-sub002/internal/channels/telegram"
	"github.com/virattt/dexter-sub002/internal/channels/whatsapp"
	"github.com/virattt/dexter-sub002/internal/config"
	"github.com/virattt/dexter-sub002/internal/dedupe"
	"github.com/virattt/dexter-sub002/internal/gateway"
	"github.com/virattt/dexter-sub002/internal/history"
	"github.com/virattt/dexter-sub002/internal/llm"
	"github.com/virattt/dexter-sub002/internal/pairing"
	"github.com/virattt/dexter-sub002/internal/routing"
	"github.com/virattt/dexter-sub002/internal/toolcontext"
	"github.com/virattt/dexter-sub002/internal/tools"
	"github.com/virattt/dexter-sub002/internal/tools/builtin"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway: all configured channel plugins, serving inbound traffic through the agent loop",
		Long: `Start the Dexter gateway. Loads gateway.json (hot-reloaded on change),
starts every enabled+configured channel account's plugin goroutine, and
routes every inbound message through access control, routing, and the
agent loop to an outbound reply.

Graceful shutdown is handled on SIGINT/SIGTERM: every running channel
account is stopped before the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(configPath, debug, metricsAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", resolveGatewayConfigPath(), "Path to gateway.json")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address to serve /metrics on")

	return cmd
}

func resolveGatewayConfigPath() string {
	if p := os.Getenv("DEXTER_GATEWAY_CONFIG"); p != "" {
		return p
	}
	return "gateway.json"
}

func resolvePairingPath() string {
	if p := os.Getenv("DEXTER_PAIRING_PATH"); p != "" {
		return p
	}
	return "pairing.json"
}

func resolveSessionsDir() string {
	if p := os.Getenv("DEXTER_SESSIONS_DIR"); p != "" {
		return p
	}
	return "sessions"
}

func runGateway(configPath string, debug bool, metricsAddr string) error {
	ctx, cancel := signalContext()
	defer cancel()

	log := newLogger(debug)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("gateway: load config: %w", err)
	}
	profile, err := config.LoadProfile("dexter.yaml")
	if err != nil {
		return fmt.Errorf("gateway: load profile: %w", err)
	}

	llmRegistry := llm.NewDefaultRegistry(log, llm.ProviderConfig{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		BedrockRegion:   os.Getenv("AWS_REGION"),
	})

	toolRegistry := tools.NewRegistry()
	toolRegistry.Register(builtin.NewQuoteTool())
	toolRegistry.Register(builtin.NewFilingTool())
	toolRegistry.Register(builtin.NewWebSearchTool())
	toolRegistry.Register(builtin.NewFetchTool())

	model := profile.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-5-20260101"
	}

	toolStore := toolcontext.New("tool_contexts", llmRegistry, model)
	dedupCache := dedupe.New(dedupe.Options{})
	pairingStore := pairing.NewStore(resolvePairingPath())
	sessionsDir := resolveSessionsDir()

	registry := prometheus.NewRegistry()
	metrics := gateway.NewMetrics(registry)
	go serveMetrics(metricsAddr, registry, log)

	discordPlugin := &discord.Plugin{Logger: log}
	telegramPlugin := &telegram.Plugin{Logger: log}
	slackPlugin := &slack.Plugin{Logger: log}
	whatsappPlugin := &whatsapp.Plugin{Logger: log}

	sender := channels.NewMultiSender(map[string]channels.ChannelSender{
		"discord":  discordPlugin,
		"telegram": telegramPlugin,
		"slack":    slackPlugin,
	})

	orch := &gateway.Orchestrator{
		Dedup:       dedupCache,
		SessionMeta: routing.NewSessionMetaStore(sessionsDir + "/session_meta.json"),
		Pairing:     pairingStore,
		Sender:      sender,
		LLM:         llmRegistry,
		Tools:       toolRegistry,
		ToolStore:   toolStore,
		OpenHistory: func(sessionKey string) (*history.History, error) {
			return history.Load(sessionsDir+"/"+sessionKey+".json", llmRegistry, model)
		},
		Logger:       log,
		BrandTag:     profile.BrandTag,
		DefaultModel: model,
		Metrics:      metrics,
	}

	resolvePolicy := func(channel, accountID string) gateway.AccountPolicy {
		return buildAccountPolicy(cfg, channel, accountID)
	}

	discordPlugin.OnInbound = gateway.ChannelBridge(orch, resolvePolicy)
	telegramPlugin.OnInbound = gateway.ChannelBridge(orch, resolvePolicy)
	slackPlugin.OnInbound = gateway.ChannelBridge(orch, resolvePolicy)
	whatsappPlugin.OnInbound = gateway.ChannelBridge(orch, resolvePolicy)

	discordMgr := channels.NewManager[discord.Config, discord.AccountConfig](discordPlugin, channelAccounts[discord.AccountConfig](cfg, "discord", toDiscordAccount), log)
	telegramMgr := channels.NewManager[telegram.Config, telegram.AccountConfig](telegramPlugin, channelAccounts[telegram.AccountConfig](cfg, "telegram", toTelegramAccount), log)
	slackMgr := channels.NewManager[slack.Config, slack.AccountConfig](slackPlugin, channelAccounts[slack.AccountConfig](cfg, "slack", toSlackAccount), log)
	whatsappMgr := channels.NewManager[whatsapp.Config, whatsapp.AccountConfig](whatsappPlugin, channelAccounts[whatsapp.AccountConfig](cfg, "whatsapp", toWhatsAppAccount), log)

	discordMgr.StartAll(ctx)
	telegramMgr.StartAll(ctx)
	slackMgr.StartAll(ctx)
	whatsappMgr.StartAll(ctx)

	watcher := config.NewWatcher(configPath, func(reloaded *config.Gateway) {
		log.Info("gateway config reloaded")
		cfg = reloaded
	}, log)
	if err := watcher.Start(ctx); err != nil {
		log.Warn("config watcher failed to start", "error", err)
	}

	log.Info("gateway started")
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx := context.Background()
	_ = discordMgr.StopAll(shutdownCtx)
	_ = telegramMgr.StopAll(shutdownCtx)
	_ = slackMgr.StopAll(shutdownCtx)
	_ = whatsappMgr.StopAll(shutdownCtx)
	watcher.Stop()
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", "error", err)
	}
}

// channelAccounts filters gateway.json's channels.<name>.accounts down to
// a concrete per-plugin Config map via convert.
func channelAccounts[Account any](cfg *config.Gateway, name string, convert func(config.AccountConfig) Account) map[string]Account {
	out := make(map[string]Account)
	ch, ok := cfg.Channels[name]
	if !ok || !ch.Enabled {
		return out
	}
	for id, acct := range ch.Accounts {
		out[id] = convert(acct)
	}
	return out
}

func toDiscordAccount(a config.AccountConfig) discord.AccountConfig {
	return discord.AccountConfig{Token: a.Token, Enabled: a.Enabled}
}

func toTelegramAccount(a config.AccountConfig) telegram.AccountConfig {
	return telegram.AccountConfig{Token: a.Token, Enabled: a.Enabled}
}

func toSlackAccount(a config.AccountConfig) slack.AccountConfig {
	return slack.AccountConfig{BotToken: a.Token, AppToken: a.AppToken, Enabled: a.Enabled}
}

func toWhatsAppAccount(a config.AccountConfig) whatsapp.AccountConfig {
	return whatsapp.AccountConfig{Enabled: a.Enabled}
}

// buildAccountPolicy resolves one account's routing/access configuration
// from gateway.json into the shapes C8/C9 operate over.
func buildAccountPolicy(cfg *config.Gateway, channel, accountID string) gateway.AccountPolicy {
	var bindings []routing.Binding
	for _, b := range cfg.Bindings {
		bindings = append(bindings, routing.Binding{
			AgentID: b.AgentID,
			Match: routing.Match{
				Channel:   b.Match.Channel,
				AccountID: b.Match.AccountID,
				PeerKind:  b.Match.PeerKind,
				PeerID:    b.Match.PeerID,
			},
		})
	}

	pol := access.Policy{DMPolicy: access.DMDisabled, GroupPolicy: access.GroupDisabled}
	if ch, ok := cfg.Channels[channel]; ok {
		if acct, ok := ch.Accounts[accountID]; ok {
			pol = access.Policy{
				AllowFrom:      acct.AllowFrom,
				GroupAllowFrom: acct.GroupAllowFrom,
				DMPolicy:       access.DMPolicy(acct.DMPolicy),
				GroupPolicy:    access.GroupPolicy(acct.GroupPolicy),
			}
		}
	}

	return gateway.AccountPolicy{
		Bindings:       bindings,
		DefaultAgentID: cfg.Gateway.AccountID,
		AccessPolicy:   pol,
	}
}
