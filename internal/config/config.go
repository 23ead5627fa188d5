// Package config implements gateway.json loading/saving (spec §6) plus
// the optional dexter.yaml operator profile and fsnotify-based hot
// reload, grounded on nexus's internal/config loader and
// internal/skills.Manager's watcher pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/virattt/dexter-sub002/internal/persistence"
)

// AccountConfig is one channel account entry under gateway.json's
// channels.<id>.accounts.<acctId>.
type AccountConfig struct {
	AuthDir          string   `json:"authDir,omitempty"`
	AllowFrom        []string `json:"allowFrom,omitempty"`
	DMPolicy         string   `json:"dmPolicy,omitempty"`
	GroupPolicy      string   `json:"groupPolicy,omitempty"`
	GroupAllowFrom   []string `json:"groupAllowFrom,omitempty"`
	SendReadReceipts bool     `json:"sendReadReceipts,omitempty"`
	Enabled          bool     `json:"enabled,omitempty"`
	Token            string   `json:"token,omitempty"`
	// AppToken is Slack's Socket Mode app-level token (xapp-...); unused
	// by channels whose plugin needs only a single bot token.
	AppToken string `json:"appToken,omitempty"`
}

// ChannelConfig is one channel's entry under gateway.json's channels.<id>.
type ChannelConfig struct {
	Enabled  bool                     `json:"enabled"`
	Accounts map[string]AccountConfig `json:"accounts"`
}

// ReconnectConfig configures C11's bounded exponential backoff.
type ReconnectConfig struct {
	MinDelayMs  int     `json:"minDelayMs,omitempty"`
	MaxDelayMs  int     `json:"maxDelayMs,omitempty"`
	MaxAttempts int     `json:"maxAttempts,omitempty"`
	Jitter      float64 `json:"jitter,omitempty"`
}

// GatewaySettings is gateway.json's top-level "gateway" object.
type GatewaySettings struct {
	AccountID        string          `json:"accountId"`
	LogLevel         string          `json:"logLevel,omitempty"`
	HeartbeatSeconds int             `json:"heartbeatSeconds,omitempty"`
	Reconnect        ReconnectConfig `json:"reconnect,omitempty"`
}

// BindingMatch is one binding's selector, spec §4.9's `match`.
type BindingMatch struct {
	Channel   string `json:"channel"`
	AccountID string `json:"accountId,omitempty"`
	PeerKind  string `json:"peerKind,omitempty"`
	PeerID    string `json:"peerId,omitempty"`
}

// Binding routes a channel/account/peer selector to an agent id.
type Binding struct {
	AgentID string       `json:"agentId"`
	Match   BindingMatch `json:"match"`
}

// Gateway is the full contents of gateway.json (spec §6).
type Gateway struct {
	Gateway  GatewaySettings          `json:"gateway"`
	Channels map[string]ChannelConfig `json:"channels"`
	Bindings []Binding                `json:"bindings"`
}

// Load reads gateway.json at path (missing file yields a zero-value
// Gateway, per the persistence package's parse-or-empty contract).
func Load(path string) (*Gateway, error) {
	var g Gateway
	if err := persistence.ReadJSON(path, &g); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	if g.Channels == nil {
		g.Channels = make(map[string]ChannelConfig)
	}
	return &g, nil
}

// Save writes g to path atomically.
func Save(path string, g *Gateway) error {
	return persistence.WriteJSON(path, g)
}

// Profile is the optional dexter.yaml operator profile (spec SPEC_FULL
// ambient-stack addition): display name, brand tag, and default model,
// layered on top of gateway.json the way nexus's loader merges sources.
type Profile struct {
	DisplayName  string `yaml:"displayName"`
	BrandTag     string `yaml:"brandTag"`
	DefaultModel string `yaml:"defaultModel"`
}

// LoadProfile reads dexter.yaml at path. A missing file yields a
// zero-value Profile rather than an error, matching gateway.json's
// parse-or-empty convention.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("config: load profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse profile %s: %w", path, err)
	}
	return &p, nil
}
