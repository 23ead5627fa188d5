package llm

import (
	"context"
	"log/slog"

	"github.com/virattt/dexter-sub002/internal/llm/providers"
)

// ProviderConfig carries the per-provider construction settings
// (cmd/gateway fills them from environment variables). NewDefaultRegistry
// registers every provider whatever these hold; each one is constructed
// lazily on first use, and zero values are passed to its constructor as is.
type ProviderConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	GeminiAPIKey string
	GeminiModel  string

	BedrockRegion string
	BedrockModel  string
}

// NewDefaultRegistry builds the model-prefix-routed Registry described in
// spec §4.1: "claude-" routes to Anthropic, "gpt-"/"o1-" to OpenAI,
// "gemini-" to Google, "bedrock/" and "anthropic." (Bedrock's model-id
// prefix for Anthropic models) to Bedrock. Anthropic is
// the reference provider and therefore the default for unmatched names.
func NewDefaultRegistry(logger *slog.Logger, cfg ProviderConfig) *Registry {
	r := NewRegistry(logger)

	r.RegisterPrefix("claude-", func() (Client, error) {
		return providers.NewAnthropic(providers.AnthropicConfig{
			APIKey:       cfg.AnthropicAPIKey,
			DefaultModel: cfg.AnthropicModel,
		})
	})
	r.RegisterPrefix("gpt-", func() (Client, error) {
		return providers.NewOpenAI(providers.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			DefaultModel: cfg.OpenAIModel,
		})
	})
	r.RegisterPrefix("o1-", func() (Client, error) {
		return providers.NewOpenAI(providers.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, DefaultModel: cfg.OpenAIModel})
	})
	r.RegisterPrefix("gemini-", func() (Client, error) {
		return providers.NewGemini(providers.GeminiConfig{
			APIKey:       cfg.GeminiAPIKey,
			DefaultModel: cfg.GeminiModel,
		})
	})
	r.RegisterPrefix("anthropic.", func() (Client, error) {
		return providers.NewBedrock(context.Background(), providers.BedrockConfig{
			Region:       cfg.BedrockRegion,
			DefaultModel: cfg.BedrockModel,
		})
	})
	r.RegisterPrefix("bedrock/", func() (Client, error) {
		return providers.NewBedrock(context.Background(), providers.BedrockConfig{
			Region:       cfg.BedrockRegion,
			DefaultModel: cfg.BedrockModel,
		})
	})

	r.SetDefault(func() (Client, error) {
		return providers.NewAnthropic(providers.AnthropicConfig{
			APIKey:       cfg.AnthropicAPIKey,
			DefaultModel: cfg.AnthropicModel,
		})
	})

	return r
}
