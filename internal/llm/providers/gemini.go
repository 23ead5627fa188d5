package providers

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/virattt/dexter-sub002/internal/llm"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
}

// Gemini wraps google.golang.org/genai behind llm.Client. It supports
// Complete directly; Stream buffers the SDK's streaming iterator into
// chunks (genai's streaming API is pull-based, not channel-based).
type Gemini struct {
	client       *genai.Client
	defaultModel string
}

// NewGemini constructs the Gemini provider client, reading
// GEMINI_API_KEY/GOOGLE_API_KEY lazily when cfg.APIKey is empty.
func NewGemini(cfg GeminiConfig) (llm.Client, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY/GOOGLE_API_KEY not set")
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.5-pro"
	}
	return &Gemini{client: client, defaultModel: model}, nil
}

func (p *Gemini) model(req llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *Gemini) buildContents(req llm.Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (p *Gemini) config(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

// Complete sends a single (non-streaming) generation request.
func (p *Gemini) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model(req), p.buildContents(req), p.config(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	out := &llm.Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.Usage = &llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// Stream buffers genai's streaming iterator and republishes it as an
// llm.StreamChunk channel so callers don't depend on the SDK's iterator
// shape.
func (p *Gemini) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model(req), p.buildContents(req), p.config(req)) {
			select {
			case <-ctx.Done():
				out <- llm.StreamChunk{Err: ctx.Err()}
				return
			default:
			}
			if err != nil {
				out <- llm.StreamChunk{Err: fmt.Errorf("gemini: stream: %w", err)}
				return
			}
			if text := resp.Text(); text != "" {
				out <- llm.StreamChunk{Text: text}
			}
		}
		out <- llm.StreamChunk{Done: true}
	}()
	return out, nil
}
