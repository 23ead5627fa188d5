// Package providers implements the concrete LLM provider clients behind
// the llm.Client facade (C1): Anthropic, OpenAI, Gemini, and Bedrock.
// Each provider file owns exactly one vendor SDK; none of their types
// escape this package — callers only ever see llm.Request/llm.Response.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/virattt/dexter-sub002/internal/llm"
)

// AnthropicConfig configures the Anthropic provider. APIKey is read lazily
// in NewAnthropic if empty, from ANTHROPIC_API_KEY, so provider construction
// never depends on .env load order (spec §4.1).
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
}

// Anthropic wraps anthropic-sdk-go's Messages API behind llm.Client.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
}

// NewAnthropic constructs the Anthropic provider client.
func NewAnthropic(cfg AnthropicConfig) (llm.Client, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("anthropic: ANTHROPIC_API_KEY not set")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-5-20260101"
	}
	return &Anthropic{
		client:       anthropic.NewClient(option.WithAPIKey(key)),
		defaultModel: model,
	}, nil
}

func (p *Anthropic) model(req llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *Anthropic) buildParams(req llm.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req)),
		MaxTokens: int64(maxTokensOrDefault(req.MaxTokens)),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, convertMessage(m))
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: t.JSONSchema["properties"]},
			},
		})
	}
	return params
}

func convertMessage(m llm.Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	if m.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}
	for _, tc := range m.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal(tc.Args, &args)
		blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
	}
	for _, tr := range m.ToolResults {
		blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
	}
	if m.Role == "assistant" {
		return anthropic.NewAssistantMessage(blocks...)
	}
	return anthropic.NewUserMessage(blocks...)
}

// Complete buffers the streaming SSE response into a single llm.Response,
// including any tool_use blocks the model emitted.
func (p *Anthropic) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	params := p.buildParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)

	resp := &llm.Response{}
	var textBuf []byte
	pendingToolID, pendingToolName := "", ""
	var pendingArgs []byte

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				pendingToolID = event.ContentBlock.ID
				pendingToolName = event.ContentBlock.Name
				pendingArgs = nil
			}
		case "content_block_delta":
			if event.Delta.Type == "text_delta" {
				textBuf = append(textBuf, event.Delta.Text...)
			}
			if event.Delta.Type == "input_json_delta" {
				pendingArgs = append(pendingArgs, event.Delta.PartialJSON...)
			}
		case "content_block_stop":
			if pendingToolID != "" {
				resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
					ID:   pendingToolID,
					Name: pendingToolName,
					Args: json.RawMessage(orEmptyObject(pendingArgs)),
				})
				pendingToolID, pendingToolName, pendingArgs = "", "", nil
			}
		case "message_delta":
			if event.Usage.OutputTokens > 0 {
				resp.Usage = &llm.Usage{OutputTokens: int(event.Usage.OutputTokens)}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: stream: %w", err)
	}
	resp.Text = string(textBuf)
	return resp, nil
}

// Stream returns incremental text chunks as the model generates them.
func (p *Anthropic) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	params := p.buildParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)
	out := make(chan llm.StreamChunk)

	go func() {
		defer close(out)
		for stream.Next() {
			select {
			case <-ctx.Done():
				out <- llm.StreamChunk{Err: ctx.Err()}
				return
			default:
			}
			event := stream.Current()
			if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" {
				out <- llm.StreamChunk{Text: event.Delta.Text}
			}
		}
		if err := stream.Err(); err != nil {
			out <- llm.StreamChunk{Err: err}
			return
		}
		out <- llm.StreamChunk{Done: true}
	}()
	return out, nil
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}

func orEmptyObject(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
