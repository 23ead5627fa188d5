package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/virattt/dexter-sub002/internal/llm"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAI wraps sashabaranov/go-openai behind llm.Client.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAI constructs the OpenAI provider client, reading OPENAI_API_KEY
// lazily when cfg.APIKey is empty.
func NewOpenAI(cfg OpenAIConfig) (llm.Client, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY not set")
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), defaultModel: model}, nil
}

func (p *OpenAI) model(req llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *OpenAI) buildRequest(req llm.Request, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertOpenAIMessage(m))
	}

	out := openai.ChatCompletionRequest{
		Model:     p.model(req),
		Messages:  messages,
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
		Stream:    stream,
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.JSONSchema,
			},
		})
	}
	return out
}

func convertOpenAIMessage(m llm.Message) openai.ChatCompletionMessage {
	role := openai.ChatMessageRoleUser
	if m.Role == "assistant" {
		role = openai.ChatMessageRoleAssistant
	} else if m.Role == "tool" {
		role = openai.ChatMessageRoleTool
	}
	msg := openai.ChatCompletionMessage{Role: role, Content: m.Content}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: string(tc.Args),
			},
		})
	}
	if len(m.ToolResults) == 1 {
		msg.Role = openai.ChatMessageRoleTool
		msg.ToolCallID = m.ToolResults[0].ToolCallID
		msg.Content = m.ToolResults[0].Content
	}
	return msg
}

// Complete sends a non-streaming chat completion request.
func (p *OpenAI) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("openai: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &llm.Response{}, nil
	}
	choice := resp.Choices[0]
	out := &llm.Response{
		Text: choice.Message.Content,
		Usage: &llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// Stream opens a streaming chat completion and forwards text deltas.
func (p *OpenAI) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("openai: stream open: %w", err)
	}
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			select {
			case <-ctx.Done():
				out <- llm.StreamChunk{Err: ctx.Err()}
				return
			default:
			}
			resp, err := stream.Recv()
			if err == io.EOF {
				out <- llm.StreamChunk{Done: true}
				return
			}
			if err != nil {
				out <- llm.StreamChunk{Err: fmt.Errorf("openai: stream recv: %w", err)}
				return
			}
			if len(resp.Choices) > 0 {
				out <- llm.StreamChunk{Text: resp.Choices[0].Delta.Content}
			}
		}
	}()
	return out, nil
}
