package providers

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/virattt/dexter-sub002/internal/llm"
)

// BedrockConfig configures the Bedrock provider. Credentials are resolved
// through the default AWS SDK chain (env vars, shared config, IAM role).
type BedrockConfig struct {
	Region       string
	DefaultModel string
}

// Bedrock wraps the Bedrock Runtime Converse API behind llm.Client.
type Bedrock struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// NewBedrock constructs the Bedrock provider client.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (llm.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	return &Bedrock{client: bedrockruntime.NewFromConfig(awsCfg), defaultModel: model}, nil
}

func (p *Bedrock) model(req llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.defaultModel
}

func (p *Bedrock) buildMessages(req llm.Request) []types.Message {
	messages := make([]types.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Content == "" {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		messages = append(messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return messages
}

// Complete issues a single Converse call against the model.
func (p *Bedrock) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:  &[]string{p.model(req)}[0],
		Messages: p.buildMessages(req),
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemPrompt}}
	}
	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock: converse: %w", err)
	}
	resp := &llm.Response{}
	if msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range msgOut.Value.Content {
			if textBlock, ok := block.(*types.ContentBlockMemberText); ok {
				resp.Text += textBlock.Value
			}
		}
	}
	if out.Usage != nil {
		resp.Usage = &llm.Usage{
			InputTokens:  int(ptrOr(out.Usage.InputTokens)),
			OutputTokens: int(ptrOr(out.Usage.OutputTokens)),
			TotalTokens:  int(ptrOr(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}

func ptrOr(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

// Stream issues a ConverseStream call and republishes deltas as chunks.
func (p *Bedrock) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  &[]string{p.model(req)}[0],
		Messages: p.buildMessages(req),
	}
	if req.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemPrompt}}
	}
	streamOut, err := p.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock: converse stream open: %w", err)
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		stream := streamOut.GetStream()
		defer stream.Close()
		for event := range stream.Events() {
			select {
			case <-ctx.Done():
				out <- llm.StreamChunk{Err: ctx.Err()}
				return
			default:
			}
			if delta, ok := event.(*types.ConverseStreamOutputMemberContentBlockDelta); ok {
				if textDelta, ok := delta.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					out <- llm.StreamChunk{Text: textDelta.Value}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- llm.StreamChunk{Err: fmt.Errorf("bedrock: stream: %w", err)}
			return
		}
		out <- llm.StreamChunk{Done: true}
	}()
	return out, nil
}
