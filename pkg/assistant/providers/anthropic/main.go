package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

const defaultMaxTokens = 1024

type AnthropicProvider struct {
	client anthropic.Client
	cfg    assistant.GenerationConfig
}

func New(apiKey string, cfg assistant.GenerationConfig, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is not configured")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

// Stream implements assistant.Provider.
func (a *AnthropicProvider) Stream(ctx context.Context, msgs []pipeline.Message, fn assistant.StreamFunc) error {
	system, rest := assistant.SplitSystem(msgs)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(a.cfg.MaxTokens),
		Messages:    convertMessages(rest),
		Temperature: anthropic.Float(a.cfg.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			if err := fn(text.Text); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic stream failed: %w", err)
	}
	return nil
}

// The messages API only knows user and assistant turns, so instructions
// added mid conversation (the greeting) are sent as user turns.
func convertMessages(msgs []pipeline.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == pipeline.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
