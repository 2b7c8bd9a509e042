package gemini

import (
	"context"
	"fmt"

	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	cfg    assistant.GenerationConfig
}

func New(ctx context.Context, apiKey string, cfg assistant.GenerationConfig) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}
	return &GeminiProvider{client: client, cfg: cfg}, nil
}

func (gp *GeminiProvider) Name() string { return "gemini" }

// Stream implements assistant.Provider.
func (gp *GeminiProvider) Stream(ctx context.Context, msgs []pipeline.Message, fn assistant.StreamFunc) error {
	system, contents := toContents(msgs)
	if len(contents) == 0 {
		// gemini refuses an empty turn list
		contents = []*genai.Content{genai.NewContentFromText("Hello.", genai.RoleUser)}
	}

	for resp, err := range gp.client.Models.GenerateContentStream(ctx, gp.cfg.Model, contents, gp.config(system)) {
		if err != nil {
			return fmt.Errorf("failed to receive from Gemini stream: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := fn(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (gp *GeminiProvider) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(gp.cfg.Temperature)),
		MaxOutputTokens: int32(gp.cfg.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if gp.cfg.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(gp.cfg.ThinkingBudget)),
		}
	}
	return cfg
}

// toContents maps the conversation to gemini turns. System messages after the
// first one (like the greeting instruction) are sent as user turns.
func toContents(msgs []pipeline.Message) (string, []*genai.Content) {
	system, rest := assistant.SplitSystem(msgs)
	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := genai.Role(genai.RoleUser)
		if msg.Role == pipeline.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return system, contents
}
