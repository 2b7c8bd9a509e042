package app

import (
	"context"
	"fmt"

	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/assistant/providers/anthropic"
	"github.com/xpanvictor/xtutor/pkg/assistant/providers/gemini"
	"github.com/xpanvictor/xtutor/pkg/assistant/providers/ollama"
	"github.com/xpanvictor/xtutor/pkg/assistant/providers/openai"
)

// GenerationConfigFromSettings maps the llm section onto provider settings.
func GenerationConfigFromSettings(cfg *config.Settings) assistant.GenerationConfig {
	gen := assistant.GenerationConfig{
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
		ThinkingBudget: cfg.LLM.ThinkingBudget,
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.Ollama.Model != "" {
		gen.Model = cfg.LLM.Ollama.Model
	}
	if gen.Model == "" {
		gen.Model = config.DefaultModel(cfg.LLM.Provider, cfg.LLM.Ollama.Model)
	}
	return gen
}

// NewLLMProvider builds the provider selected by llm.provider.
func NewLLMProvider(ctx context.Context, cfg *config.Settings, logger *Logger.Logger) (assistant.Provider, error) {
	gen := GenerationConfigFromSettings(cfg)

	var (
		provider assistant.Provider
		err      error
	)
	switch cfg.LLM.Provider {
	case "gemini":
		provider, err = gemini.New(ctx, cfg.LLM.GoogleAPIKey, gen)
	case "openai":
		provider, err = openai.New(cfg.LLM.OpenAIAPIKey, gen)
	case "anthropic":
		provider, err = anthropic.New(cfg.LLM.AnthropicAPIKey, gen)
	case "ollama":
		provider, err = ollama.New(cfg.LLM.Ollama.URLs, gen, logger.Named("ollama"))
	default:
		return nil, fmt.Errorf("%w: %q", assistant.ErrNoProvider, cfg.LLM.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.LLM.Provider, err)
	}
	logger.Infof("LLM provider %s ready (model %s)", provider.Name(), gen.Model)
	return provider, nil
}
