package app

import (
	"context"
	"errors"
	"testing"

	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
)

func llmSettings(provider string) *config.Settings {
	return &config.Settings{LLM: config.LLMConfig{
		Provider:        provider,
		Model:           "some-model",
		MaxTokens:       512,
		Temperature:     0.5,
		OpenAIAPIKey:    "openai-key",
		AnthropicAPIKey: "anthropic-key",
		Ollama:          config.OllamaConfig{URLs: []string{"http://localhost:11434"}, Model: "llama3.1"},
	}}
}

func TestNewLLMProviderSelectsByName(t *testing.T) {
	for _, name := range []string{"openai", "anthropic"} {
		p, err := NewLLMProvider(context.Background(), llmSettings(name), Logger.Nop())
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Expected provider %s, got %s", name, p.Name())
		}
	}
}

func TestNewLLMProviderUnknown(t *testing.T) {
	_, err := NewLLMProvider(context.Background(), llmSettings("parrot"), Logger.Nop())
	if !errors.Is(err, assistant.ErrNoProvider) {
		t.Errorf("Expected ErrNoProvider, got %v", err)
	}
}

func TestNewLLMProviderMissingKey(t *testing.T) {
	cfg := llmSettings("anthropic")
	cfg.LLM.AnthropicAPIKey = ""
	if _, err := NewLLMProvider(context.Background(), cfg, Logger.Nop()); err == nil {
		t.Error("Expected an error when the api key is missing")
	}
}

func TestGenerationConfigOllamaModel(t *testing.T) {
	if got := GenerationConfigFromSettings(llmSettings("ollama")).Model; got != "llama3.1" {
		t.Errorf("Expected ollama model override, got %s", got)
	}
	if got := GenerationConfigFromSettings(llmSettings("openai")).Model; got != "some-model" {
		t.Errorf("Expected llm.model, got %s", got)
	}
}

func TestGenerationConfigProviderDefault(t *testing.T) {
	for provider, want := range map[string]string{
		"gemini":    "gemini-2.5-pro",
		"openai":    "gpt-4o-mini",
		"anthropic": "claude-3-7-sonnet-latest",
	} {
		cfg := llmSettings(provider)
		cfg.LLM.Model = ""
		if got := GenerationConfigFromSettings(cfg).Model; got != want {
			t.Errorf("Expected %s for %s, got %s", want, provider, got)
		}
	}
}
