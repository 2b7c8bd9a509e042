package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

var ErrNoServer = errors.New("no ollama server online")

// OllamaProvider spreads requests over every registered server and
// uses the first one that is online.
type OllamaProvider struct {
	farm *ollamafarm.Farm
	cfg  assistant.GenerationConfig
}

func New(urls []string, cfg assistant.GenerationConfig, logger *Logger.Logger) (*OllamaProvider, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no ollama urls configured")
	}
	farm := ollamafarm.New()
	registered := 0
	for _, u := range urls {
		if err := farm.RegisterURL(u, nil); err != nil {
			logger.Warnf("ollama server %s not registered: %v", u, err)
			continue
		}
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("none of %d ollama urls could be registered", len(urls))
	}
	return &OllamaProvider{farm: farm, cfg: cfg}, nil
}

func (o *OllamaProvider) Name() string { return "ollama" }

// Stream implements assistant.Provider.
func (o *OllamaProvider) Stream(ctx context.Context, msgs []pipeline.Message, fn assistant.StreamFunc) error {
	server := o.farm.First(&ollamafarm.Where{Offline: false})
	if server == nil {
		return ErrNoServer
	}

	stream := true
	req := api.ChatRequest{
		Model:    o.cfg.Model,
		Messages: convertMessages(msgs),
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": o.cfg.Temperature,
			"num_predict": o.cfg.MaxTokens,
		},
	}
	return server.Client().Chat(ctx, &req, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		return fn(resp.Message.Content)
	})
}

func convertMessages(msgs []pipeline.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, api.Message{Role: msg.Role, Content: msg.Content})
	}
	return out
}
