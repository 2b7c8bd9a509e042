package assistant

import (
	"context"
	"errors"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

var ErrNoProvider = errors.New("no llm provider configured")

// StreamFunc receives text deltas in order. Returning an error stops the stream.
type StreamFunc func(delta string) error

// Provider streams a model reply for a conversation.
type Provider interface {
	Name() string
	Stream(ctx context.Context, msgs []pipeline.Message, fn StreamFunc) error
}

// GenerationConfig is shared by every provider.
type GenerationConfig struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	ThinkingBudget int
}

// SplitSystem returns the leading system instruction and the remaining
// messages. Later system messages are kept in place.
func SplitSystem(msgs []pipeline.Message) (string, []pipeline.Message) {
	if len(msgs) > 0 && msgs[0].Role == pipeline.RoleSystem {
		return msgs[0].Content, msgs[1:]
	}
	return "", msgs
}
