// Package aggregators keeps the conversation context of a session in step
// with what the user said and what the bot answered.
package aggregators

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

// NewPair returns the user and assistant aggregators sharing llmCtx.
func NewPair(llmCtx *pipeline.LLMContext, opts ...UserOption) (*UserAggregator, *AssistantAggregator) {
	return NewUserAggregator(llmCtx, opts...), NewAssistantAggregator(llmCtx)
}

// UserAggregator turns finalized transcripts into context updates and
// interrupts the bot when the user starts talking over a reply.
//
// A reply is in flight from the moment the stage named replyFrom starts a
// response until the stage named playedBy lets its end marker through.
type UserAggregator struct {
	pipeline.BaseProcessor
	llmCtx     *pipeline.LLMContext
	replyFrom  string
	playedBy   string
	responding atomic.Bool
}

type UserOption func(*UserAggregator)

// WithReplyStages names the stage that generates replies and the stage
// that finishes playing them.
func WithReplyStages(replyFrom, playedBy string) UserOption {
	return func(u *UserAggregator) {
		u.replyFrom, u.playedBy = replyFrom, playedBy
	}
}

func NewUserAggregator(llmCtx *pipeline.LLMContext, opts ...UserOption) *UserAggregator {
	u := &UserAggregator{
		BaseProcessor: pipeline.NewBaseProcessor("user-aggregator"),
		llmCtx:        llmCtx,
		replyFrom:     "llm",
		playedBy:      "output",
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Responding reports whether a bot reply is being generated or played.
func (u *UserAggregator) Responding() bool { return u.responding.Load() }

// OnPushFrame implements pipeline.Observer.
func (u *UserAggregator) OnPushFrame(ev pipeline.PushEvent) {
	if ev.Direction != pipeline.Downstream {
		return
	}
	switch ev.Frame.(type) {
	case *pipeline.LLMFullResponseStartFrame:
		if ev.Source == u.replyFrom {
			u.responding.Store(true)
		}
	case *pipeline.LLMFullResponseEndFrame:
		if ev.Source == u.playedBy {
			u.responding.Store(false)
		}
	}
}

func (u *UserAggregator) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Upstream {
		u.PushFrame(frame, dir)
		return nil
	}

	switch f := frame.(type) {
	case *pipeline.UserStartedSpeakingFrame:
		if u.InterruptionsAllowed() && u.responding.CompareAndSwap(true, false) {
			u.Logger().Debug("user spoke over the reply, interrupting")
			u.PushFrame(&pipeline.InterruptionFrame{}, pipeline.Downstream)
		}
		u.PushFrame(f, dir)
	case *pipeline.TranscriptionFrame:
		text := strings.TrimSpace(f.Text)
		if text == "" {
			return nil
		}
		u.llmCtx.Add(pipeline.RoleUser, text)
		u.Logger().Debugf("user said: %s", text)
		u.PushFrame(f, dir)
		u.PushFrame(&pipeline.LLMContextFrame{Context: u.llmCtx}, pipeline.Downstream)
	case *pipeline.LLMRunFrame:
		u.PushFrame(&pipeline.LLMContextFrame{Context: u.llmCtx}, pipeline.Downstream)
	default:
		u.PushFrame(frame, dir)
	}
	return nil
}

// AssistantAggregator commits the bot's reply to the context once the
// response ends, or with whatever was produced when it is interrupted.
type AssistantAggregator struct {
	pipeline.BaseProcessor
	llmCtx  *pipeline.LLMContext
	buf     strings.Builder
	active  bool
	started time.Time
}

func NewAssistantAggregator(llmCtx *pipeline.LLMContext) *AssistantAggregator {
	return &AssistantAggregator{
		BaseProcessor: pipeline.NewBaseProcessor("assistant-aggregator"),
		llmCtx:        llmCtx,
	}
}

func (a *AssistantAggregator) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Upstream {
		a.PushFrame(frame, dir)
		return nil
	}

	switch f := frame.(type) {
	case *pipeline.LLMFullResponseStartFrame:
		a.buf.Reset()
		a.active = true
		a.started = time.Now()
	case *pipeline.LLMTextFrame:
		if a.active {
			a.buf.WriteString(f.Text)
		}
	case *pipeline.LLMFullResponseEndFrame:
		a.commit("end")
	case *pipeline.InterruptionFrame:
		a.commit("interrupted")
	}
	a.PushFrame(frame, dir)
	return nil
}

func (a *AssistantAggregator) commit(reason string) {
	if !a.active {
		return
	}
	a.active = false
	text := strings.TrimSpace(a.buf.String())
	a.buf.Reset()
	if text == "" {
		return
	}
	a.llmCtx.Add(pipeline.RoleAssistant, text)
	a.Logger().Debugf("assistant turn committed (%s) after %s", reason, time.Since(a.started))
}
