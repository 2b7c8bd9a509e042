package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

// LLMService is the pipeline stage that answers each context frame with a
// streamed reply: LLMFullResponseStartFrame, LLMTextFrame..., LLMFullResponseEndFrame.
// A new context frame or an interruption cancels the reply in flight.
type LLMService struct {
	pipeline.BaseProcessor
	provider Provider
	timeout  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLLMService(provider Provider, timeout time.Duration) *LLMService {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LLMService{
		BaseProcessor: pipeline.NewBaseProcessor("llm"),
		provider:      provider,
		timeout:       timeout,
	}
}

func (s *LLMService) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Upstream {
		s.PushFrame(frame, dir)
		return nil
	}

	switch f := frame.(type) {
	case *pipeline.LLMContextFrame:
		s.generate(ctx, f.Context.Messages())
		return nil
	case *pipeline.InterruptionFrame, *pipeline.CancelFrame:
		// forward first so the end marker of the cut reply lands behind it
		s.PushFrame(frame, dir)
		s.stop()
		return nil
	case *pipeline.EndFrame:
		// let the last reply finish before the pipeline drains
		s.wg.Wait()
	}
	s.PushFrame(frame, dir)
	return nil
}

func (s *LLMService) Cleanup(ctx context.Context) error {
	s.stop()
	return nil
}

func (s *LLMService) stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *LLMService) generate(ctx context.Context, msgs []pipeline.Message) {
	s.stop()

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		s.PushFrame(&pipeline.LLMFullResponseStartFrame{}, pipeline.Downstream)
		started := time.Now()
		first := true
		err := s.provider.Stream(genCtx, msgs, func(delta string) error {
			if first {
				first = false
				s.Metrics().ObserveTTFB(s.Name(), time.Since(started))
			}
			if genCtx.Err() != nil {
				return genCtx.Err()
			}
			s.PushFrame(&pipeline.LLMTextFrame{Text: delta}, pipeline.Downstream)
			return nil
		})
		if err != nil && genCtx.Err() == nil {
			s.PushError(err, false)
		} else if err != nil {
			s.Logger().Debugf("%s reply stopped: %v", s.provider.Name(), err)
		}
		s.PushFrame(&pipeline.LLMFullResponseEndFrame{}, pipeline.Downstream)
	}()
}
