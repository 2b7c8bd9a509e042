package pipeline

import "context"

// Pipeline is an ordered list of processors. Downstream frames travel from
// the first processor to the last.
type Pipeline struct {
	processors []FrameProcessor
}

func NewPipeline(processors ...FrameProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

func (p *Pipeline) Processors() []FrameProcessor {
	out := make([]FrameProcessor, len(p.processors))
	copy(out, p.processors)
	return out
}

// source is the head sentinel: it feeds queued frames downstream and is
// where upstream frames end up.
type source struct {
	BaseProcessor
}

func (s *source) ProcessFrame(ctx context.Context, frame Frame, dir Direction) error {
	if dir == Downstream {
		s.PushFrame(frame, Downstream)
		return nil
	}
	if errFrame, ok := frame.(*ErrorFrame); ok {
		s.task.onUpstreamError(errFrame)
	}
	return nil
}

// sink is the tail sentinel.
type sink struct {
	BaseProcessor
}

func (s *sink) ProcessFrame(ctx context.Context, frame Frame, dir Direction) error {
	if dir == Upstream {
		s.PushFrame(frame, Upstream)
		return nil
	}
	switch frame.(type) {
	case *EndFrame:
		s.task.onEnd()
	case *CancelFrame:
		s.task.onCancelDrained()
	}
	return nil
}
