package transport

import (
	"context"
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/pkg/io/audio"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

const chunkDuration = 20 * time.Millisecond

// Output writes bot audio to a Sink in real time, 20ms per chunk. Every
// data frame, audio included, is forwarded once the audio before it was
// written, so observers of this stage see playback time.
type Output struct {
	pipeline.BaseProcessor
	sink    Sink
	pending *pipeline.Queue[pipeline.Frame]

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// writer only
	carry     []byte
	carryRate int
	next      time.Time
	pace      bool
}

type OutputOption func(*Output)

// WithoutPacing writes audio as fast as the sink accepts it.
func WithoutPacing() OutputOption {
	return func(o *Output) { o.pace = false }
}

func NewOutput(sink Sink, opts ...OutputOption) *Output {
	o := &Output{
		BaseProcessor: pipeline.NewBaseProcessor("output"),
		sink:          sink,
		pending:       pipeline.NewQueue[pipeline.Frame](),
		pace:          true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Upstream {
		o.PushFrame(frame, dir)
		return nil
	}

	switch f := frame.(type) {
	case *pipeline.StartFrame:
		o.PushFrame(frame, dir)
		o.startWriter(ctx)
		return nil
	case *pipeline.InterruptionFrame:
		o.flush()
		o.PushFrame(frame, dir)
		o.startWriter(ctx)
		return nil
	case *pipeline.CancelFrame:
		o.PushFrame(frame, dir)
		o.stopWriter()
		return nil
	case *pipeline.OutputTransportMessageUrgentFrame:
		if err := o.sink.SendMessage(f.Message); err != nil {
			o.Logger().Warnf("urgent message not delivered: %v", err)
		}
		o.PushFrame(frame, dir)
		return nil
	}

	if pipeline.IsSystem(frame) {
		o.PushFrame(frame, dir)
		return nil
	}
	o.pending.Push(frame)
	return nil
}

func (o *Output) Cleanup(ctx context.Context) error {
	o.stopWriter()
	return nil
}

func (o *Output) startWriter(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return
	}
	if o.parent == nil {
		o.parent = ctx
	}
	writerCtx, cancel := context.WithCancel(o.parent)
	o.cancel = cancel
	o.wg.Add(1)
	go o.write(writerCtx)
}

func (o *Output) stopWriter() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// flush drops audio that has not been played yet. A queued EndFrame survives.
func (o *Output) flush() {
	o.stopWriter()
	dropped := o.pending.Filter(func(f pipeline.Frame) bool {
		_, isEnd := f.(*pipeline.EndFrame)
		return isEnd
	})
	o.carry = nil
	o.next = time.Time{}
	if dropped > 0 {
		o.Logger().Debugf("interruption flushed %d queued frames", dropped)
	}
}

func (o *Output) write(ctx context.Context) {
	defer o.wg.Done()
	for {
		frame, ok := o.pending.Pop(ctx)
		if !ok {
			return
		}
		switch f := frame.(type) {
		case *pipeline.TTSAudioRawFrame:
			if !o.writeAudio(ctx, f.Audio, f.SampleRate) {
				return
			}
		case *pipeline.OutputTransportMessageFrame:
			if err := o.sink.SendMessage(f.Message); err != nil {
				o.Logger().Warnf("message not delivered: %v", err)
			}
		case *pipeline.TTSStoppedFrame, *pipeline.LLMFullResponseEndFrame, *pipeline.EndFrame:
			o.drainCarry(ctx)
		}
		o.PushFrame(frame, pipeline.Downstream)
	}
}

func (o *Output) writeAudio(ctx context.Context, pcm []byte, rate int) bool {
	if o.carryRate != rate {
		o.drainCarry(ctx)
		o.carryRate = rate
	}
	o.carry = append(o.carry, pcm...)
	size := audio.BytesFor(chunkDuration, rate, 1)
	for len(o.carry) >= size {
		if !o.emit(ctx, o.carry[:size], rate) {
			o.carry = nil
			return false
		}
		o.carry = o.carry[size:]
	}
	return true
}

// drainCarry pads the remaining partial chunk with silence and writes it.
func (o *Output) drainCarry(ctx context.Context) {
	if len(o.carry) == 0 {
		return
	}
	size := audio.BytesFor(chunkDuration, o.carryRate, 1)
	padded := make([]byte, size)
	copy(padded, o.carry)
	o.carry = nil
	o.emit(ctx, padded, o.carryRate)
}

func (o *Output) emit(ctx context.Context, chunk []byte, rate int) bool {
	if o.pace {
		now := time.Now()
		if o.next.Before(now) {
			o.next = now
		}
		if wait := o.next.Sub(now); wait > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(wait):
			}
		}
		o.next = o.next.Add(chunkDuration)
	} else if ctx.Err() != nil {
		return false
	}
	if err := o.sink.WriteAudio(chunk, rate); err != nil {
		o.Logger().Warnf("audio write failed: %v", err)
	}
	return true
}
