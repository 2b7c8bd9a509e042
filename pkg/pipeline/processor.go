package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xpanvictor/xtutor/pkg/Logger"
)

// FrameProcessor is one stage of a pipeline. Implementations embed
// BaseProcessor and implement ProcessFrame; frames they do not handle must be
// pushed on in the same direction.
type FrameProcessor interface {
	Name() string
	ProcessFrame(ctx context.Context, frame Frame, dir Direction) error
	base() *BaseProcessor
}

// Cleaner is implemented by processors holding resources that must be
// released when the task stops.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// MetricsSink receives per stage timings.
type MetricsSink interface {
	ObserveTTFB(stage string, d time.Duration)
	ObserveError(stage string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTTFB(string, time.Duration) {}
func (noopMetrics) ObserveError(string)               {}

type queued struct {
	frame Frame
	dir   Direction
}

type BaseProcessor struct {
	name string
	self FrameProcessor
	prev *BaseProcessor
	next *BaseProcessor
	task *Task

	sys  *Queue[queued]
	data *Queue[queued]

	log                *Logger.Logger
	started            atomic.Bool
	allowInterruptions atomic.Bool
}

func NewBaseProcessor(name string) BaseProcessor {
	return BaseProcessor{
		name: name,
		sys:  NewQueue[queued](),
		data: NewQueue[queued](),
	}
}

func (b *BaseProcessor) base() *BaseProcessor { return b }

func (b *BaseProcessor) Name() string { return b.name }

func (b *BaseProcessor) Logger() *Logger.Logger {
	if b.log == nil {
		return Logger.Nop()
	}
	return b.log
}

func (b *BaseProcessor) Metrics() MetricsSink {
	if b.task == nil || b.task.metrics == nil {
		return noopMetrics{}
	}
	return b.task.metrics
}

// Started reports whether the StartFrame has reached this processor.
func (b *BaseProcessor) Started() bool { return b.started.Load() }

func (b *BaseProcessor) InterruptionsAllowed() bool { return b.allowInterruptions.Load() }

// PushFrame hands frame to the neighbour in dir. It never blocks.
func (b *BaseProcessor) PushFrame(frame Frame, dir Direction) {
	target := b.next
	if dir == Upstream {
		target = b.prev
	}
	if target == nil {
		b.Logger().Debugf("dropping %s %s: no neighbour", FrameName(frame), dir)
		return
	}
	if b.task != nil {
		b.task.notify(PushEvent{
			Source:      b.name,
			Destination: target.name,
			Frame:       frame,
			Direction:   dir,
			At:          time.Now(),
		})
	}
	target.enqueue(frame, dir)
}

// PushError reports err upstream. A fatal error ends the task.
func (b *BaseProcessor) PushError(err error, fatal bool) {
	b.Logger().Errorf("%s error (fatal=%v): %v", b.name, fatal, err)
	b.Metrics().ObserveError(b.name)
	b.PushFrame(&ErrorFrame{Err: err, Fatal: fatal, Stage: b.name}, Upstream)
}

func (b *BaseProcessor) link(self FrameProcessor, prev, next *BaseProcessor, task *Task) {
	b.self = self
	b.prev = prev
	b.next = next
	b.task = task
	if b.sys == nil {
		b.sys = NewQueue[queued]()
	}
	if b.data == nil {
		b.data = NewQueue[queued]()
	}
	if task != nil && task.log != nil {
		b.log = task.log.Named(b.name)
	}
}

func (b *BaseProcessor) enqueue(frame Frame, dir Direction) {
	item := queued{frame: frame, dir: dir}
	if !IsSystem(frame) {
		b.data.Push(item)
		return
	}
	if _, ok := frame.(*InterruptionFrame); ok && dir == Downstream {
		dropped := b.data.Filter(func(q queued) bool {
			if q.dir == Upstream {
				return true
			}
			_, isEnd := q.frame.(*EndFrame)
			return isEnd
		})
		if dropped > 0 {
			b.Logger().Debugf("interruption dropped %d queued frames", dropped)
		}
	}
	b.sys.Push(item)
}

// pop prefers system frames over data frames.
func (b *BaseProcessor) pop(ctx context.Context) (queued, bool) {
	for {
		if item, ok := b.sys.TryPop(); ok {
			return item, true
		}
		if item, ok := b.data.TryPop(); ok {
			return item, true
		}
		select {
		case <-ctx.Done():
			return queued{}, false
		case <-b.sys.signal:
		case <-b.data.signal:
		}
	}
}

func (b *BaseProcessor) run(ctx context.Context) {
	for {
		item, ok := b.pop(ctx)
		if !ok {
			return
		}
		if start, isStart := item.frame.(*StartFrame); isStart {
			b.started.Store(true)
			b.allowInterruptions.Store(start.AllowInterruptions)
		}
		if err := b.self.ProcessFrame(ctx, item.frame, item.dir); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.PushError(err, false)
		}
	}
}
