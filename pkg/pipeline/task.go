package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xpanvictor/xtutor/pkg/Logger"
)

var (
	ErrTaskCancelled      = errors.New("pipeline task cancelled")
	ErrTaskAlreadyRunning = errors.New("pipeline task already running")
)

const (
	cancelGrace    = time.Second
	cleanupTimeout = 2 * time.Second
)

type TaskParams struct {
	AllowInterruptions bool
	EnableMetrics      bool
}

type TaskOption func(*Task)

func WithLogger(l *Logger.Logger) TaskOption {
	return func(t *Task) { t.log = l }
}

func WithMetrics(m MetricsSink) TaskOption {
	return func(t *Task) {
		if m != nil {
			t.metrics = m
		}
	}
}

func WithObserver(o Observer) TaskOption {
	return func(t *Task) { t.observers = append(t.observers, o) }
}

func WithParams(p TaskParams) TaskOption {
	return func(t *Task) { t.params = p }
}

// Task runs one pipeline until an EndFrame reaches its end, Cancel is
// called, a fatal error travels back to its head, or the parent context ends.
type Task struct {
	pipeline *Pipeline
	head     *source
	tail     *sink
	chain    []FrameProcessor

	params    TaskParams
	observers []Observer
	log       *Logger.Logger
	metrics   MetricsSink

	running    atomic.Bool
	queueMu    sync.Mutex
	live       bool
	pending    []Frame
	cancelOnce sync.Once
	cancelled  chan struct{}
	endOnce    sync.Once
	ended      chan struct{}
	drainOnce  sync.Once
	drained    chan struct{}
	fatal      chan error
}

func NewTask(p *Pipeline, opts ...TaskOption) *Task {
	t := &Task{
		pipeline:  p,
		params:    TaskParams{AllowInterruptions: true, EnableMetrics: true},
		metrics:   noopMetrics{},
		cancelled: make(chan struct{}),
		ended:     make(chan struct{}),
		drained:   make(chan struct{}),
		fatal:     make(chan error, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = Logger.Nop()
	}

	t.head = &source{BaseProcessor: NewBaseProcessor("source")}
	t.tail = &sink{BaseProcessor: NewBaseProcessor("sink")}
	t.chain = append([]FrameProcessor{t.head}, p.Processors()...)
	t.chain = append(t.chain, t.tail)

	for i, proc := range t.chain {
		var prev, next *BaseProcessor
		if i > 0 {
			prev = t.chain[i-1].base()
		}
		if i < len(t.chain)-1 {
			next = t.chain[i+1].base()
		}
		proc.base().link(proc, prev, next, t)
		if obs, ok := proc.(Observer); ok {
			t.observers = append(t.observers, obs)
		}
	}
	return t
}

// QueueFrames pushes frames downstream from the head of the pipeline. It is
// safe to call before Run; the StartFrame still arrives first.
func (t *Task) QueueFrames(frames ...Frame) {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()
	if !t.live {
		t.pending = append(t.pending, frames...)
		return
	}
	for _, f := range frames {
		t.head.enqueue(f, Downstream)
	}
}

func (t *Task) QueueFrame(f Frame) { t.QueueFrames(f) }

// Cancel stops the task. Only the first call has any effect.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() {
		t.log.Info("task cancel requested")
		close(t.cancelled)
	})
}

func (t *Task) Cancelled() bool {
	select {
	case <-t.cancelled:
		return true
	default:
		return false
	}
}

func (t *Task) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrTaskAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, proc := range t.chain {
		wg.Add(1)
		go func(b *BaseProcessor) {
			defer wg.Done()
			b.run(runCtx)
		}(proc.base())
	}

	t.queueMu.Lock()
	t.head.enqueue(&StartFrame{
		AllowInterruptions: t.params.AllowInterruptions,
		EnableMetrics:      t.params.EnableMetrics,
	}, Downstream)
	for _, f := range t.pending {
		t.head.enqueue(f, Downstream)
	}
	t.pending = nil
	t.live = true
	t.queueMu.Unlock()
	t.log.Debugf("task started with %d processors", len(t.chain)-2)

	var err error
	select {
	case <-t.ended:
		t.log.Info("task finished")
	case <-t.cancelled:
		err = ErrTaskCancelled
		t.head.enqueue(&CancelFrame{}, Downstream)
		select {
		case <-t.drained:
		case <-time.After(cancelGrace):
			t.log.Warn("cancel frame did not drain in time")
		case <-ctx.Done():
		}
	case err = <-t.fatal:
		t.log.Errorf("task stopped on fatal error: %v", err)
	case <-ctx.Done():
		err = ctx.Err()
	}

	cancel()
	wg.Wait()
	t.cleanup()
	return err
}

func (t *Task) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	for _, proc := range t.chain {
		if c, ok := proc.(Cleaner); ok {
			if err := c.Cleanup(ctx); err != nil {
				t.log.Warnf("cleanup %s: %v", proc.Name(), err)
			}
		}
	}
}

func (t *Task) notify(ev PushEvent) {
	for _, o := range t.observers {
		o.OnPushFrame(ev)
	}
}

func (t *Task) onEnd() {
	t.endOnce.Do(func() { close(t.ended) })
}

func (t *Task) onCancelDrained() {
	t.drainOnce.Do(func() { close(t.drained) })
}

func (t *Task) onUpstreamError(f *ErrorFrame) {
	if !f.Fatal {
		t.log.Warnf("non-fatal error from %s: %v", f.Stage, f.Err)
		return
	}
	select {
	case t.fatal <- f:
	default:
	}
}
