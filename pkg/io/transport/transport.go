package transport

import (
	"context"
	"sync"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

type Event string

const (
	EventClientConnected    Event = "client_connected"
	EventClientDisconnected Event = "client_disconnected"
)

type Handler func(ctx context.Context)

// Subscription is returned by Subscribe. Cancel detaches the handler; calling
// it more than once is harmless.
type Subscription interface {
	Cancel()
}

// Transport moves audio and messages between one client and a pipeline.
type Transport interface {
	Input() pipeline.FrameProcessor
	Output() pipeline.FrameProcessor
	Subscribe(ev Event, h Handler) Subscription
	Close() error
}

// Sink is where the output processor writes. Implementations must be safe to
// call from a single writer goroutine.
type Sink interface {
	WriteAudio(pcm []byte, sampleRate int) error
	SendMessage(msg any) error
}

// Events is a small event bus. Every event fires at most once; a handler
// subscribed after its event fired is called right away.
type Events struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Event]map[int]Handler
	fired    map[Event]bool
}

func NewEvents() *Events {
	return &Events{
		handlers: make(map[Event]map[int]Handler),
		fired:    make(map[Event]bool),
	}
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() { s.once.Do(s.cancel) }

func (e *Events) Subscribe(ev Event, h Handler) Subscription {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if e.handlers[ev] == nil {
		e.handlers[ev] = make(map[int]Handler)
	}
	e.handlers[ev][id] = h
	fired := e.fired[ev]
	e.mu.Unlock()

	if fired {
		h(context.Background())
	}
	return &subscription{cancel: func() {
		e.mu.Lock()
		delete(e.handlers[ev], id)
		e.mu.Unlock()
	}}
}

// Fire runs the handlers of ev. It reports false if ev had already fired.
func (e *Events) Fire(ctx context.Context, ev Event) bool {
	e.mu.Lock()
	if e.fired[ev] {
		e.mu.Unlock()
		return false
	}
	e.fired[ev] = true
	hs := make([]Handler, 0, len(e.handlers[ev]))
	for _, h := range e.handlers[ev] {
		hs = append(hs, h)
	}
	e.mu.Unlock()

	for _, h := range hs {
		h(ctx)
	}
	return true
}

func (e *Events) Fired(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired[ev]
}
