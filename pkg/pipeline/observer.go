package pipeline

import "time"

// PushEvent describes one hop of a frame between two processors.
type PushEvent struct {
	Source      string
	Destination string
	Frame       Frame
	Direction   Direction
	At          time.Time
}

// Observer is notified synchronously on every push in a task. It must not block.
type Observer interface {
	OnPushFrame(ev PushEvent)
}

type ObserverFunc func(ev PushEvent)

func (f ObserverFunc) OnPushFrame(ev PushEvent) { f(ev) }
