package tutor

import (
	"context"
	"errors"
	"sync"

	"github.com/looplab/fsm"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

// Status is the turn hint shown by the client UI.
type Status string

const (
	StatusListening  Status = "listening"
	StatusProcessing Status = "processing"
	StatusSpeaking   Status = "speaking"
)

const (
	evTranscript = "transcript"
	evAudio      = "audio"
	evEnd        = "end"
)

// StatusMessage is the side-channel payload sent to the client.
type StatusMessage struct {
	Type   string `json:"type"`
	Status Status `json:"status"`
}

func NewStatusMessage(s Status) StatusMessage {
	return StatusMessage{Type: "status", Status: s}
}

type StatusRecorder interface {
	RecordStatus(status string)
}

// StatusInferer derives listening/processing/speaking from the frames of a
// session. It passes every frame through untouched. Transcripts are seen as
// they flow through it; synthesized audio and end-of-response markers are
// observed as they leave the stage named by watch, which should be the
// output transport so speaking and listening follow playback rather than
// synthesis.
type StatusInferer struct {
	pipeline.BaseProcessor

	mu       sync.Mutex
	machine  *fsm.FSM
	watch    string
	recorder StatusRecorder
}

func NewStatusInferer(watch string, recorder StatusRecorder) *StatusInferer {
	return &StatusInferer{
		BaseProcessor: pipeline.NewBaseProcessor("status-inferer"),
		machine:       newStatusMachine(),
		watch:         watch,
		recorder:      recorder,
	}
}

func newStatusMachine() *fsm.FSM {
	all := []string{string(StatusListening), string(StatusProcessing), string(StatusSpeaking)}
	return fsm.NewFSM(
		string(StatusListening),
		fsm.Events{
			{Name: evTranscript, Src: all, Dst: string(StatusProcessing)},
			// speaking is only entered once per reset
			{Name: evAudio, Src: []string{string(StatusListening), string(StatusProcessing)}, Dst: string(StatusSpeaking)},
			{Name: evEnd, Src: all, Dst: string(StatusListening)},
		},
		fsm.Callbacks{},
	)
}

// Current returns the inferred state.
func (s *StatusInferer) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status(s.machine.Current())
}

// Speaking reports whether synthesized audio was seen since the last reset.
func (s *StatusInferer) Speaking() bool {
	return s.Current() == StatusSpeaking
}

// Infer advances the state machine for frame and returns the status to emit, if any.
func (s *StatusInferer) Infer(frame pipeline.Frame) (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infer(frame)
}

func (s *StatusInferer) infer(frame pipeline.Frame) (Status, bool) {
	var event string
	switch frame.(type) {
	case *pipeline.TranscriptionFrame:
		event = evTranscript
	case *pipeline.TTSAudioRawFrame:
		event = evAudio
	case *pipeline.LLMFullResponseEndFrame:
		event = evEnd
	default:
		return "", false
	}

	err := s.machine.Event(context.Background(), event)
	if err == nil {
		return Status(s.machine.Current()), true
	}

	var noTransition fsm.NoTransitionError
	var invalid fsm.InvalidEventError
	switch {
	case errors.As(err, &noTransition):
		// repeated transcript or end marker: still worth telling the client
		if event == evAudio {
			return "", false
		}
		return Status(s.machine.Current()), true
	case errors.As(err, &invalid):
		return "", false
	default:
		s.Logger().Warnf("status machine rejected %s: %v", event, err)
		return "", false
	}
}

func (s *StatusInferer) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Downstream {
		if _, ok := frame.(*pipeline.TranscriptionFrame); ok {
			s.mu.Lock()
			if status, emit := s.infer(frame); emit {
				s.emit(status)
			}
			s.mu.Unlock()
		}
	}
	s.PushFrame(frame, dir)
	return nil
}

// OnPushFrame implements pipeline.Observer.
func (s *StatusInferer) OnPushFrame(ev pipeline.PushEvent) {
	if ev.Source != s.watch || ev.Direction != pipeline.Downstream {
		return
	}
	switch ev.Frame.(type) {
	case *pipeline.TTSAudioRawFrame, *pipeline.LLMFullResponseEndFrame:
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, emit := s.infer(ev.Frame); emit {
		s.emit(status)
	}
}

// emit must be called with s.mu held so emissions keep their order.
func (s *StatusInferer) emit(status Status) {
	s.Logger().Debugf("status -> %s", status)
	if s.recorder != nil {
		s.recorder.RecordStatus(string(status))
	}
	s.PushFrame(&pipeline.OutputTransportMessageUrgentFrame{Message: NewStatusMessage(status)}, pipeline.Downstream)
}
