package pipeline

import (
	"fmt"
	"time"
)

// Direction a frame travels through the pipeline.
type Direction int

const (
	Downstream Direction = iota
	Upstream
)

func (d Direction) String() string {
	if d == Upstream {
		return "upstream"
	}
	return "downstream"
}

// Frame is the unit that flows between processors.
type Frame interface {
	frameName() string
}

// SystemFrame frames skip the ordered data lane of every processor.
type SystemFrame interface {
	Frame
	systemFrame()
}

type systemBase struct{}

func (systemBase) systemFrame() {}

// FrameName is the short type name used in logs.
func FrameName(f Frame) string {
	if f == nil {
		return "<nil>"
	}
	return f.frameName()
}

// IsSystem reports whether f uses the priority lane.
func IsSystem(f Frame) bool {
	_, ok := f.(SystemFrame)
	return ok
}

// ---- lifecycle ----

type StartFrame struct {
	systemBase
	AllowInterruptions bool
	EnableMetrics      bool
}

func (*StartFrame) frameName() string { return "StartFrame" }

// EndFrame drains the pipeline; the task finishes once it reaches the end.
type EndFrame struct{}

func (*EndFrame) frameName() string { return "EndFrame" }

type CancelFrame struct {
	systemBase
}

func (*CancelFrame) frameName() string { return "CancelFrame" }

// InterruptionFrame discards queued data frames in every processor it reaches.
type InterruptionFrame struct {
	systemBase
}

func (*InterruptionFrame) frameName() string { return "InterruptionFrame" }

type ErrorFrame struct {
	systemBase
	Err   error
	Fatal bool
	Stage string
}

func (*ErrorFrame) frameName() string { return "ErrorFrame" }

func (e *ErrorFrame) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// ---- user input ----

type InputAudioRawFrame struct {
	systemBase
	Audio      []byte // s16le
	SampleRate int
	Channels   int
}

func (*InputAudioRawFrame) frameName() string { return "InputAudioRawFrame" }

type UserStartedSpeakingFrame struct {
	systemBase
}

func (*UserStartedSpeakingFrame) frameName() string { return "UserStartedSpeakingFrame" }

type UserStoppedSpeakingFrame struct {
	systemBase
}

func (*UserStoppedSpeakingFrame) frameName() string { return "UserStoppedSpeakingFrame" }

// TranscriptionFrame is a finalized transcript of one user utterance.
type TranscriptionFrame struct {
	Text      string
	UserID    string
	Language  string
	Timestamp time.Time
}

func (*TranscriptionFrame) frameName() string { return "TranscriptionFrame" }

// ---- llm ----

// LLMRunFrame asks the user aggregator to run the model on the current context.
type LLMRunFrame struct{}

func (*LLMRunFrame) frameName() string { return "LLMRunFrame" }

type LLMContextFrame struct {
	Context *LLMContext
}

func (*LLMContextFrame) frameName() string { return "LLMContextFrame" }

type LLMFullResponseStartFrame struct{}

func (*LLMFullResponseStartFrame) frameName() string { return "LLMFullResponseStartFrame" }

type LLMTextFrame struct {
	Text string
}

func (*LLMTextFrame) frameName() string { return "LLMTextFrame" }

// LLMFullResponseEndFrame marks the end of a model response.
type LLMFullResponseEndFrame struct{}

func (*LLMFullResponseEndFrame) frameName() string { return "LLMFullResponseEndFrame" }

// ---- tts ----

type TTSStartedFrame struct{}

func (*TTSStartedFrame) frameName() string { return "TTSStartedFrame" }

type TTSAudioRawFrame struct {
	Audio      []byte // s16le
	SampleRate int
	Channels   int
}

func (*TTSAudioRawFrame) frameName() string { return "TTSAudioRawFrame" }

type TTSStoppedFrame struct{}

func (*TTSStoppedFrame) frameName() string { return "TTSStoppedFrame" }

// ---- transport messages ----

// OutputTransportMessageFrame is sent to the client in order with audio.
type OutputTransportMessageFrame struct {
	Message any
}

func (*OutputTransportMessageFrame) frameName() string { return "OutputTransportMessageFrame" }

// OutputTransportMessageUrgentFrame is sent to the client as soon as it reaches the output.
type OutputTransportMessageUrgentFrame struct {
	systemBase
	Message any
}

func (*OutputTransportMessageUrgentFrame) frameName() string {
	return "OutputTransportMessageUrgentFrame"
}
