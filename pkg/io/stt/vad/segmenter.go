package vad

import "time"

type State int

const (
	Quiet State = iota
	Starting
	Speaking
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Speaking:
		return "speaking"
	case Stopping:
		return "stopping"
	default:
		return "quiet"
	}
}

// Turn is what a segmenter update means for the conversation.
type Turn int

const (
	TurnNone Turn = iota
	TurnStarted
	TurnEnded
)

type SegmenterParams struct {
	StartSecs    time.Duration // voice needed before a turn starts
	StopSecs     time.Duration // silence needed before a turn ends
	MaxUtterance time.Duration // a turn longer than this is cut
}

// Segmenter turns per chunk voice decisions into user turns.
type Segmenter struct {
	params  SegmenterParams
	state   State
	voice   time.Duration
	silence time.Duration
	spoken  time.Duration
}

func NewSegmenter(params SegmenterParams) *Segmenter {
	if params.StartSecs <= 0 {
		params.StartSecs = 200 * time.Millisecond
	}
	if params.StopSecs <= 0 {
		params.StopSecs = 800 * time.Millisecond
	}
	return &Segmenter{params: params}
}

func (s *Segmenter) State() State { return s.state }

// Update feeds one chunk of length d.
func (s *Segmenter) Update(hasVoice bool, d time.Duration) Turn {
	switch s.state {
	case Quiet:
		if hasVoice {
			s.state = Starting
			s.voice = d
			return s.maybeStart()
		}
	case Starting:
		if !hasVoice {
			s.state = Quiet
			s.voice = 0
			return TurnNone
		}
		s.voice += d
		return s.maybeStart()
	case Speaking, Stopping:
		s.spoken += d
		if s.params.MaxUtterance > 0 && s.spoken >= s.params.MaxUtterance {
			s.reset()
			return TurnEnded
		}
		if hasVoice {
			s.state = Speaking
			s.silence = 0
			return TurnNone
		}
		s.state = Stopping
		s.silence += d
		if s.silence >= s.params.StopSecs {
			s.reset()
			return TurnEnded
		}
	}
	return TurnNone
}

// Reset forgets any turn in progress.
func (s *Segmenter) Reset() { s.reset() }

func (s *Segmenter) maybeStart() Turn {
	if s.voice < s.params.StartSecs {
		return TurnNone
	}
	s.state = Speaking
	s.spoken = s.voice
	s.silence = 0
	return TurnStarted
}

func (s *Segmenter) reset() {
	s.state = Quiet
	s.voice = 0
	s.silence = 0
	s.spoken = 0
}
