package stt

import (
	"context"
	"time"

	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
)

// Transcript is the finalized text of one utterance.
type Transcript struct {
	Text          string
	Language      string
	RequestID     string
	GeneratedAt   time.Time
	AudioDuration time.Duration
}

// Transcriber converts one buffered utterance into text.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioFrames []audioring.AudioInput) (*Transcript, error)
}
