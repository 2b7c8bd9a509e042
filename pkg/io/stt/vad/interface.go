package vad

import (
	"context"

	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
)

// Result is the verdict for one chunk of audio.
type Result struct {
	HasVoice   bool
	Confidence float32 // 0 on silence, saturates at twice the threshold
	Level      float64 // normalized RMS of the chunk
}

// VAD classifies chunks of s16le mono audio. Implementations are used by a
// single session and need not be safe for concurrent use.
type VAD interface {
	DetectVoice(ctx context.Context, audio audioring.AudioInput) (Result, error)
	Close() error
}

type Config struct {
	SampleRate int
	Threshold  float64 // RMS level above which a chunk counts as voice
}
