package tts

import "context"

// Audio is synthesized mono s16le PCM.
type Audio struct {
	PCM        []byte
	SampleRate int
}

// Synthesizer turns one sentence into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}
