package vad

import (
	"context"
	"math"

	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
)

const DefaultThreshold = 0.02

// EnergyVAD flags a chunk as voice when its RMS level crosses a threshold.
type EnergyVAD struct {
	cfg Config
}

func NewEnergyVAD(cfg Config) *EnergyVAD {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &EnergyVAD{cfg: cfg}
}

func (e *EnergyVAD) DetectVoice(ctx context.Context, audio audioring.AudioInput) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	level := RMS(audio.Data)
	return Result{
		HasVoice:   level >= e.cfg.Threshold,
		Confidence: float32(math.Min(1, level/e.cfg.Threshold/2)),
		Level:      level,
	}, nil
}

func (e *EnergyVAD) Close() error { return nil }

// RMS of s16le pcm normalized to [0,1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		sum += s * s
	}
	return math.Sqrt(sum/float64(n)) / 32768
}
