package vad

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
)

func tone(samples int, amplitude float64) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestEnergyVADDetectsVoice(t *testing.T) {
	v := NewEnergyVAD(Config{SampleRate: 16000, Threshold: 0.02})
	ctx := context.Background()

	loud, err := v.DetectVoice(ctx, audioring.AudioInput{Data: tone(320, 0.5), SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !loud.HasVoice {
		t.Error("Expected a loud tone to count as voice")
	}
	if loud.Level < 0.3 || loud.Level > 0.4 {
		t.Errorf("Expected level near 0.35 for a half scale sine, got %v", loud.Level)
	}
	if loud.Confidence != 1 {
		t.Errorf("Expected saturated confidence, got %v", loud.Confidence)
	}

	quiet, _ := v.DetectVoice(ctx, audioring.AudioInput{Data: make([]byte, 640), SampleRate: 16000, Channels: 1})
	if quiet.HasVoice {
		t.Error("Expected silence to not count as voice")
	}
	if quiet.Confidence != 0 {
		t.Errorf("Expected zero confidence for silence, got %v", quiet.Confidence)
	}
}

func TestEnergyVADDefaultThreshold(t *testing.T) {
	v := NewEnergyVAD(Config{SampleRate: 16000})
	if v.cfg.Threshold != DefaultThreshold {
		t.Errorf("Expected threshold %v, got %v", DefaultThreshold, v.cfg.Threshold)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("Expected 0 for empty input")
	}
	full := make([]byte, 4)
	binary.LittleEndian.PutUint16(full[0:], uint16(0x7fff))
	binary.LittleEndian.PutUint16(full[2:], 0x8000)
	if r := RMS(full); r < 0.99 {
		t.Errorf("Expected near full scale RMS, got %v", r)
	}
}

func TestSegmenterTurn(t *testing.T) {
	s := NewSegmenter(SegmenterParams{StartSecs: 60 * time.Millisecond, StopSecs: 100 * time.Millisecond})
	chunk := 20 * time.Millisecond

	var turns []Turn
	feed := func(voice bool, n int) {
		for i := 0; i < n; i++ {
			if turn := s.Update(voice, chunk); turn != TurnNone {
				turns = append(turns, turn)
			}
		}
	}

	feed(true, 2) // too short to start
	if s.State() != Starting {
		t.Errorf("Expected starting, got %s", s.State())
	}
	feed(false, 1) // blip discarded
	if s.State() != Quiet {
		t.Errorf("Expected quiet after a blip, got %s", s.State())
	}

	feed(true, 5)
	feed(false, 2) // short pause keeps the turn
	feed(true, 2)
	feed(false, 5)

	if len(turns) != 2 || turns[0] != TurnStarted || turns[1] != TurnEnded {
		t.Fatalf("Expected one started and one ended turn, got %v", turns)
	}
	if s.State() != Quiet {
		t.Errorf("Expected quiet after the turn, got %s", s.State())
	}
}

func TestSegmenterMaxUtterance(t *testing.T) {
	s := NewSegmenter(SegmenterParams{StartSecs: 20 * time.Millisecond, StopSecs: time.Second, MaxUtterance: 100 * time.Millisecond})
	ended := false
	for i := 0; i < 20; i++ {
		if s.Update(true, 20*time.Millisecond) == TurnEnded {
			ended = true
			break
		}
	}
	if !ended {
		t.Error("Expected a long utterance to be cut")
	}
}
