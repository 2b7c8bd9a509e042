package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

type fakeSynth struct {
	mu     sync.Mutex
	texts  []string
	called chan string
	block  bool
	err    error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (Audio, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.called != nil {
		f.called <- text
	}
	if f.block {
		<-ctx.Done()
		return Audio{}, ctx.Err()
	}
	if f.err != nil {
		return Audio{}, f.err
	}
	// 100ms of silence at 24kHz
	return Audio{PCM: make([]byte, 4800), SampleRate: 24000}, nil
}

type collector struct {
	pipeline.BaseProcessor
	mu     sync.Mutex
	frames []pipeline.Frame
}

func (c *collector) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Downstream {
		c.mu.Lock()
		c.frames = append(c.frames, frame)
		c.mu.Unlock()
	}
	c.PushFrame(frame, dir)
	return nil
}

func (c *collector) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		out = append(out, pipeline.FrameName(f))
	}
	return out
}

func run(t *testing.T, task *pipeline.Task) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- task.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected clean run, got %v", err)
		}
	case <-time.After(3 * time.Second):
		task.Cancel()
		t.Fatal("task did not finish")
	}
}

func TestTTSServiceOrdersAudioAndMarkers(t *testing.T) {
	synth := &fakeSynth{}
	svc := NewTTSService(synth, ServiceConfig{})
	out := &collector{BaseProcessor: pipeline.NewBaseProcessor("out")}
	task := pipeline.NewTask(pipeline.NewPipeline(svc, out))

	task.QueueFrames(
		&pipeline.LLMFullResponseStartFrame{},
		&pipeline.LLMTextFrame{Text: "Ashoka was a great king. "},
		&pipeline.LLMTextFrame{Text: "He ruled"},
		&pipeline.LLMFullResponseEndFrame{},
		&pipeline.EndFrame{},
	)
	run(t, task)

	expected := []string{
		"StartFrame",
		"LLMFullResponseStartFrame",
		"TTSStartedFrame",
		"TTSAudioRawFrame", "TTSAudioRawFrame", "TTSAudioRawFrame",
		"LLMTextFrame",
		"LLMTextFrame",
		"TTSAudioRawFrame", "TTSAudioRawFrame", "TTSAudioRawFrame",
		"TTSStoppedFrame",
		"LLMFullResponseEndFrame",
		"EndFrame",
	}
	got := out.names()
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected frame %d to be %s, got %s", i, expected[i], got[i])
		}
	}

	synth.mu.Lock()
	defer synth.mu.Unlock()
	if len(synth.texts) != 2 || synth.texts[0] != "Ashoka was a great king." || synth.texts[1] != "He ruled" {
		t.Errorf("Unexpected synthesized sentences %q", synth.texts)
	}
}

func TestTTSServiceSilentResponseHasNoStartedFrame(t *testing.T) {
	svc := NewTTSService(&fakeSynth{}, ServiceConfig{})
	out := &collector{BaseProcessor: pipeline.NewBaseProcessor("out")}
	task := pipeline.NewTask(pipeline.NewPipeline(svc, out))
	task.QueueFrames(&pipeline.LLMFullResponseStartFrame{}, &pipeline.LLMFullResponseEndFrame{}, &pipeline.EndFrame{})
	run(t, task)

	for _, name := range out.names() {
		if name == "TTSStartedFrame" || name == "TTSStoppedFrame" {
			t.Errorf("Did not expect %s for an empty response", name)
		}
	}
}

func TestTTSServiceInterruptionDropsPendingSpeech(t *testing.T) {
	synth := &fakeSynth{block: true, called: make(chan string, 4)}
	svc := NewTTSService(synth, ServiceConfig{})
	out := &collector{BaseProcessor: pipeline.NewBaseProcessor("out")}
	task := pipeline.NewTask(pipeline.NewPipeline(svc, out))

	done := make(chan error, 1)
	go func() { done <- task.Run(context.Background()) }()

	task.QueueFrames(
		&pipeline.LLMFullResponseStartFrame{},
		&pipeline.LLMTextFrame{Text: "The Mauryan empire was vast. It spanned most of India. "},
	)
	select {
	case <-synth.called:
	case <-time.After(2 * time.Second):
		t.Fatal("synthesizer was never called")
	}

	task.QueueFrames(&pipeline.InterruptionFrame{}, &pipeline.LLMFullResponseEndFrame{}, &pipeline.EndFrame{})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Expected clean run, got %v", err)
		}
	case <-time.After(3 * time.Second):
		task.Cancel()
		t.Fatal("task did not finish")
	}

	names := out.names()
	for _, name := range names {
		if name == "TTSAudioRawFrame" || name == "TTSStartedFrame" || name == "LLMTextFrame" {
			t.Errorf("Did not expect %s after interruption, got %v", name, names)
		}
	}
	if names[len(names)-1] != "EndFrame" {
		t.Errorf("Expected EndFrame last, got %v", names)
	}
}

func TestTTSServiceReportsSynthesisErrors(t *testing.T) {
	synth := &fakeSynth{err: errors.New("vendor down")}
	svc := NewTTSService(synth, ServiceConfig{})
	var mu sync.Mutex
	var errs []*pipeline.ErrorFrame
	obs := pipeline.ObserverFunc(func(ev pipeline.PushEvent) {
		if f, ok := ev.Frame.(*pipeline.ErrorFrame); ok {
			mu.Lock()
			errs = append(errs, f)
			mu.Unlock()
		}
	})
	task := pipeline.NewTask(pipeline.NewPipeline(svc), pipeline.WithObserver(obs))
	task.QueueFrames(
		&pipeline.LLMFullResponseStartFrame{},
		&pipeline.LLMTextFrame{Text: "hello"},
		&pipeline.LLMFullResponseEndFrame{},
		&pipeline.EndFrame{},
	)
	run(t, task)

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || errs[0].Fatal || errs[0].Stage != "tts" {
		t.Errorf("Expected one non-fatal tts error, got %v", errs)
	}
}
