package tutor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xpanvictor/xtutor/internal/constants/prompts"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

type botSink struct {
	mu         sync.Mutex
	audio      int
	firstAudio time.Time
	lastAudio  time.Time
	statuses   []Status
	statusAt   []time.Time
}

func (s *botSink) WriteAudio(pcm []byte, rate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio += len(pcm)
	now := time.Now()
	if s.firstAudio.IsZero() {
		s.firstAudio = now
	}
	s.lastAudio = now
	return nil
}

func (s *botSink) SendMessage(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := msg.(StatusMessage); ok {
		s.statuses = append(s.statuses, m.Status)
		s.statusAt = append(s.statusAt, time.Now())
	}
	return nil
}

func (s *botSink) snapshot() (int, []Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio, append([]Status(nil), s.statuses...)
}

type botTransport struct {
	*transport.Events
	input  *transport.Input
	output *transport.Output
}

func newBotTransport(sink transport.Sink, opts ...transport.OutputOption) *botTransport {
	if opts == nil {
		opts = []transport.OutputOption{transport.WithoutPacing()}
	}
	return &botTransport{
		Events: transport.NewEvents(),
		input:  transport.NewInput(make(chan []byte), 16000),
		output: transport.NewOutput(sink, opts...),
	}
}

func (b *botTransport) Input() pipeline.FrameProcessor  { return b.input }
func (b *botTransport) Output() pipeline.FrameProcessor { return b.output }
func (b *botTransport) Close() error                    { return nil }

type scriptedLLM struct {
	mu    sync.Mutex
	calls [][]pipeline.Message
	reply []string
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Stream(ctx context.Context, msgs []pipeline.Message, fn assistant.StreamFunc) error {
	s.mu.Lock()
	s.calls = append(s.calls, msgs)
	s.mu.Unlock()
	for _, delta := range s.reply {
		if err := fn(delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *scriptedLLM) lastCall() []pipeline.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

type silentTranscriber struct{}

func (silentTranscriber) TranscribeAudio(ctx context.Context, frames []audioring.AudioInput) (*stt.Transcript, error) {
	return &stt.Transcript{}, nil
}

type toneSynth struct {
	bytes int
}

func (s toneSynth) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	n := s.bytes
	if n == 0 {
		n = 1920
	}
	return tts.Audio{PCM: make([]byte, n), SampleRate: 24000}, nil
}

func newTestBot(llm assistant.Provider) *Bot {
	return newTestBotWith(llm, toneSynth{})
}

func newTestBotWith(llm assistant.Provider, synth tts.Synthesizer) *Bot {
	return NewBot(BotConfig{
		Prompt:   prompts.PromptDefinition{Content: "You are a tutor.", Version: 2.0},
		Greeting: "Greet the student warmly.",
	}, Deps{
		Transcriber: silentTranscriber{},
		LLM:         llm,
		Synthesizer: synth,
	})
}

func TestBotGreetsOnConnect(t *testing.T) {
	sink := &botSink{}
	tr := newBotTransport(sink)
	llm := &scriptedLLM{reply: []string{"Namaste! ", "What shall we study today?"}}
	bot := newTestBot(llm)

	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background(), tr, Logger.Nop()) }()

	tr.Fire(context.Background(), transport.EventClientConnected)

	deadline := time.Now().Add(3 * time.Second)
	for {
		_, statuses := sink.snapshot()
		if len(statuses) >= 2 && statuses[len(statuses)-1] == StatusListening {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected speaking then listening, got %v", statuses)
		}
		time.Sleep(10 * time.Millisecond)
	}

	audioBytes, statuses := sink.snapshot()
	if statuses[0] != StatusSpeaking {
		t.Errorf("Expected the greeting to start with speaking, got %v", statuses)
	}
	if audioBytes == 0 {
		t.Error("Expected greeting audio to reach the client")
	}

	msgs := llm.lastCall()
	if len(msgs) != 2 {
		t.Fatalf("Expected system prompt and greeting, got %v", msgs)
	}
	if msgs[0].Role != pipeline.RoleSystem || msgs[0].Content != "You are a tutor." {
		t.Errorf("Unexpected first message %+v", msgs[0])
	}
	if msgs[1].Role != pipeline.RoleSystem || !strings.Contains(msgs[1].Content, "Greet") {
		t.Errorf("Unexpected greeting message %+v", msgs[1])
	}

	tr.Fire(context.Background(), transport.EventClientDisconnected)
	tr.Fire(context.Background(), transport.EventClientDisconnected)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a disconnect to end the bot cleanly, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected the bot to stop after disconnect")
	}
}

func TestBotStopsWhenClientLeavesBeforeGreeting(t *testing.T) {
	tr := newBotTransport(&botSink{})
	llm := &scriptedLLM{}
	bot := newTestBot(llm)

	tr.Fire(context.Background(), transport.EventClientDisconnected)

	done := make(chan error, 1)
	go func() { done <- bot.Run(context.Background(), tr, nil) }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected the bot to stop")
	}
	if llm.lastCall() != nil {
		t.Error("Did not expect the model to be called")
	}
}

func TestBotStopsWithContext(t *testing.T) {
	tr := newBotTransport(&botSink{})
	bot := newTestBot(&scriptedLLM{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx, tr, nil) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil on shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected the bot to stop with its context")
	}
}

func TestBotStatusFollowsPlayback(t *testing.T) {
	sink := &botSink{}
	// real time output: one second of speech takes one second to play
	tr := newBotTransport(sink, func(*transport.Output) {})
	bot := newTestBotWith(&scriptedLLM{reply: []string{"Namaste!"}}, toneSynth{bytes: 48000})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx, tr, nil) }()
	tr.Fire(context.Background(), transport.EventClientConnected)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, statuses := sink.snapshot()
		if len(statuses) > 0 && statuses[len(statuses)-1] == StatusListening {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected listening after the greeting, got %v", statuses)
		}
		time.Sleep(10 * time.Millisecond)
	}

	sink.mu.Lock()
	statuses := append([]Status(nil), sink.statuses...)
	at := append([]time.Time(nil), sink.statusAt...)
	first, last, audioBytes := sink.firstAudio, sink.lastAudio, sink.audio
	sink.mu.Unlock()

	if len(statuses) != 2 || statuses[0] != StatusSpeaking || statuses[1] != StatusListening {
		t.Fatalf("Expected speaking then listening, got %v", statuses)
	}
	if audioBytes < 48000 {
		t.Errorf("Expected the whole greeting to be played, got %d bytes", audioBytes)
	}
	if at[0].Before(first) {
		t.Errorf("Expected speaking after playback started, was %s early", first.Sub(at[0]))
	}
	if at[1].Before(last) {
		t.Errorf("Expected listening after the last audio chunk, was %s early", last.Sub(at[1]))
	}
	if last.Sub(first) < 800*time.Millisecond {
		t.Errorf("Expected paced playback of about one second, took %s", last.Sub(first))
	}

	tr.Fire(context.Background(), transport.EventClientDisconnected)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected the bot to stop after disconnect")
	}
}
