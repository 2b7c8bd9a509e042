package tts

import (
	"context"
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/pkg/io/audio"
	"github.com/xpanvictor/xtutor/pkg/io/tts/stream"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

type ServiceConfig struct {
	MaxChars int
	// ChunkDuration is the length of each audio frame pushed downstream.
	ChunkDuration time.Duration
}

// job is either a sentence to synthesize or a frame to forward in order.
type job struct {
	text  string
	frame pipeline.Frame
}

// TTSService turns streamed model text into audio. Sentences are synthesized
// one at a time on a worker so audio and response markers stay in order.
type TTSService struct {
	pipeline.BaseProcessor
	synth     Synthesizer
	cfg       ServiceConfig
	segmenter *stream.Segmenter
	jobs      *pipeline.Queue[job]

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// worker only
	speaking bool
}

func NewTTSService(synth Synthesizer, cfg ServiceConfig) *TTSService {
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = 40 * time.Millisecond
	}
	seg := stream.New()
	if cfg.MaxChars > 0 {
		seg.MaxChars = cfg.MaxChars
	}
	return &TTSService{
		BaseProcessor: pipeline.NewBaseProcessor("tts"),
		synth:         synth,
		cfg:           cfg,
		segmenter:     seg,
		jobs:          pipeline.NewQueue[job](),
	}
}

func (s *TTSService) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Upstream {
		s.PushFrame(frame, dir)
		return nil
	}

	switch f := frame.(type) {
	case *pipeline.StartFrame:
		s.PushFrame(frame, dir)
		s.startWorker(ctx)
		return nil
	case *pipeline.InterruptionFrame:
		s.interrupt()
		s.PushFrame(frame, dir)
		s.startWorker(ctx)
		return nil
	case *pipeline.CancelFrame:
		s.PushFrame(frame, dir)
		s.stopWorker()
		return nil
	case *pipeline.LLMTextFrame:
		for _, sentence := range s.segmenter.Push(f.Text) {
			s.jobs.Push(job{text: sentence})
		}
		s.jobs.Push(job{frame: frame})
		return nil
	case *pipeline.LLMFullResponseEndFrame:
		if rest := s.segmenter.Flush(); rest != "" {
			s.jobs.Push(job{text: rest})
		}
		s.jobs.Push(job{frame: frame})
		return nil
	}

	if pipeline.IsSystem(frame) {
		s.PushFrame(frame, dir)
		return nil
	}
	s.jobs.Push(job{frame: frame})
	return nil
}

func (s *TTSService) Cleanup(ctx context.Context) error {
	s.stopWorker()
	return nil
}

func (s *TTSService) startWorker(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	if s.parent == nil {
		s.parent = ctx
	}
	workerCtx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.wg.Add(1)
	go s.work(workerCtx)
}

func (s *TTSService) stopWorker() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// interrupt drops pending speech. An EndFrame already queued is kept.
func (s *TTSService) interrupt() {
	s.segmenter.Reset()
	s.stopWorker()
	dropped := s.jobs.Filter(func(j job) bool {
		_, isEnd := j.frame.(*pipeline.EndFrame)
		return isEnd
	})
	s.speaking = false
	if dropped > 0 {
		s.Logger().Debugf("interruption dropped %d pending tts jobs", dropped)
	}
}

func (s *TTSService) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		j, ok := s.jobs.Pop(ctx)
		if !ok {
			return
		}
		if j.frame == nil {
			s.speak(ctx, j.text)
			continue
		}
		if _, isEnd := j.frame.(*pipeline.LLMFullResponseEndFrame); isEnd && s.speaking {
			s.speaking = false
			s.PushFrame(&pipeline.TTSStoppedFrame{}, pipeline.Downstream)
		}
		s.PushFrame(j.frame, pipeline.Downstream)
	}
}

func (s *TTSService) speak(ctx context.Context, text string) {
	started := time.Now()
	out, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			s.PushError(err, false)
		}
		return
	}
	if ctx.Err() != nil || len(out.PCM) == 0 {
		return
	}
	s.Metrics().ObserveTTFB(s.Name(), time.Since(started))

	if !s.speaking {
		s.speaking = true
		s.PushFrame(&pipeline.TTSStartedFrame{}, pipeline.Downstream)
	}
	size := audio.BytesFor(s.cfg.ChunkDuration, out.SampleRate, 1)
	for _, chunk := range audio.Chunk(out.PCM, size) {
		if ctx.Err() != nil {
			return
		}
		s.PushFrame(&pipeline.TTSAudioRawFrame{
			Audio:      chunk,
			SampleRate: out.SampleRate,
			Channels:   1,
		}, pipeline.Downstream)
	}
}
