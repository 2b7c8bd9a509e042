package stt

import (
	"context"
	"sync"
	"time"

	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
	"github.com/xpanvictor/xtutor/pkg/io/stt/vad"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

type ServiceConfig struct {
	SampleRate   int
	PreRoll      time.Duration // audio kept from before the voice was detected
	StartSecs    time.Duration
	StopSecs     time.Duration
	MaxUtterance time.Duration
}

// STTService segments the incoming audio into user turns and transcribes
// each finished turn in the background. Raw audio is consumed here.
type STTService struct {
	pipeline.BaseProcessor
	cfg         ServiceConfig
	transcriber Transcriber
	detector    vad.VAD
	segmenter   *vad.Segmenter
	ring        audioring.AudioRingBuffer
	jobs        *pipeline.Queue[[]audioring.AudioInput]

	once sync.Once
	wg   sync.WaitGroup
}

func NewSTTService(transcriber Transcriber, detector vad.VAD, cfg ServiceConfig) *STTService {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.PreRoll <= 0 {
		cfg.PreRoll = 300 * time.Millisecond
	}
	if cfg.MaxUtterance <= 0 {
		cfg.MaxUtterance = 30 * time.Second
	}
	return &STTService{
		BaseProcessor: pipeline.NewBaseProcessor("stt"),
		cfg:           cfg,
		transcriber:   transcriber,
		detector:      detector,
		segmenter: vad.NewSegmenter(vad.SegmenterParams{
			StartSecs:    cfg.StartSecs,
			StopSecs:     cfg.StopSecs,
			MaxUtterance: cfg.MaxUtterance,
		}),
		ring: audioring.NewForDuration(cfg.MaxUtterance+cfg.PreRoll+time.Second, cfg.SampleRate, 10*time.Millisecond),
		jobs: pipeline.NewQueue[[]audioring.AudioInput](),
	}
}

func (s *STTService) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	if dir == pipeline.Upstream {
		s.PushFrame(frame, dir)
		return nil
	}

	switch f := frame.(type) {
	case *pipeline.StartFrame:
		s.once.Do(func() {
			s.wg.Add(1)
			go s.transcribeLoop(ctx)
		})
	case *pipeline.InputAudioRawFrame:
		return s.handleAudio(ctx, f)
	}
	s.PushFrame(frame, dir)
	return nil
}

func (s *STTService) Cleanup(ctx context.Context) error {
	s.wg.Wait()
	return s.detector.Close()
}

func (s *STTService) handleAudio(ctx context.Context, f *pipeline.InputAudioRawFrame) error {
	in := audioring.AudioInput{
		Data:       f.Audio,
		Timestamp:  time.Now(),
		SampleRate: int32(f.SampleRate),
		Channels:   int16(f.Channels),
	}
	res, err := s.detector.DetectVoice(ctx, in)
	if err != nil {
		return err
	}
	if err := s.ring.Enqueue(in); err != nil {
		return err
	}

	switch s.segmenter.Update(res.HasVoice, in.Duration()) {
	case vad.TurnStarted:
		s.Logger().Debug("user started speaking")
		s.PushFrame(&pipeline.UserStartedSpeakingFrame{}, pipeline.Downstream)
	case vad.TurnEnded:
		s.Logger().Debugf("user stopped speaking, %s buffered", s.ring.Duration())
		s.PushFrame(&pipeline.UserStoppedSpeakingFrame{}, pipeline.Downstream)
		s.jobs.Push(s.ring.Drain())
	default:
		if s.segmenter.State() == vad.Quiet {
			s.ring.TrimTo(s.cfg.PreRoll)
		}
	}
	return nil
}

func (s *STTService) transcribeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		utterance, ok := s.jobs.Pop(ctx)
		if !ok {
			return
		}
		started := time.Now()
		tr, err := s.transcriber.TranscribeAudio(ctx, utterance)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.PushError(err, false)
			continue
		}
		s.Metrics().ObserveTTFB(s.Name(), time.Since(started))
		if tr.Text == "" {
			s.Logger().Debug("empty transcript dropped")
			continue
		}
		s.PushFrame(&pipeline.TranscriptionFrame{
			Text:      tr.Text,
			Language:  tr.Language,
			Timestamp: tr.GeneratedAt,
		}, pipeline.Downstream)
	}
}
