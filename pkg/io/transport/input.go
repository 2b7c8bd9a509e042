package transport

import (
	"context"
	"sync"

	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

// Input turns client audio into InputAudioRawFrames once the pipeline starts.
type Input struct {
	pipeline.BaseProcessor
	audio      <-chan []byte
	sampleRate int

	once sync.Once
	wg   sync.WaitGroup
}

func NewInput(audio <-chan []byte, sampleRate int) *Input {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Input{
		BaseProcessor: pipeline.NewBaseProcessor("input"),
		audio:         audio,
		sampleRate:    sampleRate,
	}
}

func (in *Input) ProcessFrame(ctx context.Context, frame pipeline.Frame, dir pipeline.Direction) error {
	in.PushFrame(frame, dir)
	if _, ok := frame.(*pipeline.StartFrame); ok && dir == pipeline.Downstream {
		in.once.Do(func() {
			in.wg.Add(1)
			go in.read(ctx)
		})
	}
	return nil
}

func (in *Input) Cleanup(ctx context.Context) error {
	in.wg.Wait()
	return nil
}

func (in *Input) read(ctx context.Context) {
	defer in.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pcm, ok := <-in.audio:
			if !ok {
				return
			}
			if len(pcm) == 0 {
				continue
			}
			in.PushFrame(&pipeline.InputAudioRawFrame{
				Audio:      pcm,
				SampleRate: in.sampleRate,
				Channels:   1,
			}, pipeline.Downstream)
		}
	}
}
