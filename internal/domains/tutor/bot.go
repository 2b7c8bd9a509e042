package tutor

import (
	"context"
	"errors"
	"time"

	"github.com/xpanvictor/xtutor/internal/constants/prompts"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	"github.com/xpanvictor/xtutor/pkg/io/stt/vad"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
	"github.com/xpanvictor/xtutor/pkg/pipeline/aggregators"
)

// Deps are the vendor clients shared by every session.
type Deps struct {
	Transcriber stt.Transcriber
	NewVAD      func() vad.VAD
	LLM         assistant.Provider
	Synthesizer tts.Synthesizer
	Metrics     *metrics.Metrics
}

type BotConfig struct {
	Prompt     prompts.PromptDefinition
	Greeting   string
	STT        stt.ServiceConfig
	TTS        tts.ServiceConfig
	LLMTimeout time.Duration
}

// Bot runs one tutoring conversation per transport.
type Bot struct {
	cfg  BotConfig
	deps Deps
}

func NewBot(cfg BotConfig, deps Deps) *Bot {
	return &Bot{cfg: cfg, deps: deps}
}

// Run builds the session pipeline and runs it until the client disconnects
// or ctx ends. A disconnect is a normal end and returns nil.
func (b *Bot) Run(ctx context.Context, tr transport.Transport, log *Logger.Logger) error {
	if log == nil {
		log = Logger.Nop()
	}
	llmCtx := pipeline.NewLLMContext(b.cfg.Prompt.ToMessage())
	task := b.newTask(tr, llmCtx, log)

	connected := tr.Subscribe(transport.EventClientConnected, func(context.Context) {
		log.Info("student connected")
		llmCtx.Add(pipeline.RoleSystem, b.cfg.Greeting)
		task.QueueFrames(&pipeline.LLMRunFrame{})
	})
	defer connected.Cancel()

	disconnected := tr.Subscribe(transport.EventClientDisconnected, func(context.Context) {
		log.Info("student disconnected")
		task.Cancel()
	})
	defer disconnected.Cancel()

	log.Infof("starting tutor pipeline (prompt v%.1f)", b.cfg.Prompt.Version)
	err := task.Run(ctx)
	switch {
	case err == nil, errors.Is(err, pipeline.ErrTaskCancelled), errors.Is(err, context.Canceled):
		log.Infof("tutor pipeline finished after %d messages", llmCtx.Len())
		return nil
	default:
		return err
	}
}

func (b *Bot) newTask(tr transport.Transport, llmCtx *pipeline.LLMContext, log *Logger.Logger) *pipeline.Task {
	var detector vad.VAD
	if b.deps.NewVAD != nil {
		detector = b.deps.NewVAD()
	} else {
		detector = vad.NewEnergyVAD(vad.Config{SampleRate: b.cfg.STT.SampleRate})
	}

	llm := assistant.NewLLMService(b.deps.LLM, b.cfg.LLMTimeout)
	synth := tts.NewTTSService(b.deps.Synthesizer, b.cfg.TTS)
	user, reply := aggregators.NewPair(llmCtx, aggregators.WithReplyStages(llm.Name(), tr.Output().Name()))

	p := pipeline.NewPipeline(
		tr.Input(),
		stt.NewSTTService(b.deps.Transcriber, detector, b.cfg.STT),
		user,
		NewStatusInferer(tr.Output().Name(), b.deps.Metrics),
		llm,
		synth,
		tr.Output(),
		reply,
	)
	return pipeline.NewTask(p,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(b.deps.Metrics),
		pipeline.WithParams(pipeline.TaskParams{AllowInterruptions: true, EnableMetrics: true}),
	)
}
