package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	pionwebrtc "github.com/pion/webrtc/v4"
	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/internal/constants/prompts"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/domains/tutor"
	"github.com/xpanvictor/xtutor/internal/handlers"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/internal/server"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	sttsarvam "github.com/xpanvictor/xtutor/pkg/io/stt/sarvam"
	"github.com/xpanvictor/xtutor/pkg/io/stt/vad"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
	ttssarvam "github.com/xpanvictor/xtutor/pkg/io/tts/sarvam"
	"github.com/xpanvictor/xtutor/pkg/io/transport/webrtc"
)

// App represents the application with all its dependencies
type App struct {
	Config   *config.Settings
	Logger   *Logger.Logger
	Metrics  *metrics.Metrics
	LLM      assistant.Provider
	Bot      *tutor.Bot
	Sessions *session.Manager
	WebRTC   *pionwebrtc.API

	ServerDeps server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(ctx context.Context, cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New("xtutor"),
	}
	if err := a.setupDependencies(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) setupDependencies(ctx context.Context) error {
	prompt, err := prompts.TUTOR_PROMPT.Select(a.Config.Tutor.PromptVersion)
	if err != nil {
		return err
	}
	a.Logger.Infof("using tutor prompt v%.1f", prompt.Version)

	if a.Config.Sarvam.APIKey == "" {
		a.Logger.Warn("SARVAM_API_KEY is not set, speech requests will be rejected")
	}

	// 1. vendor clients, shared by every session
	a.LLM, err = NewLLMProvider(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	sarvam := a.Config.Sarvam
	transcriber := sttsarvam.NewSarvamClient(sttsarvam.Options{
		BaseURL:      sarvam.BaseURL,
		APIKey:       sarvam.APIKey,
		Model:        sarvam.STT.Model,
		LanguageCode: sarvam.STT.LanguageCode,
		Timeout:      sarvam.STT.Timeout,
	}, a.Logger.Named("sarvam-stt"))
	synth := &ttssarvam.Sarvam{
		BaseURL:      sarvam.BaseURL,
		APIKey:       sarvam.APIKey,
		Model:        sarvam.TTS.Model,
		Speaker:      sarvam.TTS.Speaker,
		LanguageCode: sarvam.TTS.LanguageCode,
		Pace:         sarvam.TTS.Pace,
		SampleRate:   sarvam.TTS.SampleRate,
		Timeout:      sarvam.TTS.Timeout,
	}

	// 2. the per session bot
	vadCfg := a.Config.VAD
	sttRate := sarvam.STT.SampleRate
	a.Bot = tutor.NewBot(tutor.BotConfig{
		Prompt:   prompt,
		Greeting: a.Config.Tutor.Greeting,
		STT: stt.ServiceConfig{
			SampleRate:   sttRate,
			StartSecs:    vadCfg.StartSecs,
			StopSecs:     vadCfg.StopSecs,
			MaxUtterance: vadCfg.MaxUtterance,
		},
		TTS: tts.ServiceConfig{MaxChars: sarvam.TTS.MaxChars},
	}, tutor.Deps{
		Transcriber: transcriber,
		NewVAD: func() vad.VAD {
			return vad.NewEnergyVAD(vad.Config{SampleRate: sttRate, Threshold: vadCfg.Threshold})
		},
		LLM:         a.LLM,
		Synthesizer: synth,
		Metrics:     a.Metrics,
	})

	// 3. sessions and transports
	a.Sessions = session.NewManager(a.Bot, a.Config.Sessions.MaxConcurrent, a.Metrics, a.Logger.Named("sessions"))
	a.WebRTC, err = webrtc.NewAPI()
	if err != nil {
		return err
	}

	a.ServerDeps = server.NewServerDependencies(a.Sessions, a.newPeer, a.Metrics, a.Logger, a.Config)
	return nil
}

func (a *App) newPeer() (handlers.Peer, error) {
	peer, err := webrtc.New(a.WebRTC, webrtc.Params{InputSampleRate: a.Config.Sarvam.STT.SampleRate}, a.Logger.Named("webrtc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create webrtc connection: %w", err)
	}
	return peer, nil
}

// Router builds the http handler.
func (a *App) Router() *gin.Engine {
	if !a.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	server.InitializeRoutes(a.Config, r, a.ServerDeps)
	return r
}

// Shutdown ends every live session.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Sessions.Shutdown(ctx)
}
