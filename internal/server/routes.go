package server

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/handlers"
	wshandler "github.com/xpanvictor/xtutor/internal/handlers/websocket"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	wstransport "github.com/xpanvictor/xtutor/pkg/io/transport/websocket"
)

type Dependencies struct {
	Sessions *session.Manager
	NewPeer  handlers.PeerFactory
	Metrics  *metrics.Metrics
	Logger   *Logger.Logger
	Configs  *config.Settings
}

func NewServerDependencies(
	sessions *session.Manager,
	newPeer handlers.PeerFactory,
	m *metrics.Metrics,
	logger *Logger.Logger,
	config *config.Settings,
) Dependencies {
	return Dependencies{
		Sessions: sessions,
		NewPeer:  newPeer,
		Metrics:  m,
		Logger:   logger,
		Configs:  config,
	}
}

func InitializeRoutes(cfg *config.Settings, r *gin.Engine, dep Dependencies) {
	r.Use(
		handlers.ErrorHandlerMiddleware(dep.Logger),
		handlers.RequestLoggerMiddleware(dep.Logger),
		handlers.CORSMiddleware(),
	)

	// browser client
	staticDir := cfg.Server.StaticDir
	r.GET("/", func(ctx *gin.Context) { ctx.File(filepath.Join(staticDir, "index.html")) })
	r.Static("/static", staticDir)

	handlers.NewOfferHandler(dep.Logger.Named("offer"), dep.Sessions, dep.NewPeer, dep.Metrics, cfg.Server.NegotiateTimeout).
		RegisterRoutes(r)
	wshandler.NewWebSocketHandler(dep.Logger.Named("ws"), dep.Sessions, wstransport.Params{
		InputSampleRate: cfg.Sarvam.STT.SampleRate,
	}).RegisterRoutes(r)
	handlers.NewSessionHandler(dep.Sessions).RegisterRoutes(r)

	if dep.Metrics != nil {
		r.GET("/metrics", gin.WrapH(dep.Metrics.Handler()))
	} else {
		r.GET("/metrics", func(ctx *gin.Context) { ctx.Status(http.StatusNotFound) })
	}
}
