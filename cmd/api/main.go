package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/xpanvictor/xtutor/internal/app"
	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

// This is the main entry point for the tutor server.
// Loads config, wires the vendors and serves the browser client
func main() {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// load logger
	logger := Logger.New(cfg.Debug)
	defer logger.Sync()
	logger.Infof("Logger initialized (env=%s)", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	// listen with graceful exit
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: application.Router(),
	}
	go func() {
		logger.Infof("Starting server at http://localhost%s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server exiting: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Sessions did not stop cleanly: %v", err)
	}
	logger.Info("Shutdown system")
	os.Exit(0)
}
