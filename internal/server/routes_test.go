package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/handlers"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>tutor</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("// tutor client"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Settings{}
	cfg.Server.StaticDir = dir
	cfg.Sarvam.STT.SampleRate = 16000

	bot := session.BotFunc(func(ctx context.Context, tr transport.Transport, log *Logger.Logger) error {
		<-ctx.Done()
		return nil
	})
	m := metrics.New("")
	sessions := session.NewManager(bot, 2, m, nil)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	noPeer := func() (handlers.Peer, error) { return nil, io.ErrUnexpectedEOF }
	r := gin.New()
	InitializeRoutes(cfg, r, NewServerDependencies(sessions, noPeer, m, Logger.Nop(), cfg))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/", http.StatusOK, "tutor"},
		{"/static/app.js", http.StatusOK, "tutor client"},
		{"/health", http.StatusOK, `"status":"ok"`},
		{"/api/sessions", http.StatusOK, `"max_sessions":2`},
		{"/metrics", http.StatusOK, "xtutor_sessions_active"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(r, tt.path)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestOfferRouteReportsPeerFailure(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/offer", strings.NewReader(`{"sdp":"v=0","type":"offer"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), io.ErrUnexpectedEOF.Error()) {
		t.Errorf("Expected the failure message, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/offer", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS headers")
	}
}
