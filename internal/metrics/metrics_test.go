package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	m := New("")
	m.RecordOffer("ok")
	m.RecordSessionStart()
	m.RecordSessionEnd("webrtc", "completed", 3*time.Second)
	m.RecordSessionRejected("webrtc", "rejected")
	m.ObserveTTFB("llm", 250*time.Millisecond)
	m.RecordStatus("speaking")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`xtutor_offers_total{result="ok"} 1`,
		`xtutor_sessions_active 0`,
		`xtutor_sessions_total{result="completed",transport="webrtc"} 1`,
		`xtutor_sessions_total{result="rejected",transport="webrtc"} 1`,
		`xtutor_status_emissions_total{status="speaking"} 1`,
		`xtutor_stage_ttfb_seconds_count{stage="llm"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordOffer("ok")
	m.RecordSessionStart()
	m.RecordSessionEnd("ws", "completed", time.Second)
	m.RecordSessionRejected("ws", "rejected")
	m.ObserveTTFB("tts", time.Second)
	m.ObserveError("tts")
	m.RecordStatus("listening")
}
