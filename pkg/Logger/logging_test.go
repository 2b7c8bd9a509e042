package Logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithAndNamedKeepContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := &Logger{zap.New(core).Sugar()}

	base.Named("sessions").With("session_id", "abc").Infof("session %s", "started")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "sessions" {
		t.Errorf("Expected logger name sessions, got %q", e.LoggerName)
	}
	if e.Message != "session started" {
		t.Errorf("Expected message 'session started', got %q", e.Message)
	}
	if got := e.ContextMap()["session_id"]; got != "abc" {
		t.Errorf("Expected session_id abc, got %v", got)
	}
}

func TestNewAndNop(t *testing.T) {
	for _, debug := range []bool{true, false} {
		if New(debug) == nil {
			t.Errorf("Expected a logger for debug=%v", debug)
		}
	}
	// must not panic
	Nop().With("k", "v").Named("x").Info("discarded")
}
