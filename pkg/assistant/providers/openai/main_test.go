package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

func chunk(content string) string {
	return `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":"` + content + `"},"finish_reason":null}]}` + "\n\n"
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New("test-key", assistant.GenerationConfig{Model: "gpt-test", MaxTokens: 100, Temperature: 0.7},
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStreamDeltas(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Expected chat completions path, got %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, chunk("The Mauryan ")+chunk("")+chunk("empire.")+"data: [DONE]\n\n")
	})

	msgs := []pipeline.Message{
		{Role: pipeline.RoleSystem, Content: "tutor"},
		{Role: pipeline.RoleUser, Content: "Who was Ashoka?"},
		{Role: pipeline.RoleAssistant, Content: "A Mauryan emperor."},
	}
	var got []string
	if err := p.Stream(context.Background(), msgs, func(d string) error {
		got = append(got, d)
		return nil
	}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Join(got, "") != "The Mauryan empire." || len(got) != 2 {
		t.Errorf("Expected two non-empty deltas, got %q", got)
	}
	if req.Model != "gpt-test" || !req.Stream {
		t.Errorf("Expected streaming request for gpt-test, got %+v", req)
	}
	roles := []string{"system", "user", "assistant"}
	for i, m := range req.Messages {
		if m.Role != roles[i] {
			t.Errorf("Expected role %s at %d, got %s", roles[i], i, m.Role)
		}
	}
}

func TestStreamCallbackErrorStops(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, chunk("one")+chunk("two")+"data: [DONE]\n\n")
	})
	stop := errors.New("interrupted")
	calls := 0
	err := p.Stream(context.Background(), []pipeline.Message{{Role: pipeline.RoleUser, Content: "hi"}}, func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 callback, got %d", calls)
	}
}
