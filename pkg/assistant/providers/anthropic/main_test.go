package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	"github.com/xpanvictor/xtutor/pkg/pipeline"
)

const streamBody = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-test","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":0}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Namaste! "}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Shall we begin?"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":6}}

event: message_stop
data: {"type":"message_stop"}

`

type capturedRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Stream    bool   `json:"stream"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := New("test-key", assistant.GenerationConfig{Model: "claude-test", Temperature: 0.7},
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStreamDeltas(t *testing.T) {
	var got capturedRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("X-Api-Key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, streamBody)
	})

	msgs := []pipeline.Message{
		{Role: pipeline.RoleSystem, Content: "You are a tutor."},
		{Role: pipeline.RoleSystem, Content: "Greet the student."},
		{Role: pipeline.RoleAssistant, Content: "Hello"},
		{Role: pipeline.RoleUser, Content: "Hi"},
	}
	var sb strings.Builder
	err := p.Stream(context.Background(), msgs, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sb.String() != "Namaste! Shall we begin?" {
		t.Errorf("Expected joined deltas, got %q", sb.String())
	}

	if got.Model != "claude-test" || !got.Stream {
		t.Errorf("Expected a streaming request for claude-test, got %+v", got)
	}
	if got.MaxTokens != defaultMaxTokens {
		t.Errorf("Expected max_tokens %d, got %d", defaultMaxTokens, got.MaxTokens)
	}
	if len(got.System) != 1 || got.System[0].Text != "You are a tutor." {
		t.Errorf("Expected the leading system message as system prompt, got %+v", got.System)
	}
	wantRoles := []string{"user", "assistant", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("Expected %d messages, got %d", len(wantRoles), len(got.Messages))
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("Expected message %d role %s, got %s", i, role, got.Messages[i].Role)
		}
	}
	if got.Messages[0].Content[0].Text != "Greet the student." {
		t.Errorf("Expected greeting as first user turn, got %q", got.Messages[0].Content[0].Text)
	}
}

func TestStreamHTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	})
	err := p.Stream(context.Background(), []pipeline.Message{{Role: pipeline.RoleUser, Content: "Hi"}}, func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "anthropic stream failed") {
		t.Errorf("Expected wrapped stream error, got %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New("", assistant.GenerationConfig{}); err == nil {
		t.Error("Expected an error without an api key")
	}
}
