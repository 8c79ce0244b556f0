package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parley-ai/parley/internal/message"
)

func geminiServer(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGemini(Config{
		Provider:  "gemini",
		APIKey:    "test-key",
		KeySource: "environment variable GEMINI_API_KEY",
		BaseURL:   server.URL,
	})
}

func TestGeminiGenerate(t *testing.T) {
	var gotKey string
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "hello "}, {"text": "there"}]}}],
			"usageMetadata": {"promptTokenCount": 6, "candidatesTokenCount": 2, "totalTokenCount": 8}
		}`))
	})

	history := []message.Turn{message.NewUserTurn("hi")}
	turn, err := adapter.Generate(context.Background(), history, RequestConfig{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("x-goog-api-key = %q, want the configured key", gotKey)
	}
	if turn.Text() != "hello there" {
		t.Errorf("text = %q, want concatenated parts", turn.Text())
	}
	if turn.Usage.TotalTokens != 8 {
		t.Errorf("usage = %+v, want total 8", turn.Usage)
	}
}

func TestGeminiSystemInstruction(t *testing.T) {
	var gotReq geminiRequest
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`))
	})

	history := []message.Turn{message.NewUserTurn("hi")}
	req := RequestConfig{Model: "gemini-2.0-flash", SystemPrompt: "answer in haiku"}
	if _, err := adapter.Generate(context.Background(), history, req); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if gotReq.SystemInstruction == nil {
		t.Fatal("systemInstruction missing from request")
	}
	if gotReq.SystemInstruction.Parts[0].Text != "answer in haiku" {
		t.Errorf("systemInstruction = %+v, want the configured prompt", gotReq.SystemInstruction)
	}
}

func TestGeminiStream(t *testing.T) {
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\": [{\"content\": {\"parts\": [{\"text\": \"chunk one \"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\": [{\"content\": {\"parts\": [{\"text\": \"chunk two\"}]}}], \"usageMetadata\": {\"promptTokenCount\": 4, \"candidatesTokenCount\": 6, \"totalTokenCount\": 10}}\n\n")
	})

	history := []message.Turn{message.NewUserTurn("hi")}
	events, err := adapter.GenerateStream(context.Background(), history, RequestConfig{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("GenerateStream() error: %v", err)
	}

	var got []StreamEvent
	for ev := range events {
		got = append(got, ev)
	}

	if len(got) != 3 {
		t.Fatalf("got %d events, want two content chunks + done", len(got))
	}
	if got[0].Text != "chunk one " || got[1].Text != "chunk two" {
		t.Errorf("chunks = %q, %q", got[0].Text, got[1].Text)
	}
	done := got[2]
	if done.Kind != EventDone {
		t.Fatalf("last event kind = %v, want done", done.Kind)
	}
	if done.Text != "chunk one chunk two" {
		t.Errorf("done text = %q, want the full accumulated response", done.Text)
	}
	if done.Usage.TotalTokens != 10 {
		t.Errorf("done usage = %+v, want total 10", done.Usage)
	}
}

func TestGeminiStreamCancellationTerminates(t *testing.T) {
	release := make(chan struct{})
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"candidates\": [{\"content\": {\"parts\": [{\"text\": \"first\"}]}}]}\n\n")
		w.(http.Flusher).Flush()
		<-release // hold the connection open until the test cancels
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	history := []message.Turn{message.NewUserTurn("hi")}
	events, err := adapter.GenerateStream(ctx, history, RequestConfig{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("GenerateStream() error: %v", err)
	}

	if ev := <-events; ev.Kind != EventContent || ev.Text != "first" {
		t.Fatalf("first event = %+v, want the first chunk", ev)
	}
	cancel()

	// The stream must still end with a terminal event and a closed channel.
	var last StreamEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if last.Kind != EventError {
					t.Fatalf("terminal event = %+v, want an error after cancellation", last)
				}
				if !errors.Is(last.Err, context.Canceled) {
					t.Errorf("terminal error = %v, want to unwrap to context.Canceled", last.Err)
				}
				return
			}
			last = ev
		case <-deadline:
			t.Fatal("stream did not terminate after cancellation")
		}
	}
}

func TestGeminiStreamAuthError(t *testing.T) {
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"code": 401, "message": "API key not valid", "status": "UNAUTHENTICATED"}}`))
	})

	history := []message.Turn{message.NewUserTurn("hi")}
	events, err := adapter.GenerateStream(context.Background(), history, RequestConfig{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("GenerateStream() error: %v", err)
	}

	var got []StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Kind != EventError {
		t.Fatalf("events = %+v, want a single error event", got)
	}

	var authErr *AuthError
	if !errors.As(got[0].Err, &authErr) {
		t.Fatalf("stream error = %v, want *AuthError", got[0].Err)
	}
	if !strings.Contains(authErr.Error(), "GEMINI_API_KEY") {
		t.Errorf("auth error %q should name the key source", authErr.Error())
	}
	if strings.Contains(authErr.Error(), "test-key") {
		t.Errorf("auth error %q must not leak the secret", authErr.Error())
	}
}

func TestGeminiCountTokens(t *testing.T) {
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":countTokens") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"totalTokens": 42}`))
	})

	history := []message.Turn{message.NewUserTurn("hi")}
	count, err := adapter.CountTokens(context.Background(), history, RequestConfig{Model: "gemini-2.0-flash"})
	if err != nil {
		t.Fatalf("CountTokens() error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}

func TestGeminiEmbedContent(t *testing.T) {
	adapter := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "text-embedding-004") {
			t.Errorf("path %q should target the embedding model", r.URL.Path)
		}
		w.Write([]byte(`{"embedding": {"values": [0.1, 0.2, 0.3]}}`))
	})

	vec, err := adapter.EmbedContent(context.Background(), "some text")
	if err != nil {
		t.Fatalf("EmbedContent() error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("embedding = %v, want the three returned values", vec)
	}
}

func TestGeminiRoleMapping(t *testing.T) {
	adapter := NewGemini(Config{APIKey: "k"})
	history := []message.Turn{
		message.NewUserTurn("question"),
		message.NewModelTurn("answer"),
		message.NewUserTurn("followup"),
	}

	contents := adapter.convertTurns(history)
	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" || contents[2].Role != "user" {
		t.Errorf("roles = %q %q %q", contents[0].Role, contents[1].Role, contents[2].Role)
	}
}
