// Package provider implements the backend adapters and the content generator
// facade in front of them. Two backend families exist: the Gemini API with
// true incremental streaming, and OpenAI-compatible chat-completions
// backends (DeepSeek, OpenAI) that buffer the whole response and report it
// as a single-chunk stream. The variant is resolved once, at construction,
// by the New factory; callers never probe an adapter for extra methods.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/internal/message"
)

// EventKind tags a StreamEvent.
type EventKind int

const (
	// EventContent carries an incremental text chunk.
	EventContent EventKind = iota
	// EventError terminates the stream with a failure.
	EventError
	// EventDone terminates the stream successfully.
	EventDone
)

// StreamEvent is one unit of a response stream. Streams are lazy, finite,
// ordered, and not restartable; every stream ends with exactly one EventDone
// or EventError, after which the channel is closed. Consumers must drain the
// channel or cancel the request context.
type StreamEvent struct {
	Kind EventKind

	// Text is the incremental chunk for EventContent. On EventDone it is
	// the complete response text.
	Text string

	// Usage is populated on EventDone; all-zero when the backend does not
	// report token counts.
	Usage message.Usage

	// Err is set on EventError.
	Err error
}

// Config identifies a backend and its credential. Constructed once per
// session start or reset; the system prompt lives in RequestConfig instead
// so runtime updates take effect on the next turn.
type Config struct {
	// Provider selects the adapter: "gemini", "deepseek", or "openai".
	Provider string

	// APIKey is the credential, sourced from config or environment at
	// construction time.
	APIKey string

	// KeySource describes where APIKey came from, for auth diagnostics.
	// Empty when no key was found anywhere.
	KeySource string

	// BaseURL overrides the backend endpoint; used by tests.
	BaseURL string
}

// RequestConfig is threaded through every generate call. The system prompt
// is deliberately a per-call parameter, not adapter state, so that a prompt
// replaced mid-session applies to the next turn without rebuilding the
// adapter.
type RequestConfig struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	TopP         float64
	MaxTokens    int
}

// ContentGenerator is the uniform facade over whichever backend is
// configured.
type ContentGenerator interface {
	// Generate performs one buffered request and returns the completed
	// model turn with usage attached.
	Generate(ctx context.Context, history []message.Turn, req RequestConfig) (message.Turn, error)

	// GenerateStream performs one request and yields its response as an
	// event stream. Backends without native streaming emit a single
	// content event followed by done, indistinguishable from a one-chunk
	// native stream.
	GenerateStream(ctx context.Context, history []message.Turn, req RequestConfig) (<-chan StreamEvent, error)

	// CountTokens reports the prompt size of the history. Backends without
	// a native counter return a best-effort estimate; callers must not
	// treat the result as exact.
	CountTokens(ctx context.Context, history []message.Turn, req RequestConfig) (int, error)

	// EmbedContent produces an embedding vector for the given text, or
	// ErrUnsupported for backends without embeddings.
	EmbedContent(ctx context.Context, text string) ([]float64, error)
}

// New constructs the adapter for the configured provider id. Unknown ids
// fail with ErrUnsupportedProvider; that failure is fatal to session start.
func New(cfg Config) (ContentGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		return NewGemini(cfg), nil
	case "deepseek":
		return NewChatCompat(cfg, deepSeekBaseURL), nil
	case "openai":
		return NewChatCompat(cfg, openAIBaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// validateHistory enforces the shared input constraint: at least one user
// turn with non-empty text after flattening.
func validateHistory(history []message.Turn) error {
	for _, t := range history {
		if t.Role == message.RoleUser && !t.IsEmpty() {
			return nil
		}
	}
	return ErrEmptyRequest
}

// estimateTokens is the documented best-effort fallback for backends
// without a native token counter: roughly four characters per token.
func estimateTokens(history []message.Turn, systemPrompt string) int {
	total := len(systemPrompt)
	for _, t := range history {
		total += len(t.Text())
	}
	return (total + 3) / 4
}
