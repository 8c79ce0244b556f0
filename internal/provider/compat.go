package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parley-ai/parley/internal/message"
)

// Endpoint defaults for the chat-completions family.
const (
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	openAIBaseURL   = "https://api.openai.com/v1"

	defaultCompatTimeout = 2 * time.Minute

	// maxResponseSize caps the response body read to keep a misbehaving
	// backend from exhausting memory.
	maxResponseSize = 10 * 1024 * 1024
)

// ChatCompat implements ContentGenerator for OpenAI-compatible
// chat-completions backends (DeepSeek, OpenAI). These backends answer with
// one buffered response; GenerateStream performs the full call internally
// and reports it as a single content event followed by done.
type ChatCompat struct {
	cfg     Config
	baseURL string
	client  *http.Client
}

// Chat-completions wire types.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *chatError `json:"error,omitempty"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewChatCompat creates an adapter for an OpenAI-compatible backend.
func NewChatCompat(cfg Config, defaultBaseURL string) *ChatCompat {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ChatCompat{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultCompatTimeout},
	}
}

// convertTurns translates canonical history to the wire format. The system
// prompt goes first as a leading system message, rebuilt from the current
// request config on every call. Blank turns are dropped because these
// backends reject empty content.
func (c *ChatCompat) convertTurns(history []message.Turn, req RequestConfig) []chatMessage {
	result := make([]chatMessage, 0, len(history)+1)
	if req.SystemPrompt != "" {
		result = append(result, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, t := range history {
		text := message.StripEmptyParts(t).Text()
		if text == "" {
			continue
		}
		role := "user"
		switch t.Role {
		case message.RoleModel:
			role = "assistant"
		case message.RoleSystem:
			role = "system"
		}
		result = append(result, chatMessage{Role: role, Content: text})
	}
	return result
}

// Generate performs one buffered chat-completions call.
func (c *ChatCompat) Generate(ctx context.Context, history []message.Turn, req RequestConfig) (message.Turn, error) {
	if err := validateHistory(history); err != nil {
		return message.Turn{}, err
	}
	if c.cfg.APIKey == "" {
		return message.Turn{}, &AuthError{Source: c.cfg.KeySource}
	}

	reqBody := chatRequest{
		Model:       req.Model,
		Messages:    c.convertTurns(history, req),
		Stream:      false,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return message.Turn{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return message.Turn{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return message.Turn{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return message.Turn{}, &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return message.Turn{}, c.classifyStatus(resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return message.Turn{}, &BackendError{Status: resp.StatusCode, Message: "unparseable response body"}
	}

	if chatResp.Error != nil {
		return message.Turn{}, &BackendError{Status: resp.StatusCode, Message: chatResp.Error.Message}
	}

	if len(chatResp.Choices) == 0 {
		return message.Turn{}, &BackendError{Status: resp.StatusCode, Message: "no response choices returned"}
	}

	turn := message.NewModelTurn(chatResp.Choices[0].Message.Content)
	turn.Usage = message.Usage{
		PromptTokens:    chatResp.Usage.PromptTokens,
		CandidateTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:     chatResp.Usage.TotalTokens,
	}
	return turn, nil
}

// GenerateStream buffers the full response and reports it as a one-chunk
// stream: a single content event with the whole text, then done. The event
// shapes match a native stream exactly, so consumers cannot tell the
// difference.
func (c *ChatCompat) GenerateStream(ctx context.Context, history []message.Turn, req RequestConfig) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 1)

	go func() {
		defer close(events)

		turn, err := c.Generate(ctx, history, req)
		if err != nil {
			events <- StreamEvent{Kind: EventError, Err: err}
			return
		}

		text := turn.Text()
		select {
		case events <- StreamEvent{Kind: EventContent, Text: text}:
		case <-ctx.Done():
			events <- StreamEvent{Kind: EventError, Err: &TransportError{Err: ctx.Err()}}
			return
		}
		events <- StreamEvent{Kind: EventDone, Text: text, Usage: turn.Usage}
	}()

	return events, nil
}

// CountTokens returns a best-effort estimate; chat-completions backends
// expose no counting endpoint. Callers must not treat the result as exact.
func (c *ChatCompat) CountTokens(ctx context.Context, history []message.Turn, req RequestConfig) (int, error) {
	return estimateTokens(history, req.SystemPrompt), nil
}

// EmbedContent is not available on this backend family.
func (c *ChatCompat) EmbedContent(ctx context.Context, text string) ([]float64, error) {
	return nil, fmt.Errorf("%w: embeddings", ErrUnsupported)
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func (c *ChatCompat) classifyStatus(status int, body []byte) error {
	var parsed struct {
		Error *chatError `json:"error"`
	}
	reason := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		reason = parsed.Error.Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthError{Status: status, Source: c.cfg.KeySource, Reason: reason}
	}

	if reason == "" {
		reason = strings.TrimSpace(string(body))
	}
	return &BackendError{Status: status, Message: reason}
}

var _ ContentGenerator = (*ChatCompat)(nil)
