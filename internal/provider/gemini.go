package provider

import (
	"bufio"
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

const (
	geminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiTimeout = 2 * time.Minute

	// geminiEmbedModel is the fixed embedding model; generation models do
	// not serve the embedContent endpoint.
	geminiEmbedModel = "text-embedding-004"
)

// Gemini implements ContentGenerator for the Gemini API, the one backend
// family with true incremental streaming. It also has native token counting
// and embeddings.
type Gemini struct {
	cfg     Config
	baseURL string
	client  *http.Client

	// streamClient has no timeout; streaming lifetime is governed by the
	// request context.
	streamClient *http.Client
}

// Gemini wire types.
type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *geminiAPIError `json:"error,omitempty"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiCountResponse struct {
	TotalTokens int `json:"totalTokens"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// NewGemini creates a Gemini adapter.
func NewGemini(cfg Config) *Gemini {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &Gemini{
		cfg:          cfg,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: defaultGeminiTimeout},
		streamClient: &http.Client{},
	}
}

// convertTurns translates canonical history to Gemini contents. The system
// prompt travels in the dedicated systemInstruction field, rebuilt from the
// current request config on every call; system turns inside the history are
// folded into user turns because the contents list only accepts user/model.
func (g *Gemini) convertTurns(history []message.Turn) []geminiContent {
	contents := make([]geminiContent, 0, len(history))
	for _, t := range history {
		stripped := message.StripEmptyParts(t)
		if len(stripped.Parts) == 0 {
			continue
		}
		role := "user"
		if t.Role == message.RoleModel {
			role = "model"
		}
		parts := make([]geminiPart, len(stripped.Parts))
		for i, p := range stripped.Parts {
			parts[i] = geminiPart{Text: p.Text}
		}
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}
	return contents
}

func (g *Gemini) buildRequest(history []message.Turn, req RequestConfig) geminiRequest {
	body := geminiRequest{Contents: g.convertTurns(history)}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	if req.Temperature != 0 || req.TopP != 0 || req.MaxTokens != 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	return body
}

func (g *Gemini) newRequest(ctx context.Context, url string, body any) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.cfg.APIKey)
	return httpReq, nil
}

// Generate performs one buffered generateContent call.
func (g *Gemini) Generate(ctx context.Context, history []message.Turn, req RequestConfig) (message.Turn, error) {
	if err := validateHistory(history); err != nil {
		return message.Turn{}, err
	}
	if g.cfg.APIKey == "" {
		return message.Turn{}, &AuthError{Source: g.cfg.KeySource}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, req.Model)
	httpReq, err := g.newRequest(ctx, url, g.buildRequest(history, req))
	if err != nil {
		return message.Turn{}, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return message.Turn{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return message.Turn{}, &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return message.Turn{}, g.classifyStatus(resp.StatusCode, body)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return message.Turn{}, &BackendError{Status: resp.StatusCode, Message: "unparseable response body"}
	}
	if genResp.Error != nil {
		return message.Turn{}, &BackendError{Status: resp.StatusCode, Message: genResp.Error.Message}
	}
	if len(genResp.Candidates) == 0 {
		return message.Turn{}, &BackendError{Status: resp.StatusCode, Message: "no candidates returned"}
	}

	var text strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	turn := message.NewModelTurn(text.String())
	turn.Usage = genResp.usage()
	return turn, nil
}

// usage extracts token accounting; all-zero when the backend omitted it.
func (r *geminiResponse) usage() message.Usage {
	if r.UsageMetadata == nil {
		return message.Usage{}
	}
	return message.Usage{
		PromptTokens:    r.UsageMetadata.PromptTokenCount,
		CandidateTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:     r.UsageMetadata.TotalTokenCount,
	}
}

// GenerateStream performs a streamGenerateContent call and yields one
// content event per server-sent chunk as it arrives. Cancelling the context
// aborts the network call; the stream still ends with a terminal event so
// drain loops always finish.
func (g *Gemini) GenerateStream(ctx context.Context, history []message.Turn, req RequestConfig) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 1)

	if err := validateHistory(history); err != nil {
		events <- StreamEvent{Kind: EventError, Err: err}
		close(events)
		return events, nil
	}
	if g.cfg.APIKey == "" {
		events <- StreamEvent{Kind: EventError, Err: &AuthError{Source: g.cfg.KeySource}}
		close(events)
		return events, nil
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.baseURL, req.Model)
	httpReq, err := g.newRequest(ctx, url, g.buildRequest(history, req))
	if err != nil {
		return nil, err
	}

	resp, err := g.streamClient.Do(httpReq)
	if err != nil {
		events <- StreamEvent{Kind: EventError, Err: &TransportError{Err: err}}
		close(events)
		return events, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		events <- StreamEvent{Kind: EventError, Err: g.classifyStatus(resp.StatusCode, body)}
		close(events)
		return events, nil
	}

	go func() {
		defer close(events)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		var fullContent strings.Builder
		var usage message.Usage

		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					break
				}
				// Includes the context-cancelled read: the terminal
				// error event keeps the consumer's drain loop finite.
				events <- StreamEvent{Kind: EventError, Err: &TransportError{Err: err}}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue // skip malformed chunks
			}
			if chunk.UsageMetadata != nil {
				usage = chunk.usage()
			}
			if len(chunk.Candidates) == 0 {
				continue
			}

			for _, p := range chunk.Candidates[0].Content.Parts {
				if p.Text == "" {
					continue
				}
				fullContent.WriteString(p.Text)
				select {
				case events <- StreamEvent{Kind: EventContent, Text: p.Text}:
				case <-ctx.Done():
					events <- StreamEvent{Kind: EventError, Err: &TransportError{Err: ctx.Err()}}
					return
				}
			}
		}

		events <- StreamEvent{Kind: EventDone, Text: fullContent.String(), Usage: usage}
	}()

	return events, nil
}

// CountTokens uses the native countTokens endpoint.
func (g *Gemini) CountTokens(ctx context.Context, history []message.Turn, req RequestConfig) (int, error) {
	if g.cfg.APIKey == "" {
		return 0, &AuthError{Source: g.cfg.KeySource}
	}

	url := fmt.Sprintf("%s/models/%s:countTokens", g.baseURL, req.Model)
	body := geminiRequest{Contents: g.convertTurns(history)}
	httpReq, err := g.newRequest(ctx, url, body)
	if err != nil {
		return 0, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return 0, g.classifyStatus(resp.StatusCode, respBody)
	}

	var countResp geminiCountResponse
	if err := json.Unmarshal(respBody, &countResp); err != nil {
		return 0, &BackendError{Status: resp.StatusCode, Message: "unparseable response body"}
	}
	return countResp.TotalTokens, nil
}

// EmbedContent uses the native embedContent endpoint with the fixed
// embedding model.
func (g *Gemini) EmbedContent(ctx context.Context, text string) ([]float64, error) {
	if g.cfg.APIKey == "" {
		return nil, &AuthError{Source: g.cfg.KeySource}
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", g.baseURL, geminiEmbedModel)
	body := map[string]any{
		"model":   "models/" + geminiEmbedModel,
		"content": geminiContent{Parts: []geminiPart{{Text: text}}},
	}
	httpReq, err := g.newRequest(ctx, url, body)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, g.classifyStatus(resp.StatusCode, respBody)
	}

	var embedResp geminiEmbedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, &BackendError{Status: resp.StatusCode, Message: "unparseable response body"}
	}
	return embedResp.Embedding.Values, nil
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func (g *Gemini) classifyStatus(status int, body []byte) error {
	var parsed struct {
		Error *geminiAPIError `json:"error"`
	}
	reason := ""
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		reason = parsed.Error.Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthError{Status: status, Source: g.cfg.KeySource, Reason: reason}
	}

	if reason == "" {
		reason = strings.TrimSpace(string(body))
	}
	return &BackendError{Status: status, Message: reason}
}

var _ ContentGenerator = (*Gemini)(nil)
