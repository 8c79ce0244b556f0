// Package chat owns the conversation session: ordered history, the turn
// budget, and the rule that a failed request never changes what the model
// will see next time.
package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/internal/message"
	"github.com/parley-ai/parley/internal/provider"
)

// ErrTurnBudgetExceeded indicates the session reached its configured turn
// limit; the triggering message was not sent and history is unchanged.
var ErrTurnBudgetExceeded = errors.New("session turn budget exceeded")

// DefaultMaxTurns bounds how many model turns a single session may take.
const DefaultMaxTurns = 100

// Session is a stateful conversation against one configured backend.
// History is append-only and commits only when a request fully succeeds:
// callers observing the history mid-request never see a half-finished turn.
type Session struct {
	mu       sync.Mutex
	id       string
	gen      provider.ContentGenerator
	history  []message.Turn
	req      provider.RequestConfig
	maxTurns int

	// modelTurns counts committed model responses against the budget.
	modelTurns int
}

// Option configures a new session.
type Option func(*Session)

// WithMaxTurns overrides the default turn budget. Zero or negative means
// unlimited.
func WithMaxTurns(n int) Option {
	return func(s *Session) { s.maxTurns = n }
}

// WithHistory seeds the session with prior turns, e.g. when resuming a
// saved transcript. The slice is copied.
func WithHistory(history []message.Turn) Option {
	return func(s *Session) { s.history = message.CloneHistory(history) }
}

// NewSession creates a session over the given generator.
func NewSession(gen provider.ContentGenerator, req provider.RequestConfig, opts ...Option) *Session {
	s := &Session{
		id:       uuid.New().String(),
		gen:      gen,
		req:      req,
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the stable session identifier.
func (s *Session) ID() string {
	return s.id
}

// History returns a deep copy of the committed history. Mutating the
// returned slice has no effect on the session.
func (s *Session) History() []message.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return message.CloneHistory(s.history)
}

// SetSystemPrompt replaces the system prompt. It takes effect on the next
// request; in-flight requests keep the prompt they started with.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req.SystemPrompt = prompt
}

// SetModel switches the model for subsequent requests.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req.Model = model
}

// RequestConfig returns the config subsequent requests will use.
func (s *Session) RequestConfig() provider.RequestConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

// snapshotFor builds the prospective history for one outgoing message
// without committing it, plus the request config to use.
func (s *Session) snapshotFor(text string) ([]message.Turn, provider.RequestConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxTurns > 0 && s.modelTurns >= s.maxTurns {
		return nil, provider.RequestConfig{}, ErrTurnBudgetExceeded
	}

	prospective := message.CloneHistory(s.history)
	prospective = append(prospective, message.NewUserTurn(text))
	return prospective, s.req, nil
}

// commit appends the user/model pair after a fully successful request.
func (s *Session) commit(userText string, modelTurn message.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, message.NewUserTurn(userText), modelTurn)
	s.modelTurns++
}

// SendMessage sends one user message and blocks for the complete response.
// On any failure the session history is exactly as it was before the call.
func (s *Session) SendMessage(ctx context.Context, text string) (message.Turn, error) {
	prospective, req, err := s.snapshotFor(text)
	if err != nil {
		return message.Turn{}, err
	}

	turn, err := s.gen.Generate(ctx, prospective, req)
	if err != nil {
		return message.Turn{}, err
	}

	s.commit(text, turn)
	return turn, nil
}

// SendMessageStream sends one user message and returns the response as an
// event stream. History commits only when the stream reaches done; an error
// event or cancellation leaves the session untouched, so the same message
// can simply be sent again.
func (s *Session) SendMessageStream(ctx context.Context, text string) (<-chan provider.StreamEvent, error) {
	prospective, req, err := s.snapshotFor(text)
	if err != nil {
		return nil, err
	}

	inner, err := s.gen.GenerateStream(ctx, prospective, req)
	if err != nil {
		return nil, err
	}

	events := make(chan provider.StreamEvent, 1)
	go func() {
		defer close(events)
		for ev := range inner {
			if ev.Kind == provider.EventDone {
				modelTurn := message.NewModelTurn(ev.Text)
				modelTurn.Usage = ev.Usage
				s.commit(text, modelTurn)
			}
			events <- ev
		}
	}()
	return events, nil
}

// CountTokens reports the prompt size the next request would carry.
func (s *Session) CountTokens(ctx context.Context) (int, error) {
	s.mu.Lock()
	history := message.CloneHistory(s.history)
	req := s.req
	s.mu.Unlock()
	return s.gen.CountTokens(ctx, history, req)
}

// Clear drops the history and resets the turn budget; the session id and
// backend are kept.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.modelTurns = 0
}
