package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/parley-ai/parley/internal/message"
	"github.com/parley-ai/parley/internal/provider"
)

// mockGenerator scripts responses for session tests.
type mockGenerator struct {
	reply   string
	usage   message.Usage
	err     error
	lastReq provider.RequestConfig
	// lastHistory records what the session actually sent.
	lastHistory []message.Turn
}

func (m *mockGenerator) Generate(ctx context.Context, history []message.Turn, req provider.RequestConfig) (message.Turn, error) {
	m.lastHistory = message.CloneHistory(history)
	m.lastReq = req
	if m.err != nil {
		return message.Turn{}, m.err
	}
	turn := message.NewModelTurn(m.reply)
	turn.Usage = m.usage
	return turn, nil
}

func (m *mockGenerator) GenerateStream(ctx context.Context, history []message.Turn, req provider.RequestConfig) (<-chan provider.StreamEvent, error) {
	m.lastHistory = message.CloneHistory(history)
	m.lastReq = req
	events := make(chan provider.StreamEvent, 2)
	if m.err != nil {
		events <- provider.StreamEvent{Kind: provider.EventError, Err: m.err}
	} else {
		events <- provider.StreamEvent{Kind: provider.EventContent, Text: m.reply}
		events <- provider.StreamEvent{Kind: provider.EventDone, Text: m.reply, Usage: m.usage}
	}
	close(events)
	return events, nil
}

func (m *mockGenerator) CountTokens(ctx context.Context, history []message.Turn, req provider.RequestConfig) (int, error) {
	return 7, nil
}

func (m *mockGenerator) EmbedContent(ctx context.Context, text string) ([]float64, error) {
	return nil, provider.ErrUnsupported
}

func drain(t *testing.T, events <-chan provider.StreamEvent) []provider.StreamEvent {
	t.Helper()
	var got []provider.StreamEvent
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestSendMessageCommitsHistory(t *testing.T) {
	gen := &mockGenerator{reply: "hi there", usage: message.Usage{TotalTokens: 4}}
	session := NewSession(gen, provider.RequestConfig{Model: "m"})

	turn, err := session.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if turn.Text() != "hi there" {
		t.Errorf("reply = %q, want %q", turn.Text(), "hi there")
	}

	history := session.History()
	if len(history) != 2 {
		t.Fatalf("history has %d turns, want user + model", len(history))
	}
	if history[0].Role != message.RoleUser || history[0].Text() != "hello" {
		t.Errorf("first turn = %+v, want the user message", history[0])
	}
	if history[1].Role != message.RoleModel || history[1].Usage.TotalTokens != 4 {
		t.Errorf("second turn = %+v, want the model reply with usage", history[1])
	}
}

func TestFailedSendLeavesHistoryUntouched(t *testing.T) {
	gen := &mockGenerator{err: &provider.BackendError{Status: 500, Message: "boom"}}
	session := NewSession(gen, provider.RequestConfig{Model: "m"})

	if _, err := session.SendMessage(context.Background(), "hello"); err == nil {
		t.Fatal("SendMessage() should fail")
	}
	if got := session.History(); len(got) != 0 {
		t.Errorf("history = %v after a failed send, want empty", got)
	}

	// The same message can be retried once the backend recovers.
	gen.err = nil
	gen.reply = "recovered"
	if _, err := session.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if got := session.History(); len(got) != 2 {
		t.Errorf("history has %d turns after retry, want 2", len(got))
	}
}

func TestStreamCommitsOnlyOnDone(t *testing.T) {
	gen := &mockGenerator{reply: "streamed", usage: message.Usage{TotalTokens: 3}}
	session := NewSession(gen, provider.RequestConfig{Model: "m"})

	events, err := session.SendMessageStream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessageStream() error: %v", err)
	}
	got := drain(t, events)

	if len(got) != 2 || got[1].Kind != provider.EventDone {
		t.Fatalf("events = %+v, want content + done", got)
	}
	history := session.History()
	if len(history) != 2 || history[1].Text() != "streamed" {
		t.Errorf("history = %+v, want the committed pair", history)
	}
}

func TestStreamErrorDoesNotCommit(t *testing.T) {
	gen := &mockGenerator{err: &provider.TransportError{Err: errors.New("conn reset")}}
	session := NewSession(gen, provider.RequestConfig{Model: "m"})

	events, err := session.SendMessageStream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessageStream() error: %v", err)
	}
	got := drain(t, events)

	if len(got) != 1 || got[0].Kind != provider.EventError {
		t.Fatalf("events = %+v, want a single error event", got)
	}
	if len(session.History()) != 0 {
		t.Error("history changed after a failed stream")
	}
}

func TestTurnBudget(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	session := NewSession(gen, provider.RequestConfig{Model: "m"}, WithMaxTurns(2))

	for i := 0; i < 2; i++ {
		if _, err := session.SendMessage(context.Background(), "hello"); err != nil {
			t.Fatalf("send %d error: %v", i, err)
		}
	}

	_, err := session.SendMessage(context.Background(), "one too many")
	if !errors.Is(err, ErrTurnBudgetExceeded) {
		t.Fatalf("error = %v, want ErrTurnBudgetExceeded", err)
	}
	if len(session.History()) != 4 {
		t.Error("the over-budget message must not reach history")
	}

	// Clearing the session resets the budget.
	session.Clear()
	if _, err := session.SendMessage(context.Background(), "fresh start"); err != nil {
		t.Errorf("send after Clear() error: %v", err)
	}
}

func TestSystemPromptAppliesToNextRequest(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	session := NewSession(gen, provider.RequestConfig{Model: "m", SystemPrompt: "old"})

	session.SetSystemPrompt("new prompt")
	if _, err := session.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if gen.lastReq.SystemPrompt != "new prompt" {
		t.Errorf("request carried prompt %q, want the replacement", gen.lastReq.SystemPrompt)
	}
}

func TestHistorySnapshotIsolation(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	session := NewSession(gen, provider.RequestConfig{Model: "m"})
	if _, err := session.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	snapshot := session.History()
	snapshot[0].Parts[0].Text = "tampered"

	if session.History()[0].Text() != "hello" {
		t.Error("History() shares storage with the session")
	}
}

func TestResumeSeedsHistory(t *testing.T) {
	prior := []message.Turn{
		message.NewUserTurn("earlier question"),
		message.NewModelTurn("earlier answer"),
	}
	gen := &mockGenerator{reply: "ok"}
	session := NewSession(gen, provider.RequestConfig{Model: "m"}, WithHistory(prior))

	if _, err := session.SendMessage(context.Background(), "and now?"); err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	// The backend saw the prior turns plus the new message.
	if len(gen.lastHistory) != 3 {
		t.Fatalf("backend saw %d turns, want 3", len(gen.lastHistory))
	}
	if gen.lastHistory[0].Text() != "earlier question" {
		t.Errorf("first turn sent = %q", gen.lastHistory[0].Text())
	}
}
