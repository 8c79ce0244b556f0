package share

import (
	"testing"
)

func TestTurnEventRoundTrip(t *testing.T) {
	event := NewTurnEvent("session-1", EventModelTurn, "the answer")
	event.Model = "gemini-2.0-flash"

	data, err := event.Encode()
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	decoded, err := DecodeTurnEvent(data)
	if err != nil {
		t.Fatalf("DecodeTurnEvent() error: %v", err)
	}
	if decoded.SessionID != "session-1" || decoded.Type != EventModelTurn {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Text != "the answer" || decoded.Model != "gemini-2.0-flash" {
		t.Errorf("decoded payload = %q / %q", decoded.Text, decoded.Model)
	}
	if decoded.ID == "" || decoded.Timestamp.IsZero() {
		t.Error("event should carry a generated id and timestamp")
	}
}

func TestDecodeTurnEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeTurnEvent([]byte("not json")); err == nil {
		t.Error("DecodeTurnEvent() should fail on malformed input")
	}
}

func TestSubjectFor(t *testing.T) {
	if got := subjectFor("abc"); got != "parley.session.abc.turns" {
		t.Errorf("subjectFor() = %q", got)
	}
}
