package share

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType tags a shared session event.
type EventType string

const (
	// EventUserTurn carries the user's message text.
	EventUserTurn EventType = "USER_TURN"
	// EventModelTurn carries the completed model response.
	EventModelTurn EventType = "MODEL_TURN"
	// EventSessionEnd marks the broadcast session as finished.
	EventSessionEnd EventType = "SESSION_END"
)

// TurnEvent is one unit of a shared session: a completed turn, published
// after it commits to history. Partial streaming chunks are never shared.
type TurnEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Text      string    `json:"text,omitempty"`
	Model     string    `json:"model,omitempty"`
}

// NewTurnEvent creates an event with a generated ID and timestamp.
func NewTurnEvent(sessionID string, eventType EventType, text string) *TurnEvent {
	return &TurnEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Timestamp: time.Now(),
		Type:      eventType,
		Text:      text,
	}
}

// Encode serializes the event to JSON.
func (e *TurnEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeTurnEvent deserializes an event from JSON.
func DecodeTurnEvent(data []byte) (*TurnEvent, error) {
	var event TurnEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
