// Package share publishes completed session turns over NATS so another
// terminal can follow a conversation live. One side broadcasts, any number
// of followers subscribe read-only.
package share

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Errors reported by the sharing layer.
var (
	ErrConnectionFailed = errors.New("failed to connect to broker")
	ErrNotConnected     = errors.New("not connected to broker")
)

// ConnConfig contains broker connection configuration.
type ConnConfig struct {
	URL            string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// DefaultConnConfig returns the default broker configuration.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		URL:            nats.DefaultURL, // "nats://localhost:4222"
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  60,
	}
}

// subjectFor returns the subject carrying a session's turns.
func subjectFor(sessionID string) string {
	return fmt.Sprintf("parley.session.%s.turns", sessionID)
}

func connect(cfg ConnConfig, name string) (*nats.Conn, error) {
	if cfg.URL == "" {
		cfg = DefaultConnConfig()
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionFailed, err)
	}
	return conn, nil
}

// Broadcaster publishes one session's turns.
type Broadcaster struct {
	conn      *nats.Conn
	sessionID string
}

// NewBroadcaster connects to the broker and binds to a session id.
func NewBroadcaster(cfg ConnConfig, sessionID string) (*Broadcaster, error) {
	conn, err := connect(cfg, "parley-broadcast-"+sessionID)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{conn: conn, sessionID: sessionID}, nil
}

// Publish sends one event on the session subject.
func (b *Broadcaster) Publish(eventType EventType, text, model string) error {
	if b.conn == nil {
		return ErrNotConnected
	}
	event := NewTurnEvent(b.sessionID, eventType, text)
	event.Model = model
	data, err := event.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.conn.Publish(subjectFor(b.sessionID), data)
}

// SessionID returns the session this broadcaster is bound to.
func (b *Broadcaster) SessionID() string {
	return b.sessionID
}

// Close announces the end of the session and releases the connection.
func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	// Best effort; followers also notice the silence.
	_ = b.Publish(EventSessionEnd, "", "")
	b.conn.Flush()
	b.conn.Close()
	b.conn = nil
	return nil
}

// Follower subscribes to a session's turns.
type Follower struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	events chan *TurnEvent
	errs   chan error
}

// NewFollower connects to the broker and subscribes to the session.
func NewFollower(cfg ConnConfig, sessionID string) (*Follower, error) {
	conn, err := connect(cfg, "parley-follow-"+sessionID)
	if err != nil {
		return nil, err
	}

	f := &Follower{
		conn:   conn,
		events: make(chan *TurnEvent, 100),
		errs:   make(chan error, 10),
	}

	sub, err := conn.Subscribe(subjectFor(sessionID), func(msg *nats.Msg) {
		event, err := DecodeTurnEvent(msg.Data)
		if err != nil {
			select {
			case f.errs <- fmt.Errorf("failed to decode event: %w", err):
			default:
			}
			return
		}
		select {
		case f.events <- event:
		default:
			// Channel full, drop the event rather than block the
			// subscription callback.
		}
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	f.sub = sub
	return f, nil
}

// Events returns the channel of incoming turn events.
func (f *Follower) Events() <-chan *TurnEvent {
	return f.events
}

// Errors returns the channel of decode failures.
func (f *Follower) Errors() <-chan error {
	return f.errs
}

// Close unsubscribes and releases the connection.
func (f *Follower) Close() error {
	if f.sub != nil {
		f.sub.Unsubscribe()
		f.sub = nil
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	close(f.events)
	close(f.errs)
	return nil
}
