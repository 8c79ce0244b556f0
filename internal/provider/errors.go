package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller and configuration failures.
var (
	// ErrEmptyRequest indicates the history carries no user text to send.
	ErrEmptyRequest = errors.New("request contains no user content")

	// ErrUnsupportedProvider indicates an unrecognized provider id. This is
	// fatal to session start and is never retried.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrUnsupported indicates the active backend does not implement the
	// requested operation (e.g. embeddings on a chat-completions backend).
	ErrUnsupported = errors.New("operation not supported by this provider")
)

// AuthError indicates the backend rejected or could not find credentials.
// The message names which credential source was checked and whether anything
// was present there, without ever including the secret itself.
type AuthError struct {
	Status int    // HTTP status reported by the backend, 0 if local
	Source string // where the key was looked up, e.g. "environment variable GEMINI_API_KEY"
	Reason string // backend-supplied detail, if any
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Source == "" {
		msg := "no API key configured (checked config file and environment)"
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		return msg
	}
	msg := fmt.Sprintf("backend rejected the API key from %s", e.Source)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// BackendError is a non-auth failure reported by the backend itself.
type BackendError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend request failed with status %d", e.Status)
	}
	return fmt.Sprintf("backend request failed with status %d: %s", e.Status, e.Message)
}

// TransportError is a network-level failure: the request never produced a
// backend response. Retrying the same turn is safe.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("network request failed: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is checks, including
// context cancellation.
func (e *TransportError) Unwrap() error {
	return e.Err
}
