// Package auth implements the authentication flow: the dialog lifecycle,
// method selection, and the one-shot automatic sign-in at startup.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the controller's position in the auth flow.
type State int

const (
	// StateUnauthenticated means no valid credential is active and no
	// dialog is showing.
	StateUnauthenticated State = iota
	// StateDialogOpen means the method-selection dialog is showing.
	StateDialogOpen
	// StateAuthenticating means one attempt is in flight.
	StateAuthenticating
	// StateAuthenticated means a credential is active.
	StateAuthenticated
	// StateAutoAuthFailed means the startup auto attempt failed; the
	// dialog is showing with the failure attached.
	StateAutoAuthFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateDialogOpen:
		return "dialog open"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateAutoAuthFailed:
		return "auto auth failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAuthInFlight indicates an attempt is already running; the new request
// is rejected rather than queued.
var ErrAuthInFlight = errors.New("an authentication attempt is already in progress")

// Credential is the result of a successful authentication.
type Credential struct {
	Method string
	APIKey string
	// Source records where the key came from, for diagnostics. Never
	// include the key itself in messages.
	Source string
}

// Authenticator performs one authentication attempt for a method. Blocking
// is expected; the context cancels the attempt.
type Authenticator interface {
	Authenticate(ctx context.Context, method string) (Credential, error)
}

// SettingsStore persists the user's chosen method across runs.
type SettingsStore interface {
	PreferredMethod() string
	SetPreferredMethod(method string) error
}

// CredentialStore manages credential material some methods cache on disk
// between runs (OAuth tokens and the like). Key-based methods resolve their
// credential fresh every attempt and cache nothing; a nil store behaves as
// an empty one.
type CredentialStore interface {
	// ClearCachedCredentialFile removes any cached material for the method
	// so a fresh selection cannot be satisfied by stale state.
	ClearCachedCredentialFile(method string) error

	// GetActiveCredential returns a still-valid cached credential, if any.
	GetActiveCredential() (Credential, bool)
}

// Controller drives the auth flow. All methods are safe for concurrent use.
// At most one attempt runs at a time, and the automatic startup attempt
// fires at most once per process regardless of outcome.
type Controller struct {
	mu         sync.Mutex
	state      State
	auth       Authenticator
	settings   SettingsStore
	creds      CredentialStore // may be nil
	credential Credential
	lastErr    error

	// autoDone latches after the first MaybeAutoAuthenticate call.
	autoDone bool
	// cancelInflight aborts the running attempt, nil when idle.
	cancelInflight context.CancelFunc
}

// NewController creates a controller in the unauthenticated state. creds may
// be nil when every available method resolves its credential fresh.
func NewController(auth Authenticator, settings SettingsStore, creds CredentialStore) *Controller {
	return &Controller{
		auth:     auth,
		settings: settings,
		creds:    creds,
	}
}

// State returns the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Credential returns the active credential; the bool is false unless the
// state is authenticated.
func (c *Controller) Credential() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential, c.state == StateAuthenticated
}

// LastError returns the most recent attempt failure, nil after a success.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot is a consistent view of the flow for rendering: one lock
// acquisition instead of three racy accessor calls.
type Snapshot struct {
	State  State
	Method string
	Err    error
}

// Snapshot returns the current state, active method, and last error
// atomically.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Method: c.credential.Method, Err: c.lastErr}
}

// OpenDialog shows the method-selection dialog. Opening while an attempt is
// in flight is rejected; opening while already open is a no-op.
func (c *Controller) OpenDialog() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAuthenticating {
		return ErrAuthInFlight
	}
	if c.state == StateDialogOpen || c.state == StateAutoAuthFailed {
		return nil
	}
	c.state = StateDialogOpen
	return nil
}

// CloseDialog dismisses the dialog without choosing. A close during an
// in-flight attempt is ignored; the attempt decides the next state.
func (c *Controller) CloseDialog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateDialogOpen, StateAutoAuthFailed:
		if c.credential.Method != "" {
			c.state = StateAuthenticated
		} else {
			c.state = StateUnauthenticated
		}
		c.lastErr = nil
	}
}

// SelectMethod runs one user-initiated attempt with the chosen method. It
// blocks until the attempt resolves. On success the method is persisted as
// the preferred method and the dialog closes; on failure the dialog stays
// open with the error attached so the user can pick again.
func (c *Controller) SelectMethod(ctx context.Context, method string) error {
	return c.attempt(ctx, method, true)
}

// MaybeAutoAuthenticate runs the startup attempt exactly once. A still-valid
// cached credential is adopted without an attempt; otherwise the preferred
// method is tried silently. With nothing pre-selected the dialog opens so a
// first run lands on the method picker. On failure the dialog opens in the
// failed state. Subsequent calls are no-ops whatever happened the first time.
func (c *Controller) MaybeAutoAuthenticate(ctx context.Context) {
	c.mu.Lock()
	if c.autoDone {
		c.mu.Unlock()
		return
	}
	c.autoDone = true

	if c.creds != nil {
		if cred, ok := c.creds.GetActiveCredential(); ok {
			c.credential = cred
			c.state = StateAuthenticated
			c.mu.Unlock()
			return
		}
	}

	method := c.settings.PreferredMethod()
	if method == "" {
		c.state = StateDialogOpen
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// The error is reflected in the state; auto attempts have no caller
	// to report to.
	_ = c.attempt(ctx, method, false)
}

// CancelAuthentication aborts the in-flight attempt, if any. The attempt's
// own failure path moves the state; cancelling when idle does nothing.
func (c *Controller) CancelAuthentication() {
	c.mu.Lock()
	cancel := c.cancelInflight
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset drops the active credential and returns to unauthenticated. An
// in-flight attempt is cancelled first.
func (c *Controller) Reset() {
	c.CancelAuthentication()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = Credential{}
	c.lastErr = nil
	c.state = StateUnauthenticated
}

func (c *Controller) attempt(ctx context.Context, method string, userInitiated bool) error {
	c.mu.Lock()
	if c.state == StateAuthenticating {
		c.mu.Unlock()
		return ErrAuthInFlight
	}
	attemptCtx, cancel := context.WithCancel(ctx)
	c.cancelInflight = cancel
	c.state = StateAuthenticating
	c.mu.Unlock()

	if userInitiated && c.creds != nil {
		// Picking a method anew must not be satisfied by stale cached
		// material; a failed clear just forces a full re-auth anyway.
		_ = c.creds.ClearCachedCredentialFile(method)
	}

	// The lock is not held across the attempt; it may block on user
	// interaction or the network.
	cred, err := c.auth.Authenticate(attemptCtx, method)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelInflight = nil

	if err != nil {
		c.lastErr = err
		if userInitiated {
			// Back to the dialog so the user can pick again.
			c.state = StateDialogOpen
		} else {
			c.state = StateAutoAuthFailed
		}
		return err
	}

	c.credential = cred
	c.lastErr = nil
	c.state = StateAuthenticated

	if err := c.settings.SetPreferredMethod(method); err != nil {
		// Persistence failure does not invalidate the credential; the
		// user just picks again next run.
		return nil
	}
	return nil
}
