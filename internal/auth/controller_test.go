package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeAuthenticator scripts attempt outcomes and can block until released.
type fakeAuthenticator struct {
	mu       sync.Mutex
	cred     Credential
	err      error
	block    chan struct{} // when non-nil, Authenticate waits here
	attempts int
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, method string) (Credential, error) {
	f.mu.Lock()
	f.attempts++
	block := f.block
	cred, err := f.cred, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		}
	}
	if err != nil {
		return Credential{}, err
	}
	cred.Method = method
	return cred, nil
}

func (f *fakeAuthenticator) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

type fakeSettings struct {
	mu        sync.Mutex
	preferred string
	saveErr   error
}

func (f *fakeSettings) PreferredMethod() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.preferred
}

func (f *fakeSettings) SetPreferredMethod(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.preferred = method
	return nil
}

func TestSelectMethodSuccess(t *testing.T) {
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k", Source: "oauth"}}
	settings := &fakeSettings{}
	c := NewController(authn, settings, nil)

	if err := c.OpenDialog(); err != nil {
		t.Fatalf("OpenDialog() error: %v", err)
	}
	if c.State() != StateDialogOpen {
		t.Fatalf("state = %v, want dialog open", c.State())
	}

	if err := c.SelectMethod(context.Background(), "gemini-api-key"); err != nil {
		t.Fatalf("SelectMethod() error: %v", err)
	}
	if c.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", c.State())
	}
	cred, ok := c.Credential()
	if !ok || cred.Method != "gemini-api-key" {
		t.Errorf("credential = %+v ok=%v, want the selected method", cred, ok)
	}
	if settings.PreferredMethod() != "gemini-api-key" {
		t.Errorf("preferred method = %q, want persisted selection", settings.PreferredMethod())
	}
}

func TestSelectMethodFailureReopensDialog(t *testing.T) {
	authn := &fakeAuthenticator{err: errors.New("key rejected")}
	c := NewController(authn, &fakeSettings{}, nil)

	c.OpenDialog()
	err := c.SelectMethod(context.Background(), "openai-api-key")
	if err == nil {
		t.Fatal("SelectMethod() should fail")
	}
	if c.State() != StateDialogOpen {
		t.Errorf("state = %v, want the dialog back open for another pick", c.State())
	}
	if c.LastError() == nil {
		t.Error("LastError() should carry the failure")
	}
	if _, ok := c.Credential(); ok {
		t.Error("no credential should be active after a failure")
	}
}

func TestSingleInFlightAttempt(t *testing.T) {
	block := make(chan struct{})
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k"}, block: block}
	c := NewController(authn, &fakeSettings{}, nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.SelectMethod(context.Background(), "slow-method") }()

	// Wait for the first attempt to be in flight.
	for c.State() != StateAuthenticating {
		time.Sleep(time.Millisecond)
	}

	if err := c.SelectMethod(context.Background(), "second"); !errors.Is(err, ErrAuthInFlight) {
		t.Errorf("concurrent SelectMethod() error = %v, want ErrAuthInFlight", err)
	}
	if err := c.OpenDialog(); !errors.Is(err, ErrAuthInFlight) {
		t.Errorf("OpenDialog() during attempt error = %v, want ErrAuthInFlight", err)
	}

	close(block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first attempt error: %v", err)
	}
	if c.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", c.State())
	}
	if got := authn.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want the second call rejected before reaching the authenticator", got)
	}
}

func TestAutoAuthenticateSuccess(t *testing.T) {
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k"}}
	settings := &fakeSettings{preferred: "gemini-api-key"}
	c := NewController(authn, settings, nil)

	c.MaybeAutoAuthenticate(context.Background())
	if c.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated without any dialog", c.State())
	}
}

func TestAutoAuthenticateFiresOnce(t *testing.T) {
	authn := &fakeAuthenticator{err: errors.New("expired")}
	settings := &fakeSettings{preferred: "gemini-api-key"}
	c := NewController(authn, settings, nil)

	c.MaybeAutoAuthenticate(context.Background())
	if c.State() != StateAutoAuthFailed {
		t.Fatalf("state = %v, want auto auth failed", c.State())
	}

	// A second call must not retry, even after the failure.
	c.MaybeAutoAuthenticate(context.Background())
	if got := authn.attemptCount(); got != 1 {
		t.Errorf("attempts = %d, want exactly one auto attempt", got)
	}
}

func TestAutoAuthenticateNoPreferredMethodOpensDialog(t *testing.T) {
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k"}}
	c := NewController(authn, &fakeSettings{}, nil)

	// A first run with nothing configured lands on the method picker.
	c.MaybeAutoAuthenticate(context.Background())
	if c.State() != StateDialogOpen {
		t.Errorf("state = %v, want the dialog open with nothing configured", c.State())
	}
	if authn.attemptCount() != 0 {
		t.Error("no attempt should run without a preferred method")
	}
}

// fakeCredStore scripts cached credential material.
type fakeCredStore struct {
	mu      sync.Mutex
	active  Credential
	hasCred bool
	cleared []string
}

func (f *fakeCredStore) ClearCachedCredentialFile(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, method)
	f.active = Credential{}
	f.hasCred = false
	return nil
}

func (f *fakeCredStore) GetActiveCredential() (Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.hasCred
}

func (f *fakeCredStore) clearedMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleared...)
}

func TestAutoAuthenticateAdoptsCachedCredential(t *testing.T) {
	authn := &fakeAuthenticator{err: errors.New("should not be reached")}
	creds := &fakeCredStore{active: Credential{Method: "gemini-api-key", APIKey: "k"}, hasCred: true}
	c := NewController(authn, &fakeSettings{preferred: "gemini-api-key"}, creds)

	c.MaybeAutoAuthenticate(context.Background())
	if c.State() != StateAuthenticated {
		t.Fatalf("state = %v, want authenticated from the cached credential", c.State())
	}
	if authn.attemptCount() != 0 {
		t.Error("a valid cached credential should skip the attempt entirely")
	}
	cred, ok := c.Credential()
	if !ok || cred.Method != "gemini-api-key" {
		t.Errorf("credential = %+v ok=%v, want the cached one", cred, ok)
	}
}

func TestSelectMethodClearsCachedCredential(t *testing.T) {
	authn := &fakeAuthenticator{cred: Credential{APIKey: "fresh"}}
	creds := &fakeCredStore{active: Credential{Method: "openai-api-key", APIKey: "stale"}, hasCred: true}
	c := NewController(authn, &fakeSettings{}, creds)

	c.OpenDialog()
	if err := c.SelectMethod(context.Background(), "openai-api-key"); err != nil {
		t.Fatalf("SelectMethod() error: %v", err)
	}
	if got := creds.clearedMethods(); len(got) != 1 || got[0] != "openai-api-key" {
		t.Errorf("cleared methods = %v, want the newly chosen method cleared first", got)
	}
	cred, ok := c.Credential()
	if !ok || cred.APIKey != "fresh" {
		t.Errorf("credential = %+v ok=%v, want the freshly authenticated one", cred, ok)
	}
}

func TestAutoFailureThenManualRecovery(t *testing.T) {
	authn := &fakeAuthenticator{err: errors.New("expired")}
	settings := &fakeSettings{preferred: "gemini-api-key"}
	c := NewController(authn, settings, nil)

	c.MaybeAutoAuthenticate(context.Background())
	if c.State() != StateAutoAuthFailed {
		t.Fatalf("state = %v, want auto auth failed", c.State())
	}

	// The user picks a method from the reopened dialog.
	authn.mu.Lock()
	authn.err = nil
	authn.cred = Credential{APIKey: "fresh"}
	authn.mu.Unlock()

	if err := c.SelectMethod(context.Background(), "deepseek-api-key"); err != nil {
		t.Fatalf("SelectMethod() error: %v", err)
	}
	if c.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", c.State())
	}
	if c.LastError() != nil {
		t.Errorf("LastError() = %v, want cleared after success", c.LastError())
	}
	if settings.PreferredMethod() != "deepseek-api-key" {
		t.Errorf("preferred method = %q, want updated", settings.PreferredMethod())
	}
}

func TestCancelAuthentication(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k"}, block: block}
	c := NewController(authn, &fakeSettings{}, nil)

	done := make(chan error, 1)
	go func() { done <- c.SelectMethod(context.Background(), "slow") }()
	for c.State() != StateAuthenticating {
		time.Sleep(time.Millisecond)
	}

	c.CancelAuthentication()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("attempt error = %v, want context.Canceled", err)
	}
	if c.State() != StateDialogOpen {
		t.Errorf("state = %v, want the dialog back after a cancelled pick", c.State())
	}
}

func TestSnapshotReflectsFailure(t *testing.T) {
	authn := &fakeAuthenticator{err: errors.New("key rejected")}
	c := NewController(authn, &fakeSettings{}, nil)

	c.OpenDialog()
	_ = c.SelectMethod(context.Background(), "openai-api-key")

	snap := c.Snapshot()
	if snap.State != StateDialogOpen {
		t.Errorf("snapshot state = %v, want dialog open", snap.State)
	}
	if snap.Err == nil {
		t.Error("snapshot should carry the attempt failure")
	}
	if snap.Method != "" {
		t.Errorf("snapshot method = %q, want none after a failure", snap.Method)
	}

	authn.mu.Lock()
	authn.err = nil
	authn.cred = Credential{APIKey: "k"}
	authn.mu.Unlock()
	if err := c.SelectMethod(context.Background(), "openai-api-key"); err != nil {
		t.Fatalf("SelectMethod() error: %v", err)
	}
	snap = c.Snapshot()
	if snap.State != StateAuthenticated || snap.Method != "openai-api-key" || snap.Err != nil {
		t.Errorf("snapshot = %+v, want authenticated with the method and no error", snap)
	}
}

func TestCloseDialogWithoutChoosing(t *testing.T) {
	c := NewController(&fakeAuthenticator{}, &fakeSettings{}, nil)
	c.OpenDialog()
	c.CloseDialog()
	if c.State() != StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", c.State())
	}
}

func TestCloseDialogKeepsExistingCredential(t *testing.T) {
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k"}}
	c := NewController(authn, &fakeSettings{}, nil)

	if err := c.SelectMethod(context.Background(), "gemini-api-key"); err != nil {
		t.Fatalf("SelectMethod() error: %v", err)
	}
	// Reopen to switch methods, then change our mind.
	c.OpenDialog()
	c.CloseDialog()
	if c.State() != StateAuthenticated {
		t.Errorf("state = %v, want the old credential still active", c.State())
	}
}

func TestSettingsSaveFailureKeepsCredential(t *testing.T) {
	authn := &fakeAuthenticator{cred: Credential{APIKey: "k"}}
	settings := &fakeSettings{saveErr: errors.New("disk full")}
	c := NewController(authn, settings, nil)

	if err := c.SelectMethod(context.Background(), "gemini-api-key"); err != nil {
		t.Fatalf("SelectMethod() error: %v", err)
	}
	if c.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated despite the save failure", c.State())
	}
}
