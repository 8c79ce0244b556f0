package auth

import (
	"context"
	"strings"

	"github.com/parley-ai/parley/internal/provider"
)

// KeyAuthenticator resolves API-key auth methods. A method id has the form
// "<provider>-api-key"; the attempt succeeds when a key for that provider is
// present in config or the environment. Validity against the backend is
// checked on first use, not here.
type KeyAuthenticator struct {
	// Lookup returns the key and a description of where it came from,
	// both empty when nothing is configured.
	Lookup func(providerID string) (key, source string)
}

// Authenticate implements Authenticator.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, method string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	providerID := strings.TrimSuffix(method, "-api-key")
	key, source := a.Lookup(providerID)
	if key == "" {
		return Credential{}, &provider.AuthError{}
	}
	return Credential{
		Method: method,
		APIKey: key,
		Source: source,
	}, nil
}

// ProviderForMethod maps a method id back to its provider id.
func ProviderForMethod(method string) string {
	return strings.TrimSuffix(method, "-api-key")
}
