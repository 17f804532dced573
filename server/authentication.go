package server

import (
	"context"
	"net/http"
	"strings"

	checkout "github.com/graypay/checkout-go"
)

// Authenticator validates the API key presented on incoming requests.
type Authenticator interface {
	AuthenticateKey(ctx context.Context, key string) error
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, key string) error

// AuthenticateKey implements Authenticator.
func (f AuthenticatorFunc) AuthenticateKey(ctx context.Context, key string) error {
	return f(ctx, key)
}

// StaticKeyAuthenticator accepts a fixed set of keys. Useful for local
// development and tests.
func StaticKeyAuthenticator(keys ...string) Authenticator {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	return AuthenticatorFunc(func(_ context.Context, key string) error {
		if !allowed[key] {
			return checkout.NewStateError("unknown API key")
		}
		return nil
	})
}

// requireAPIKey enforces a Bearer credential on every route.
func (a *API) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, key, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || key == "" {
			writeStatusError(w, http.StatusUnauthorized,
				checkout.NewStateError("missing or malformed Authorization header"))
			return
		}
		if err := a.auth.AuthenticateKey(r.Context(), key); err != nil {
			a.logger.Warn("authentication rejected",
				requestIDField(r.Context()),
			)
			writeStatusError(w, http.StatusUnauthorized,
				checkout.NewStateError("invalid API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
