// Package auth issues and verifies bearer tokens: HS256 tokens for accounts
// registered locally and JWKS-verified tokens from an external identity
// provider.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller of an authenticated request.
type Claims struct {
	// UserID is the local user id. Empty for provider tokens; the API resolves
	// those through Subject.
	UserID  string
	Email   string
	Subject string
	// EmailVerified reports that the identity provider confirmed Email.
	// Only verified addresses may be linked to an existing account.
	EmailVerified bool
	// Provider is set when the token came from the external identity provider.
	Provider bool
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Chain tries each verifier in order and returns the first success.
type Chain []Verifier

// Verify implements Verifier.
func (c Chain) Verify(ctx context.Context, token string) (*Claims, error) {
	errs := make([]error, 0, len(c))
	for _, v := range c {
		if v == nil {
			continue
		}
		claims, err := v.Verify(ctx, token)
		if err == nil {
			return claims, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrInvalidToken
	}
	return nil, errors.Join(errs...)
}

// Middleware rejects requests without a valid bearer token.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				unauthorized(w, "Unauthorized: missing token")
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				unauthorized(w, "Unauthorized: invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalMiddleware attaches claims when a valid token is present and lets
// every request through.
func OptionalMiddleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
