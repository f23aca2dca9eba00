package auth

import (
	"context"
)

type contextKey int

const (
	claimsKey contextKey = iota
)

// WithClaims returns a new context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext returns the claims from context, or nil if not authenticated.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// UserID returns the local user ID from context, or empty string.
func UserID(ctx context.Context) string {
	claims := FromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// Email returns the user's email from context, or empty string.
func Email(ctx context.Context) string {
	claims := FromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Email
}

// IsAuthenticated returns true if the request has valid authentication.
func IsAuthenticated(ctx context.Context) bool {
	return FromContext(ctx) != nil
}
