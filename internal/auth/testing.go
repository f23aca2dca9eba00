package auth

import "context"

// NewTestClaims creates local-account claims for tests.
func NewTestClaims(userID, email string) *Claims {
	return &Claims{UserID: userID, Email: email, Subject: userID}
}

// NewTestProviderClaims creates provider claims with a verified email for tests.
func NewTestProviderClaims(subject, email string) *Claims {
	return &Claims{Subject: subject, Email: email, EmailVerified: email != "", Provider: true}
}

// StaticVerifier accepts exactly the tokens in its map. For tests.
type StaticVerifier map[string]*Claims

// Verify implements Verifier.
func (s StaticVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, ErrInvalidToken
}
