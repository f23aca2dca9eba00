package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ProviderConfig holds identity provider configuration.
type ProviderConfig struct {
	Domain   string // e.g., "https://yourapp.kinde.com"
	Audience string // API audience identifier, optional
}

// ProviderClaims represents the JWT claims issued by the identity provider.
type ProviderClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// ProviderVerifier validates RS256 provider tokens against the domain's JWKS.
type ProviderVerifier struct {
	jwks     keyfunc.Keyfunc
	audience string
	issuer   string
}

// NewProviderVerifier creates a verifier that fetches and refreshes the
// provider's JWKS in the background until ctx is done.
func NewProviderVerifier(ctx context.Context, cfg ProviderConfig) (*ProviderVerifier, error) {
	if cfg.Domain == "" {
		return nil, errors.New("provider domain required")
	}
	domain := strings.TrimSuffix(cfg.Domain, "/")
	jwksURL := domain + "/.well-known/jwks.json"

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	return newProviderVerifier(jwks, domain, cfg.Audience), nil
}

func newProviderVerifier(jwks keyfunc.Keyfunc, issuer, audience string) *ProviderVerifier {
	return &ProviderVerifier{jwks: jwks, issuer: issuer, audience: audience}
}

// Verify implements Verifier for provider tokens.
func (v *ProviderVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &ProviderClaims{}, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*ProviderClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject:       claims.Subject,
		Email:         NormalizeEmail(claims.Email),
		EmailVerified: claims.EmailVerified,
		Provider:      true,
	}, nil
}
