package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	t.Run("returns nil for empty context", func(t *testing.T) {
		assert.Nil(t, FromContext(context.Background()))
	})

	t.Run("returns claims from context", func(t *testing.T) {
		ctx := WithClaims(context.Background(), NewTestClaims("user_123", "test@example.com"))

		got := FromContext(ctx)
		assert.NotNil(t, got)
		assert.Equal(t, "user_123", got.UserID)
		assert.Equal(t, "test@example.com", got.Email)
		assert.False(t, got.Provider)
	})
}

func TestUserID(t *testing.T) {
	t.Run("returns empty string for empty context", func(t *testing.T) {
		assert.Equal(t, "", UserID(context.Background()))
	})

	t.Run("returns local user ID", func(t *testing.T) {
		ctx := WithClaims(context.Background(), NewTestClaims("8c2e", "a@b.co"))
		assert.Equal(t, "8c2e", UserID(ctx))
	})

	t.Run("provider claims carry no local ID", func(t *testing.T) {
		ctx := WithClaims(context.Background(), NewTestProviderClaims("kp_abc123", "a@b.co"))
		assert.Equal(t, "", UserID(ctx))
	})
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "", Email(context.Background()))

	ctx := WithClaims(context.Background(), NewTestClaims("u", "user@example.com"))
	assert.Equal(t, "user@example.com", Email(ctx))
}

func TestIsAuthenticated(t *testing.T) {
	assert.False(t, IsAuthenticated(context.Background()))
	assert.True(t, IsAuthenticated(WithClaims(context.Background(), &Claims{})))
}
