package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"))
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
	assert.False(t, CheckPassword("", "correct horse"))
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "ok", email: "driver@example.com", password: "longenough", want: nil},
		{name: "missing email", email: "", password: "longenough", want: ErrInvalidEmail},
		{name: "not an address", email: "driver", password: "longenough", want: ErrInvalidEmail},
		{name: "display name form", email: "Driver <driver@example.com>", password: "longenough", want: ErrInvalidEmail},
		{name: "short password", email: "driver@example.com", password: "short", want: ErrWeakPassword},
		{name: "long password", email: "driver@example.com", password: strings.Repeat("x", 73), want: ErrWeakPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateCredentials(tt.email, tt.password))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "driver@example.com", NormalizeEmail("  Driver@Example.COM "))
}
