package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/obdai/obdai/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVehicleID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "valid", value: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "invalid", value: "not-a-uuid", wantErr: true},
		{name: "empty", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.SetPathValue("vehicleID", tt.value)

			id, err := parseVehicleID(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uuid.MustParse(tt.value), id)
		})
	}
}

func TestParseDiagnosisID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetPathValue("diagnosisID", "550e8400-e29b-41d4-a716-446655440000")

	id, err := parseDiagnosisID(r)
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "ip:203.0.113.7", clientKey(r))

	r.RemoteAddr = "unix-socket"
	assert.Equal(t, "ip:unix-socket", clientKey(r))

	local := r.WithContext(auth.WithClaims(r.Context(), auth.NewTestClaims("u-1", "a@example.com")))
	assert.Equal(t, "user:u-1", clientKey(local))

	provider := r.WithContext(auth.WithClaims(r.Context(), auth.NewTestProviderClaims("kp_1", "a@example.com")))
	assert.Equal(t, "sub:kp_1", clientKey(provider))
}
