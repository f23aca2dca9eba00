package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", false)

	logger.Info().Msg("hidden")
	logger.Warn().Str("kind", "timeout").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "timeout", entry["kind"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "chatty", false)

	logger.Debug().Msg("debug")
	assert.Empty(t, buf.String())
	logger.Info().Msg("info")
	assert.Contains(t, buf.String(), `"message":"info"`)
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", true)
	logger.Info().Str("codes", "P0420").Msg("diagnosis complete")

	out := buf.String()
	assert.Contains(t, out, "diagnosis complete")
	assert.Contains(t, out, "P0420")
	assert.NotContains(t, out, `"message"`)
}
