package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DebugLevel},
		{"INFO", logger.InfoLevel},
		{"", logger.WarnLevel},
		{"warning", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logger.ParseLevel("chatty")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentTagsEvents(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, logger.DebugLevel)

	log := logger.Component("station").With("sensor", "k30")
	log.Info().Int("attempt", 2).Msg("retrying")

	out := buf.String()
	assert.Contains(t, out, `"component":"station"`)
	assert.Contains(t, out, `"sensor":"k30"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"message":"retrying"`)
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, logger.DebugLevel)

	err := errors.New().New(errors.ErrTimeout)
	logger.Default().ErrorWithContext(err, "sdi12", "read").Msg("")

	out := buf.String()
	assert.Contains(t, out, `"error_code":"operation_timeout"`)
	assert.Contains(t, out, `"operation":"read"`)
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, logger.WarnLevel)

	logger.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
