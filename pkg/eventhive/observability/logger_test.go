package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARNING", slog.LevelWarn, false},
		{"critical", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(&buf, LoggerOptions{Level: "info", Format: "json"})
		require.NoError(t, err)

		logger.Debug("hidden")
		logger.Info("shown")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "shown", lines[0]["msg"])
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewLogger(&bytes.Buffer{}, LoggerOptions{Format: "xml"})
		assert.Error(t, err)
	})

	t.Run("otel bridge", func(t *testing.T) {
		logger, err := NewLogger(nil, LoggerOptions{OTelBridge: true})
		require.NoError(t, err)
		assert.NotPanics(t, func() { logger.Info("bridged") })
	})
}

func TestEnrichLogger(t *testing.T) {
	var buf bytes.Buffer
	EnrichLogger(newJSONLogger(&buf), "tts").Info("doing work")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "tts", lines[0]["actor"])

	assert.Nil(t, EnrichLogger(nil, "tts"))
}

func TestLogHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	LogActorStart(logger, []string{"TTS_Event"})
	LogDispatch(logger, "TTS_Event", "GENERATE_TTS", "evt-1", 1.5)
	LogHandlerError(logger, "TTS_Event", "GENERATE_TTS", "evt-1", errors.New("boom"))
	LogActorStop(logger, 1, 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "actor starting", lines[0]["msg"])
	assert.Equal(t, "GENERATE_TTS", lines[1]["command"])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "boom", lines[2]["error"])
	assert.Equal(t, float64(2), lines[3]["skipped"])

	t.Run("nil logger is safe", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogActorStart(nil, nil)
			LogDispatch(nil, "", "", "", 0)
			LogHandlerError(nil, "", "", "", errors.New("x"))
			LogActorStop(nil, 0, 0)
		})
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}
