package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in, zerolog.InfoLevel), "level %q", tt.in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json"}, &buf)

	log.Debug().Msg("hidden")
	log.Info().Int("station", 3).Msg("station on")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "station on", rec["message"])
	assert.Equal(t, float64(3), rec["station"])
	assert.Contains(t, rec, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug"}, &buf)

	log.Debug().Str("topic", "garden/irrigation/cmd").Msg("subscribed")
	out := buf.String()
	assert.Contains(t, out, "subscribed")
	assert.Contains(t, out, "topic=garden/irrigation/cmd")
}
