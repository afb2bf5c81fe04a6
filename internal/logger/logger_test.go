package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(&buf, "info", "")
	require.NoError(t, err)

	l.Info("Sync complete", slog.Int64("account_id", 7))
	l.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Sync complete", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, 7.0, entry["account_id"])
	assert.Contains(t, entry, "time")
}

func TestSetup_Text(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(&buf, "DEBUG", "text")
	require.NoError(t, err)

	l.Debug("Event skipped", slog.String("event_id", "ev1"))
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "event_id=ev1")
}

func TestSetup_Invalid(t *testing.T) {
	_, err := Setup(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)

	_, err = Setup(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
