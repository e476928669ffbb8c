package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpdf/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug("document ingested", "path", "a.pdf", "chunks", 5)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "document ingested", rec["msg"])
	assert.Equal(t, "a.pdf", rec["path"])
	assert.EqualValues(t, 5, rec["chunks"])
}

func TestNewTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	assert.Zero(t, buf.Len())
	log.Warn("shown", "status", 409)
	assert.Contains(t, buf.String(), "msg=shown status=409")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, l)
	l, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, l)

	_, err = ParseLevel("chatty")
	require.Error(t, err)
	_, err = New(config.LogConfig{Format: "xml"}, nil)
	require.Error(t, err)
}
