package logutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Disabled(t *testing.T) {
	var out bytes.Buffer
	logger, closer, err := New(Options{Enabled: false, Output: &out})
	require.NoError(t, err)
	defer closer.Close()

	logger.Error().Msg("dropped")
	assert.Empty(t, out.String())
}

func TestNew_Level(t *testing.T) {
	var out bytes.Buffer
	logger, closer, err := New(Options{Enabled: true, Level: "warn", Output: &out})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(Options{Enabled: true, Level: "loud"})
	assert.Error(t, err)
}

func TestNew_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	var out bytes.Buffer
	logger, closer, err := New(Options{Enabled: true, Path: dir, Output: &out})
	require.NoError(t, err)

	logger.Info().Str("symbol", "BTCUSD").Msg("connected")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"symbol":"BTCUSD"`)
	assert.Contains(t, out.String(), "connected")
}
