package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(Options{Level: slog.LevelWarn, Output: &buf})
	defer closer.Close()

	logger.Info("quiet")
	logger.Warn("loud", "component", "test")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "level=WARN msg=loud component=test")
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.log")
	var buf bytes.Buffer
	logger, closer := New(Options{Level: slog.LevelInfo, File: path, Output: &buf})

	logger.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"to file\"")
	assert.Empty(t, buf.String())
}
