package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kiosk.log")

	logger, err := NewLogger(Options{Service: "kiosk", Env: "test", Level: "debug", File: path})
	require.NoError(t, err)

	logger.Info("hello_file")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"hello_file"`)
	assert.Contains(t, string(raw), `"service":"kiosk"`)
	assert.Contains(t, string(raw), `"level":"info"`)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(Options{Level: "loud"})
	assert.Error(t, err)
}
