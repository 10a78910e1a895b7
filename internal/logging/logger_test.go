package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/chatstore/internal/config"
)

func testLoggingConfig(t *testing.T) config.LoggingConfig {
	t.Helper()
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()
	return cfg
}

func TestNewLogger_FileSeparation(t *testing.T) {
	cfg := testLoggingConfig(t)
	var console bytes.Buffer

	logger, err := NewLogger(cfg, &console)
	require.NoError(t, err)

	logger.Info("info message")
	logger.Warn("warning message")
	logger.Error("error message", "room_id", "!r:x")
	require.NoError(t, Shutdown())

	main, err := os.ReadFile(filepath.Join(cfg.Dir, "chatstore.log"))
	require.NoError(t, err)
	assert.Contains(t, string(main), "[INFO] info message")
	assert.Contains(t, string(main), "[WARN] warning message")
	assert.Contains(t, string(main), "[ERROR] error message room_id=!r:x")

	errs, err := os.ReadFile(filepath.Join(cfg.Dir, "errors.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "info message")
	assert.Contains(t, string(errs), "warning message")
	assert.Contains(t, string(errs), "error message")

	// The console defaults to warnings and above.
	assert.NotContains(t, console.String(), "info message")
	assert.Contains(t, console.String(), "warning message")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	cfg := testLoggingConfig(t)
	cfg.File.Format = "json"
	cfg.Console.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	logger.Info("json message", "entries", 2)
	require.NoError(t, Shutdown())

	content, err := os.ReadFile(filepath.Join(cfg.Dir, "chatstore.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"json message"`)
	assert.Contains(t, string(content), `"entries":2`)
}

func TestNewLogger_FileDisabled(t *testing.T) {
	cfg := testLoggingConfig(t)
	cfg.Dir = filepath.Join(cfg.Dir, "never-created")
	cfg.File.Enabled = false
	cfg.Console.Level = "debug"
	var console bytes.Buffer

	logger, err := NewLogger(cfg, &console)
	require.NoError(t, err)
	logger.Debug("debug message")

	assert.Contains(t, console.String(), "[DEBUG] debug message")
	assert.NoDirExists(t, cfg.Dir)
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := testLoggingConfig(t)
	cfg.File.Enabled = false
	cfg.Console.Enabled = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	logger.Error("goes nowhere")
}

func TestNewLogger_BadDirectory(t *testing.T) {
	cfg := testLoggingConfig(t)
	blocker := filepath.Join(cfg.Dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Dir = filepath.Join(blocker, "logs")

	_, err := NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "failed to create log directory")
}

func TestInitialize_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := testLoggingConfig(t)
	require.NoError(t, Initialize(cfg, &bytes.Buffer{}))

	slog.Info("global test message")
	require.NoError(t, Shutdown())

	content, err := os.ReadFile(filepath.Join(cfg.Dir, "chatstore.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "global test message")
}

func TestShutdown_Idempotent(t *testing.T) {
	assert.NoError(t, Shutdown())
	assert.NoError(t, Shutdown())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.level), tt.level)
	}
}
