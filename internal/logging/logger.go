// Package logging builds the process-wide slog logger from LoggingConfig.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/syntrixbase/chatstore/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogName  = "chatstore.log"
	errorLogName = "errors.log"
)

var (
	// Open rotating files, closed by Shutdown.
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex
)

// Initialize builds a logger from cfg and installs it as the slog default.
// Console output goes to console, or stderr when console is nil.
func Initialize(cfg config.LoggingConfig, console io.Writer) error {
	logger, err := NewLogger(cfg, console)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	slog.SetDefault(logger)
	slog.Debug("Logging initialized",
		"level", cfg.Level,
		"dir", cfg.Dir,
		"console_enabled", cfg.Console.Enabled,
		"file_enabled", cfg.File.Enabled,
	)
	return nil
}

// NewLogger creates a logger writing to the console and, when file output
// is enabled, to <dir>/chatstore.log plus a warn-and-above <dir>/errors.log.
func NewLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, error) {
	if console == nil {
		console = os.Stderr
	}

	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, createHandler(console, cfg.Console.Format, parseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		mainFile := rotatingFile(cfg, mainLogName)
		handlers = append(handlers, createHandler(mainFile, cfg.File.Format, parseLevel(cfg.File.Level)))

		errorFile := rotatingFile(cfg, errorLogName)
		errorHandler := createHandler(errorFile, cfg.File.Format, slog.LevelWarn)
		handlers = append(handlers, NewLevelFilter(errorHandler, slog.LevelWarn))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.DiscardHandler), nil
	case 1:
		return slog.New(handlers[0]), nil
	default:
		return slog.New(NewMultiHandler(handlers...)), nil
	}
}

// Shutdown closes every log file opened since the last Shutdown.
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	var errs []error
	for _, f := range logFiles {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", f.Filename, err))
		}
	}
	logFiles = nil
	return errors.Join(errs...)
}

func rotatingFile(cfg config.LoggingConfig, name string) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.Rotation.MaxSize,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAge,
		Compress:   cfg.Rotation.Compress,
	}

	logFilesMu.Lock()
	logFiles = append(logFiles, f)
	logFilesMu.Unlock()
	return f
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return NewTextHandler(w, opts)
}
