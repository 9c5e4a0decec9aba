package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	std = newLogger(os.Stderr, "json", zerolog.InfoLevel)
)

// Configure sets the minimum level ("debug", "info", "warn", "error") and the
// output format ("json" or "console") of the process-wide logger.
func Configure(level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format != "json" && format != "console" {
		return fmt.Errorf("unsupported log format %q", format)
	}

	mu.Lock()
	std = newLogger(os.Stderr, format, lvl)
	mu.Unlock()
	return nil
}

// SetOutput redirects log output as JSON to w and returns a function that
// restores the previous logger. Intended for tests.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	prev := std
	std = newLogger(w, "json", zerolog.DebugLevel)
	mu.Unlock()

	return func() {
		mu.Lock()
		std = prev
		mu.Unlock()
	}
}

// Get returns the underlying zerolog logger for structured call sites.
func Get() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := std
	return &l
}

func newLogger(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// LogErr logs the provided error (if non-nil) and returns it unchanged.
// It is meant to be used inline when propagating errors up the call stack.
func LogErr(err error) error {
	if err == nil {
		return nil
	}
	logErrorWithSkip(err, skipForPublicAPI)
	return err
}

// LogError logs a formatted error message and returns it as an error.
func LogError(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	logErrorWithSkip(err, skipForPublicAPI)
	return err
}

// Error logs the provided error (if non-nil).
func Error(err error) {
	if err == nil {
		return
	}
	logErrorWithSkip(err, skipForPublicAPI)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	logWithSkip(zerolog.WarnLevel, skipForPublicAPI, fmt.Sprintf(format, args...), nil)
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	logWithSkip(zerolog.InfoLevel, skipForPublicAPI, fmt.Sprintf(format, args...), nil)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	logWithSkip(zerolog.DebugLevel, skipForPublicAPI, fmt.Sprintf(format, args...), nil)
}

const skipForPublicAPI = 3

func logErrorWithSkip(err error, skip int) {
	logWithSkip(zerolog.ErrorLevel, skip+1, err.Error(), err)
}

func logWithSkip(level zerolog.Level, skip int, message string, err error) {
	mu.RLock()
	l := std
	mu.RUnlock()

	event := l.WithLevel(level)
	if event == nil {
		return
	}
	if err != nil {
		event = event.Err(err)
	}

	pcs := make([]uintptr, 1)
	if n := runtime.Callers(skip, pcs); n > 0 {
		frame, _ := runtime.CallersFrames(pcs).Next()
		file := filepath.Base(frame.File)
		funcName := frame.Function
		if file == "" {
			file = "unknown"
		}
		if funcName == "" {
			funcName = "unknown"
		}
		event = event.Str("caller", file+":"+funcName)
	}

	event.Msg(message)
}
