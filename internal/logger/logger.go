// Package logger provides the gateway's structured logging facility: a
// log/slog wrapper with a runtime-adjustable level/format and a
// request-scoped LogContext for correlation.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level mirrors slog.Level but keeps the gateway's own vocabulary so
// callers don't need to import log/slog directly.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures the logger at startup from internal/config.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value // "text" or "json"

	mu       sync.RWMutex
	slogger  *slog.Logger
	output   io.Writer = os.Stdout
	useColor bool
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	useColor = isTerminal(os.Stdout)
	rebuild()
}

// Init applies a Config, opening a log file if Output names one.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, color, err := resolveOutput(cfg.Output)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		mu.Lock()
		output = w
		useColor = color
		mu.Unlock()
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	rebuild()
	return nil
}

func resolveOutput(spec string) (io.Writer, bool, error) {
	switch strings.ToLower(spec) {
	case "stdout", "":
		return os.Stdout, isTerminal(os.Stdout), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr), nil
	default:
		f, err := os.OpenFile(spec, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, false, fmt.Errorf("open log file %q: %w", spec, err)
		}
		return f, false, nil
	}
}

// isTerminal reports whether w looks like an interactive terminal. It is a
// portable, syscall-free heuristic based on the file mode bit, sufficient
// for deciding whether to emit ANSI color codes.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(toSlogLevel(Level(currentLevel.Load())))
	opts := &slog.HandlerOptions{Level: levelVar}

	format, _ := currentFormat.Load().(string)
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = newColorTextHandler(output, opts, useColor)
	}
	slogger = slog.New(handler)
}

// SetLevel adjusts the minimum emitted level at runtime.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "WARN":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	default:
		return
	}
	rebuild()
}

// SetFormat switches between "text" and "json" output at runtime.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	rebuild()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with key/value pairs, e.g.
// Debug("descriptor skipped", "endpoint", name, "error", err).
func Debug(msg string, args ...any) {
	if Level(currentLevel.Load()) > LevelDebug {
		return
	}
	current().Debug(msg, args...)
}

// Info logs at info level with key/value pairs.
func Info(msg string, args ...any) {
	if Level(currentLevel.Load()) > LevelInfo {
		return
	}
	current().Info(msg, args...)
}

// Warn logs at warn level with key/value pairs.
func Warn(msg string, args ...any) {
	if Level(currentLevel.Load()) > LevelWarn {
		return
	}
	current().Warn(msg, args...)
}

// Error logs at error level with key/value pairs. Errors are always
// emitted regardless of the configured minimum level.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// With returns a child slog.Logger with the given attributes pre-bound,
// for handlers that want to avoid repeating fields on every call.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}
