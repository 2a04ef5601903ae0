package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the file NewLogger writes inside its directory.
const LogFileName = "debug.log"

var slogLevels = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// sink owns the log file. Every logger derived from one root shares it.
type sink struct {
	mu   sync.Mutex
	file *os.File
}

func (s *sink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Logger writes JSON lines through log/slog. Child loggers carry extra
// attributes and share the parent's output. It is safe for concurrent use.
type Logger struct {
	slog *slog.Logger
	out  *sink
}

// NewLogger creates a Logger appending to {logDir}/debug.log, creating the
// directory if needed. An empty logDir logs to stderr. Unknown levels
// fall back to INFO.
func NewLogger(logDir string, level string) (*Logger, error) {
	if logDir == "" {
		return NewWriterLogger(os.Stderr, level), nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(logDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := NewWriterLogger(file, level)
	l.out.file = file
	return l, nil
}

// NewWriterLogger creates a Logger writing JSON lines to w. The caller owns w.
func NewWriterLogger(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevels[ParseLevel(level)]})
	return &Logger{slog: slog.New(handler), out: &sink{}}
}

// NopLogger returns a Logger that discards everything. Components default
// to it when no logger is configured.
func NopLogger() *Logger {
	return &Logger{slog: slog.New(slog.DiscardHandler), out: &sink{}}
}

// ParseLevel normalizes a level name to one of the Level constants,
// defaulting to LevelInfo.
func ParseLevel(level string) string {
	l := strings.ToUpper(strings.TrimSpace(level))
	if _, ok := slogLevels[l]; ok {
		return l
	}
	return LevelInfo
}

// WithComponent tags every entry with the emitting component
// ("contentcache", "watch", "searchindex", ...).
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// WithKind tags every entry with an entity kind ("tasks", "documents",
// "decisions").
func (l *Logger) WithKind(kind string) *Logger {
	return l.With("kind", kind)
}

// With returns a child logger with alternating key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{slog: l.slog.With(args...), out: l.out}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *Logger) log(level slog.Level, msg string, args []any) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.slog.Log(context.Background(), level, msg, args...)
}

// Close syncs and closes the log file. Loggers writing elsewhere have
// nothing to close. Entries logged after Close are dropped by the closed
// file.
func (l *Logger) Close() error {
	return l.out.close()
}
