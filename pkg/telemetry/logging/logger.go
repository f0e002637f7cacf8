package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Format is the log output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatText    Format = "text"
	FormatConsole Format = "console"
)

// Config contains configuration for the Logger.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string

	// Format is the output format ("json", "text", "console").
	Format string

	// AddSource includes file and line number in logs.
	AddSource bool

	// Path, if set, is a file the logger writes to instead of stdout.
	// SIGUSR1 rotation (Reopen) only has an effect when Path is set.
	Path string
}

// Logger wraps *slog.Logger with a reopenable underlying file, the hook
// SIGUSR1 uses to rotate access/server logs per spec.md §4.6 step 14.
type Logger struct {
	slog   *slog.Logger
	level  slog.Level
	format Format
	writer *reopenableFile // nil when writing to stdout
}

// New creates a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	var writer *reopenableFile
	var out io.Writer = os.Stdout
	if cfg.Path != "" {
		writer, err = newReopenableFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		out = writer
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	switch format {
	case FormatText, FormatConsole:
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{
		slog:   slog.New(handler),
		level:  level,
		format: format,
		writer: writer,
	}, nil
}

// Reopen closes and reopens the log file at the same path, for log
// rotation via external tools (logrotate, SIGUSR1). A no-op when the
// logger writes to stdout.
func (l *Logger) Reopen() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.reopen()
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a derived Logger with args attached to every record.
// The derived logger shares the same reopenable writer.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		level:  l.level,
		format: l.format,
		writer: l.writer,
	}
}

// Close releases the underlying file, if any.
func (l *Logger) Close() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

// reopenableFile is an io.Writer backed by an *os.File that can be closed
// and reopened at the same path without callers needing to know a rotation
// happened — every Write takes a lock and goes through whatever *os.File is
// current.
type reopenableFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func newReopenableFile(path string) (*reopenableFile, error) {
	f, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	return &reopenableFile{path: path, f: f}, nil
}

func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (w *reopenableFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Write(p)
}

func (w *reopenableFile) reopen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := openLogFile(w.path)
	if err != nil {
		return err
	}
	old := w.f
	w.f = next
	return old.Close()
}

func (w *reopenableFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO", "":
		return slog.LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (Format, error) {
	switch formatStr {
	case "json", "JSON", "":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	case "console", "CONSOLE":
		return FormatConsole, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", formatStr)
	}
}
