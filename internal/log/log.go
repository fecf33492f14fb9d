// Package log provides leveled, categorized logging for port-watcher.
// Entries are written as single key=value lines. Output defaults to stderr at
// warn level; the TUI redirects it to a file via tea.LogToFile or discards it.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Level represents log severity.
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
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Category groups related log messages.
type Category string

const (
	CatScan     Category = "scan"     // Listing sockets and parsing tool output
	CatKill     Category = "kill"     // Process termination
	CatRegistry Category = "registry" // Port list state and auto refresh
	CatConfig   Category = "config"   // Configuration loading
	CatUI       Category = "ui"       // Terminal UI events
)

type logger struct {
	mu       sync.Mutex
	writer   io.Writer
	closer   io.Closer
	minLevel Level
}

var std = &logger{writer: os.Stderr, minLevel: LevelWarn}

// Init sends log output to the file at path, appending, and lowers the
// minimum level to debug. The returned func closes the file.
func Init(path string) (func(), error) {
	f, err := tea.LogToFile(path, "port-watcher")
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	std.mu.Lock()
	std.writer = f
	std.closer = f
	std.minLevel = LevelDebug
	std.mu.Unlock()

	return func() {
		std.mu.Lock()
		defer std.mu.Unlock()
		if std.closer != nil {
			_ = std.closer.Close()
			std.closer = nil
		}
		std.writer = io.Discard
	}, nil
}

// SetOutput replaces the log destination.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	std.writer = w
	std.mu.Unlock()
}

// SetMinLevel sets the minimum level that is written.
func SetMinLevel(level Level) {
	std.mu.Lock()
	std.minLevel = level
	std.mu.Unlock()
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields...)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields...)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields...)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields...)
}

// ErrorErr logs an error with the error value appended as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	if err != nil {
		fields = append(fields, "error", err.Error())
	} else {
		fields = append(fields, "error", "<nil>")
	}
	write(LevelError, cat, msg, fields...)
}

func write(level Level, cat Category, msg string, fields ...any) {
	std.mu.Lock()
	defer std.mu.Unlock()

	if level < std.minLevel || std.writer == nil {
		return
	}

	// Format: 2026-01-02T15:04:05 [ERROR] [scan] message key=value key2=value2
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(std.writer, b.String())
}
