// Package logger provides a small logging interface for fleetwatch components.
// The server, agent and store log through it without depending on a concrete
// implementation, so the CLI decides whether output goes to stderr, a log
// file, or nowhere (while the dashboard owns the terminal).
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "FLEETWATCH_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// stdLogger writes through a *log.Logger.
// Debug messages are only printed when FLEETWATCH_DEBUG is set.
type stdLogger struct {
	prefix string
	out    *log.Logger
}

// NewEnvLogger creates a logger writing to the standard log package output.
// The prefix is prepended to all log messages (e.g., "[server]").
func NewEnvLogger(prefix string) Logger {
	return &stdLogger{prefix: prefix, out: log.Default()}
}

// NewWriterLogger creates a logger that writes to w instead of stderr.
// Used for the server's --log-file.
func NewWriterLogger(w io.Writer, prefix string) Logger {
	return &stdLogger{prefix: prefix, out: log.New(w, "", log.LstdFlags)}
}

func (l *stdLogger) line(format string) string {
	if l.prefix == "" {
		return format
	}
	return l.prefix + " " + format
}

func (l *stdLogger) Debug(format string, args ...interface{}) {
	if os.Getenv(DebugEnv) != "" {
		l.out.Printf(l.line(format), args...)
	}
}

func (l *stdLogger) Info(format string, args ...interface{}) {
	l.out.Printf(l.line(format), args...)
}

func (l *stdLogger) Warn(format string, args ...interface{}) {
	l.out.Printf(l.line("WARN: "+format), args...)
}

func (l *stdLogger) Error(format string, args ...interface{}) {
	l.out.Printf(l.line("ERROR: "+format), args...)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Safe for concurrent use: server handlers log from many goroutines.
type BufferLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) record(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) {
	l.record("debug", format, args...)
}

func (l *BufferLogger) Info(format string, args ...interface{}) {
	l.record("info", format, args...)
}

func (l *BufferLogger) Warn(format string, args ...interface{}) {
	l.record("warn", format, args...)
}

func (l *BufferLogger) Error(format string, args ...interface{}) {
	l.record("error", format, args...)
}

// Messages returns a copy of the captured messages.
func (l *BufferLogger) Messages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = l.messages[:0]
}
