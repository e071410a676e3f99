package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with key/value convenience methods.
type Logger struct {
	zl     zerolog.Logger
	fields []interface{}
}

var global = NewConsole(os.Stderr, zerolog.InfoLevel)

// NewConsole creates a logger with human readable console output.
func NewConsole(w io.Writer, level zerolog.Level) *Logger {
	return NewWithWriter(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}, level)
}

// NewWithWriter creates a logger that writes JSON lines to w.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	zl := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// SetGlobal sets the global logger instance.
func SetGlobal(logger *Logger) {
	if logger != nil {
		global = logger
	}
}

// Global returns the global logger instance.
func Global() *Logger {
	return global
}

func (l *Logger) emit(e *zerolog.Event, msg string, fields []interface{}) {
	apply(e, l.fields)
	apply(e, fields)
	e.Msg(msg)
}

// apply adds key/value pairs to an event; a trailing key without value is dropped.
func apply(e *zerolog.Event, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, ok := fields[i+1].(error); ok {
			e.Str(key, err.Error())
			continue
		}
		e.Interface(key, fields[i+1])
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...interface{}) { l.emit(l.zl.Debug(), msg, fields) }

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...interface{}) { l.emit(l.zl.Info(), msg, fields) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.emit(l.zl.Warn(), msg, fields) }

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...interface{}) { l.emit(l.zl.Error(), msg, fields) }

// With creates a child logger carrying additional fields.
func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{zl: l.zl, fields: merged}
}

// Debug logs a debug message using the global logger.
func Debug(msg string, fields ...interface{}) { global.Debug(msg, fields...) }

// Info logs an info message using the global logger.
func Info(msg string, fields ...interface{}) { global.Info(msg, fields...) }

// Warn logs a warning message using the global logger.
func Warn(msg string, fields ...interface{}) { global.Warn(msg, fields...) }

// Error logs an error message using the global logger.
func Error(msg string, fields ...interface{}) { global.Error(msg, fields...) }

// With creates a child of the global logger.
func With(fields ...interface{}) *Logger { return global.With(fields...) }
