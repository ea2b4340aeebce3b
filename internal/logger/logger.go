package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger based on the given configuration
func Init(level string, isService bool) error {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()

	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetLogLevel(lvl)

	return nil
}

// InitWriter points the logger at w without console formatting. Used by tests.
func InitWriter(w io.Writer, level LogLevel) {
	log = zerolog.New(w).With().Timestamp().Logger()
	SetLogLevel(level)
}

// ParseLevel maps a configured level name to a LogLevel. An empty name
// selects the default, warn.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "", "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return WarnLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return withCode(log.Error(), err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return withCode(log.Fatal(), err)
}

func withCode(e *zerolog.Event, err errors.Error) *LogEvent {
	return &LogEvent{e.
		Str("error_code", string(err.Code())).
		Str("error_message", err.Error()).
		AnErr("error", err.Unwrap())}
}

// Default returns a Logger backed by the package logger.
func Default() Logger {
	return &contextLogger{get: func() zerolog.Logger { return log }}
}

// Component returns a Logger that tags every event with the component name.
func Component(name string) Logger {
	return Default().With("component", name)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	nop := zerolog.Nop()
	return &contextLogger{get: func() zerolog.Logger { return nop }}
}

type contextLogger struct {
	get    func() zerolog.Logger
	fields []string
}

func (l *contextLogger) logger() zerolog.Logger {
	ctx := l.get().With()
	for i := 0; i+1 < len(l.fields); i += 2 {
		ctx = ctx.Str(l.fields[i], l.fields[i+1])
	}

	return ctx.Logger()
}

func (l *contextLogger) Debug() *LogEvent {
	zl := l.logger()
	return &LogEvent{zl.Debug()}
}

func (l *contextLogger) Info() *LogEvent {
	zl := l.logger()
	return &LogEvent{zl.Info()}
}

func (l *contextLogger) Warn() *LogEvent {
	zl := l.logger()
	return &LogEvent{zl.Warn()}
}

func (l *contextLogger) Error() *LogEvent {
	zl := l.logger()
	return &LogEvent{zl.Error()}
}

func (l *contextLogger) ErrorWithCode(err errors.Error) *LogEvent {
	zl := l.logger()
	return withCode(zl.Error(), err)
}

func (l *contextLogger) ErrorWithContext(err errors.Error, component, operation string) *LogEvent {
	e := l.ErrorWithCode(err)
	e.Str("component", component).Str("operation", operation)

	return e
}

func (l *contextLogger) With(key, value string) Logger {
	fields := make([]string, 0, len(l.fields)+2)
	fields = append(fields, l.fields...)
	fields = append(fields, key, value)

	return &contextLogger{get: l.get, fields: fields}
}
