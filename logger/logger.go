// Package logger provides a structured logging interface with zerolog-backed
// implementations, including optional daily file rotation for persistent logs.
// Server components take a Logger at setup and never write to the log backend
// directly.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Field represents a key-value pair for structured log output.
// Use Fields with Logger methods to attach contextual data to log entries.
type Field struct {
	Key   string
	Value any
}

// Logger is an interface for structured logging. Implementations write log
// entries at different levels (Debug, Info, Warn, Error) and support
// attaching structured fields. Loggers may be derived with With for
// session-scoped or component-scoped fields.
//
// The *Enabled methods let hot paths skip building log entries entirely when
// a level is filtered out.
type Logger interface {
	// Debug logs a message at debug level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Debug(msg string, fields ...Field)

	// Info logs a message at info level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Info(msg string, fields ...Field)

	// Warn logs a message at warn level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Warn(msg string, fields ...Field)

	// Error logs a message at error level with optional structured fields.
	//
	// Parameters:
	//   - msg: The log message
	//   - fields: Optional key-value pairs to include in the log entry
	Error(msg string, fields ...Field)

	// DebugEnabled reports whether debug-level entries would be written.
	//
	// Returns:
	//   - true if debug logging is enabled
	DebugEnabled() bool

	// InfoEnabled reports whether info-level entries would be written.
	//
	// Returns:
	//   - true if info logging is enabled
	InfoEnabled() bool

	// ErrorEnabled reports whether error-level entries would be written.
	//
	// Returns:
	//   - true if error logging is enabled
	ErrorEnabled() bool

	// With returns a new Logger that includes the given fields in all
	// subsequent log entries. The original Logger is unchanged.
	//
	// Parameters:
	//   - fields: Key-value pairs to attach to the derived logger
	//
	// Returns:
	//   - A new Logger with the specified fields
	With(fields ...Field) Logger

	// Close releases resources held by the logger (e.g. file handles).
	// It is safe to call multiple times.
	//
	// Returns:
	//   - An error if closing resources fails
	Close() error
}

// zerologLogger is the zerolog-based implementation of Logger.
type zerologLogger struct {
	logger         zerolog.Logger
	fileWriter     *DailyFileWriter
	ownsFileWriter bool
}

// NewZerologLogger builds a Logger that wraps the given zerolog.Logger,
// adding a service name and timestamp to all entries and filtering by level.
// Output goes only to the provided logger (e.g. stdout); no file is created.
//
// Parameters:
//   - l: The zerolog.Logger to wrap
//   - serviceName: Name of the service, added as a field to every log entry
//   - level: Minimum level to log (e.g. zerolog.InfoLevel)
//
// Returns:
//   - A Logger that writes through the given zerolog instance
func NewZerologLogger(l zerolog.Logger, serviceName string, level zerolog.Level) Logger {
	return &zerologLogger{
		logger:         l.With().Str("service", serviceName).Timestamp().Logger().Level(level),
		ownsFileWriter: false,
	}
}

// NewZerologFileLogger creates a Logger that writes to both stdout and
// daily-rotated log files in logDir. Log files are named {serviceName}_{date}.log.
// Panics if logDir cannot be created or the initial file writer cannot be set up.
//
// Parameters:
//   - serviceName: Name of the service, used in log entries and file names
//   - logDir: Directory for log files; created if it does not exist
//   - level: Minimum level to log (e.g. zerolog.InfoLevel)
//
// Returns:
//   - A Logger that writes to stdout and rotating files
func NewZerologFileLogger(serviceName string, logDir string, level zerolog.Level) Logger {
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		panic(fmt.Errorf("failed to create log directory: %w", err))
	}

	fileWriter, err := NewDailyFileWriter(serviceName, logDir)
	if err != nil {
		panic(fmt.Errorf("failed to create file writer: %w", err))
	}

	multi := io.MultiWriter(os.Stdout, fileWriter)
	return &zerologLogger{
		logger:         zerolog.New(multi).With().Str("service", serviceName).Timestamp().Logger().Level(level),
		fileWriter:     fileWriter,
		ownsFileWriter: true,
	}
}

// NewNopLogger returns a Logger that discards all entries. Useful as a
// default in embedding code and in tests that do not assert on log output.
//
// Returns:
//   - A Logger whose methods do nothing
func NewNopLogger() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

// Debug implements Logger.
func (z *zerologLogger) Debug(msg string, fields ...Field) {
	z.logger.Debug().Fields(toMap(fields)).Msg(msg)
}

// Info implements Logger.
func (z *zerologLogger) Info(msg string, fields ...Field) {
	z.logger.Info().Fields(toMap(fields)).Msg(msg)
}

// Warn implements Logger.
func (z *zerologLogger) Warn(msg string, fields ...Field) {
	z.logger.Warn().Fields(toMap(fields)).Msg(msg)
}

// Error implements Logger.
func (z *zerologLogger) Error(msg string, fields ...Field) {
	z.logger.Error().Fields(toMap(fields)).Msg(msg)
}

// DebugEnabled implements Logger.
func (z *zerologLogger) DebugEnabled() bool {
	return z.logger.GetLevel() <= zerolog.DebugLevel && z.logger.GetLevel() != zerolog.Disabled
}

// InfoEnabled implements Logger.
func (z *zerologLogger) InfoEnabled() bool {
	return z.logger.GetLevel() <= zerolog.InfoLevel && z.logger.GetLevel() != zerolog.Disabled
}

// ErrorEnabled implements Logger.
func (z *zerologLogger) ErrorEnabled() bool {
	return z.logger.GetLevel() <= zerolog.ErrorLevel && z.logger.GetLevel() != zerolog.Disabled
}

// With implements Logger.
func (z *zerologLogger) With(fields ...Field) Logger {
	return &zerologLogger{
		logger:         z.logger.With().Fields(toMap(fields)).Logger(),
		fileWriter:     z.fileWriter,
		ownsFileWriter: false,
	}
}

// Close implements Logger. Only the logger that created the file writer
// closes it; derived loggers share the writer without owning it.
func (z *zerologLogger) Close() error {
	if z.ownsFileWriter && z.fileWriter != nil {
		return z.fileWriter.Close()
	}

	return nil
}

func toMap(fields []Field) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}

	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}

	return m
}
