package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats supported by the logger
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options configures a Logger.
type Options struct {
	// Level is one of DEBUG, INFO, WARN, ERROR. Defaults to INFO.
	Level string
	// Format is "json" or "console". Defaults to "json".
	Format string
	// File, when non-empty, sends output to this path with size-based
	// rotation. When empty, output goes to stderr.
	File string
	// MaxSizeMB is the rotation threshold in megabytes. Defaults to 50.
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep. Defaults to 5.
	MaxBackups int
	// MaxAgeDays is the maximum age of rotated files. 0 keeps them forever.
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// New creates a Logger from the given options. When opts.File is set, output
// goes to that path with lumberjack rotation; otherwise it goes to stderr.
// The returned logger's level can be changed at runtime via SetLevel.
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(parseLevel(opts.Level))

	var encoder zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case FormatConsole:
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	var sink zapcore.WriteSyncer
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	} else {
		sink, _, _ = zap.Open("stderr")
	}

	core := zapcore.NewCore(encoder, sink, level)
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &Logger{zl: zl, level: level}, nil
}

// parseLevel converts a string log level to a zap level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// WithSession returns a new Logger with the session ID added to all log entries.
// This creates a child logger that inherits all existing attributes.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.withFields(zap.String("session_id", sessionID))
}

// WithParticipant returns a new Logger with the participant ID added to all
// log entries. This creates a child logger that inherits all existing attributes.
func (l *Logger) WithParticipant(participantID string) *Logger {
	return l.withFields(zap.String("participant_id", participantID))
}

// WithPhase returns a new Logger with the phase name added to all log entries.
// This creates a child logger that inherits all existing attributes.
func (l *Logger) WithPhase(phase string) *Logger {
	return l.withFields(zap.String("phase", phase))
}

// WithComponent returns a new Logger tagged with a component name
// ("router", "relay", "registry", ...).
func (l *Logger) WithComponent(name string) *Logger {
	return l.withFields(zap.String("component", name))
}

// With returns a new Logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments.
// This creates a child logger that inherits all existing attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return l.withFields(fieldsFromArgs(args)...)
}

// withFields creates a new Logger with additional attributes.
func (l *Logger) withFields(fields ...zap.Field) *Logger {
	return &Logger{zl: l.zl.With(fields...), level: l.level}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
// Keys and values are provided as alternating arguments.
func (l *Logger) Debug(msg string, args ...any) {
	l.zl.Debug(msg, fieldsFromArgs(args)...)
}

// Info logs a message at INFO level with optional key-value pairs.
// Keys and values are provided as alternating arguments.
func (l *Logger) Info(msg string, args ...any) {
	l.zl.Info(msg, fieldsFromArgs(args)...)
}

// Warn logs a message at WARN level with optional key-value pairs.
// Keys and values are provided as alternating arguments.
func (l *Logger) Warn(msg string, args ...any) {
	l.zl.Warn(msg, fieldsFromArgs(args)...)
}

// Error logs a message at ERROR level with optional key-value pairs.
// Keys and values are provided as alternating arguments.
func (l *Logger) Error(msg string, args ...any) {
	l.zl.Error(msg, fieldsFromArgs(args)...)
}

// fieldsFromArgs converts alternating key-value arguments into zap fields.
// Non-string keys and a dangling final value are skipped.
func fieldsFromArgs(args []any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, ok := args[i+1].(error); ok && key == "error" {
			fields = append(fields, zap.Error(err))
			continue
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}

// SetLevel changes the logger's level at runtime. All child loggers created
// from the same root observe the change.
func (l *Logger) SetLevel(level string) {
	l.level.SetLevel(parseLevel(level))
}

// Enabled reports whether the given level would currently be logged.
func (l *Logger) Enabled(level string) bool {
	return l.level.Enabled(parseLevel(level))
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.zl.Sync()
}

// Zap exposes the underlying zap logger for libraries that want one directly.
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// NopLogger returns a Logger that discards all log output.
// Useful for testing or when logging is disabled.
func NopLogger() *Logger {
	return &Logger{
		zl:    zap.NewNop(),
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

// ParseLevel converts a string level to the corresponding constant.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return LevelDebug
	case LevelInfo:
		return LevelInfo
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
