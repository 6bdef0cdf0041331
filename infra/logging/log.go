package logging

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"
)

// A Level is a logging priority. Higher levels are more important.
type Level int8

// Logging levels (matching zap core internals).
const (
	DebugLevel Level = -1
	InfoLevel  Level = 0
	WarnLevel  Level = 1
	ErrorLevel Level = 2
	PanicLevel Level = 4
	FatalLevel Level = 5
)

// ParseLevel parses a level name such as "info" or "WARN".
func ParseLevel(s string) (Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return InfoLevel, errors.Errorf("unknown log level %q", s)
	}
	return Level(l), nil
}

func (l Level) String() string {
	return zapcore.Level(l).String()
}

func (l Level) ZapLevel() zapcore.Level {
	return zapcore.Level(l)
}

// Logger is a named zap logger. Loggers derived with Named and With share
// the level of the logger they came from.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
	name  string
}

func New(core zapcore.Core, level zap.AtomicLevel) *Logger {
	return &Logger{
		Logger: zap.New(core, zap.AddCaller()),
		level:  level,
	}
}

func (log *Logger) GetLevel() Level {
	return Level(log.level.Level())
}

func (log *Logger) GetName() string {
	return log.name
}

func (log *Logger) SetLevel(level Level) {
	if log.level.Level() == level.ZapLevel() {
		return
	}
	log.level.SetLevel(level.ZapLevel())
}

func (log *Logger) Named(name string) *Logger {
	newName := name
	if log.name != "" {
		newName = fmt.Sprintf("%s.%s", log.name, name)
	}
	return &Logger{
		Logger: log.Logger.Named(name),
		level:  log.level,
		name:   newName,
	}
}

func (log *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: log.Logger.With(fields...),
		level:  log.level,
		name:   log.name,
	}
}

// AtExit flushes the logs. Meant to be deferred right after the logger is
// created.
func (log *Logger) AtExit() {
	if log.Logger != nil {
		_ = log.Logger.Sync()
	}
}

// StdLogger adapts the logger to libraries that take a *log.Logger.
func (log *Logger) StdLogger() *stdlog.Logger {
	return zap.NewStdLog(log.Logger)
}

// Printf logs at debug level, for clients that take a printf-style logger.
func (log *Logger) Printf(s string, args ...interface{}) {
	log.Logger.WithOptions(zap.AddCallerSkip(1)).Sugar().Debugf(strings.TrimSpace(s), args...)
}

// Errorf logs at error level, for clients that take a printf-style logger.
func (log *Logger) Errorf(s string, args ...interface{}) {
	log.Logger.WithOptions(zap.AddCallerSkip(1)).Sugar().Errorf(strings.TrimSpace(s), args...)
}

func encoderConfig(env string) (zapcore.EncoderConfig, zapcore.Encoder) {
	if env == "dev" {
		cfg := zapcore.EncoderConfig{
			CallerKey:      "C",
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeName:     zapcore.FullNameEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			LevelKey:       "L",
			LineEnding:     "\n",
			MessageKey:     "M",
			NameKey:        "N",
			TimeKey:        "T",
		}
		return cfg, zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zapcore.EncoderConfig{
		CallerKey:      "caller",
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		LevelKey:       "level",
		LineEnding:     "\n",
		MessageKey:     "message",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		TimeKey:        "@timestamp",
	}
	return cfg, zapcore.NewJSONEncoder(cfg)
}

// NewLoggerFromConfig builds the process logger. "dev" logs to the console
// at debug level, anything else logs JSON at level.
func NewLoggerFromConfig(cfg Config, level Level) *Logger {
	_, enc := encoderConfig(cfg.Environment)
	if cfg.Environment == "dev" && level > DebugLevel {
		level = DebugLevel
	}
	atom := zap.NewAtomicLevelAt(level.ZapLevel())

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stdout)
	if cfg.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}
	return New(zapcore.NewCore(enc, sink, atom), atom)
}

// NewTestLogger logs nothing.
func NewTestLogger() *Logger {
	atom := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return New(zapcore.NewNopCore(), atom)
}

// NewObservedLogger records every entry at or above level for inspection
// in tests.
func NewObservedLogger(level Level) (*Logger, *observer.ObservedLogs) {
	atom := zap.NewAtomicLevelAt(level.ZapLevel())
	core, logs := observer.New(atom)
	return New(core, atom), logs
}
