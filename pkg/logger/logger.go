// Package logger is a printf-style facade over zap used across the service.
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap logger with printf helpers.
type Logger struct {
	zapLogger *zap.Logger
}

// Options controls how New builds the logger.
type Options struct {
	Level string // debug, info, warn, error
	File  string // empty logs to stderr; otherwise rotated with lumberjack
}

var defaultLogger = &Logger{zapLogger: zap.NewNop()}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	cfg.CallerKey = "caller"
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.MessageKey = "message"
	return cfg
}

// New builds a JSON logger. When opts.File is set, output is rotated at 100MB,
// keeping 5 backups for 30 days.
func New(opts Options) (*Logger, error) {
	level := ParseLevel(opts.Level)

	if opts.File == "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.EncoderConfig = encoderConfig()
		zl, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			return nil, err
		}
		return &Logger{zapLogger: zl}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), level)
	return &Logger{zapLogger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))}, nil
}

// SetDefault replaces the package-level logger.
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	_ = defaultLogger.zapLogger.Sync()
	defaultLogger = l
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger { return l.zapLogger }

func (l *Logger) Debug(format string, args ...any) { l.zapLogger.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Info(format string, args ...any)  { l.zapLogger.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warn(format string, args ...any)  { l.zapLogger.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Error(format string, args ...any) { l.zapLogger.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatal(format string, args ...any) { l.zapLogger.Fatal(fmt.Sprintf(format, args...)) }
func (l *Logger) Sync()                            { _ = l.zapLogger.Sync() }

func Debug(format string, args ...any) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...any)  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...any)  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...any) { defaultLogger.Error(format, args...) }
func Fatal(format string, args ...any) { defaultLogger.Fatal(format, args...) }
func Sync()                            { defaultLogger.Sync() }

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
