// Package logging provides config-driven categorized logging for the
// Isometry core: one logger per Category, lazily constructed and cached in
// a package-level registry, each backed directly by go.uber.org/zap.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies which subsystem a log line belongs to.
type Category string

const (
	CategoryImport    Category = "import"
	CategoryStore     Category = "store"
	CategoryQuery     Category = "query"
	CategoryPivot     Category = "pivot"
	CategorySubscribe Category = "subscribe"
	CategoryConfig    Category = "config"
)

// Field is a structured logging field; re-exported so callers don't need a
// direct zap import for the common case.
type Field = zap.Field

// ErrField wraps an error the way zap.Error does, under the name this
// package's call sites use.
func ErrField(err error) Field { return zap.Error(err) }

// Logger wraps a category-scoped *zap.Logger with printf-style helpers.
type Logger struct {
	category Category
	zl       *zap.Logger
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error(fmt.Sprintf(format, args...))
}

// WarnFields logs msg at warn level with structured zap fields attached,
// for call sites that have an error or other field to log rather than a
// printf-style message (see ErrField).
func (l *Logger) WarnFields(msg string, fields ...Field) {
	l.zl.Warn(msg, fields...)
}

var (
	mu       sync.RWMutex
	loggers  = make(map[Category]*Logger)
	base     *zap.Logger
	initOnce sync.Once
)

func ensureBase() *zap.Logger {
	initOnce.Do(func() {
		if base == nil {
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			cfg.Encoding = "console"
			l, err := cfg.Build()
			if err != nil {
				l = zap.NewNop()
			}
			base = l
		}
	})
	return base
}

// Initialize configures the logging backend from a LoggingConfig-shaped
// level/format. Call once at startup; safe to skip in tests, where
// ensureBase lazily supplies a sane default (warn level, console encoding).
func Initialize(level string, jsonFormat bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	if jsonFormat {
		cfg.Encoding = "json"
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	base = l
	loggers = make(map[Category]*Logger)
	mu.Unlock()
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns (creating if necessary) the logger for a category.
func Get(cat Category) *Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := &Logger{category: cat, zl: ensureBase().With(zap.String("category", string(cat)))}
	loggers[cat] = l
	return l
}

// Category convenience wrappers for the most frequently logged categories.
func Store(format string, args ...interface{})       { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})  { Get(CategoryStore).Debug(format, args...) }
func Import(format string, args ...interface{})      { Get(CategoryImport).Info(format, args...) }
func ImportDebug(format string, args ...interface{}) { Get(CategoryImport).Debug(format, args...) }
func Query(format string, args ...interface{})       { Get(CategoryQuery).Info(format, args...) }
func Pivot(format string, args ...interface{})       { Get(CategoryPivot).Info(format, args...) }
func Subscribe(format string, args ...interface{})   { Get(CategorySubscribe).Info(format, args...) }

// Timer measures and logs the duration of an operation at Debug level on
// Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

func StartTimer(cat Category, op string) *Timer {
	return &Timer{category: cat, op: op, start: time.Now()}
}

func (t *Timer) Stop() {
	Get(t.category).Debug("%s took %s", t.op, time.Since(t.start))
}
