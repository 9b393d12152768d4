// Package logging provides config-driven categorized logging for multipoly.
// Every category is a named child of one zap logger; categories can be
// switched off individually in the logging section of multipoly.yaml.
// Until Initialize is called every logger is a no-op.
package logging

import (
	"fmt"
	"sync"
	"time"

	"multipoly/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Boot/initialization
	CategoryKernel  Category = "kernel"  // Fact store and backend selection
	CategoryStore   Category = "store"   // Mangle backend internals
	CategoryTutor   Category = "tutor"   // Domain queries and advisory reports
	CategoryCache   Category = "cache"   // Advice cache
	CategoryWatcher Category = "watcher" // Program directory watcher
	CategoryAudit   Category = "audit"   // Knowledge mutations
)

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories config.LoggingConfig
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the process logger from config. Format "json" selects
// zap's production encoder, anything else the console encoder.
func Initialize(cfg config.LoggingConfig) error {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.DisableStacktrace = true
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	Use(logger, cfg)
	Get(CategoryBoot).Debug("logging initialized (level=%s format=%s)", level, cfg.Format)
	return nil
}

// Use installs an already built zap logger. Tests use it with zaptest/observer.
func Use(logger *zap.Logger, cfg config.LoggingConfig) {
	mu.Lock()
	defer mu.Unlock()
	base = logger
	categories = cfg
	loggers = make(map[Category]*Logger)
}

// Reset returns to the no-op logger.
func Reset() {
	Use(zap.NewNop(), config.LoggingConfig{})
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return base.Sync()
}

// Zap exposes the underlying logger for callers that want typed fields.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categories.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	zl := zap.NewNop()
	if categories.IsCategoryEnabled(string(category)) {
		zl = base.Named(string(category))
	}
	l := &Logger{category: category, sugar: zl.Sugar()}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger carrying extra key/value context.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Kernel logs to the kernel category
func Kernel(format string, args ...interface{}) {
	Get(CategoryKernel).Info(format, args...)
}

// KernelDebug logs debug to the kernel category
func KernelDebug(format string, args ...interface{}) {
	Get(CategoryKernel).Debug(format, args...)
}

// KernelWarn logs warning to the kernel category
func KernelWarn(format string, args ...interface{}) {
	Get(CategoryKernel).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// StoreWarn logs warning to the store category
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

// TutorDebug logs debug to the tutor category
func TutorDebug(format string, args ...interface{}) {
	Get(CategoryTutor).Debug(format, args...)
}

// Cache logs to the cache category
func Cache(format string, args ...interface{}) {
	Get(CategoryCache).Info(format, args...)
}

// CacheDebug logs debug to the cache category
func CacheDebug(format string, args ...interface{}) {
	Get(CategoryCache).Debug(format, args...)
}

// Watcher logs to the watcher category
func Watcher(format string, args ...interface{}) {
	Get(CategoryWatcher).Info(format, args...)
}

// WatcherDebug logs debug to the watcher category
func WatcherDebug(format string, args ...interface{}) {
	Get(CategoryWatcher).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Info("%s completed in %v", t.op, elapsed)
	return elapsed
}
