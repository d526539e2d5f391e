// Package logger is the application's tagged console logger.
//
// Call sites keep the short form Info("DB", "Opened ..."); the tag becomes a
// structured "tag" field on the underlying zap logger.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = mustBuild("info", "text")
)

// Init rebuilds the global logger. level is debug|info|warn|error,
// format is text|json.
func Init(level, format string) error {
	l, err := build(level, format)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the global logger. The previous one is flushed.
func Set(l *zap.Logger) {
	mu.Lock()
	prev := base
	base = l
	mu.Unlock()
	if prev != nil {
		_ = prev.Sync()
	}
}

// L returns the global zap logger for call sites that want typed fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func build(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "", "text", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableCaller = true
	return cfg.Build()
}

func mustBuild(level, format string) *zap.Logger {
	l, err := build(level, format)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Info logs an informational message under tag.
func Info(tag, msg string) {
	L().Info(msg, zap.String("tag", tag))
}

// Success logs a completed step under tag.
func Success(tag, msg string) {
	L().Info(msg, zap.String("tag", tag), zap.Bool("ok", true))
}

// Warn logs a recoverable problem under tag.
func Warn(tag, msg string) {
	L().Warn(msg, zap.String("tag", tag))
}

// Error logs a failure under tag.
func Error(tag, msg string) {
	L().Error(msg, zap.String("tag", tag))
}

// Banner prints the startup line.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	L().Info("sphere-cms starting", zap.String("version", version))
}

// Section marks the start of a phase in the log.
func Section(title string) {
	L().Info("── " + title + " ──")
}

// Stats logs a single key/value metric.
func Stats(key string, value interface{}) {
	L().Info("stat", zap.String("key", key), zap.Any("value", value))
}

// Server logs the listen address.
func Server(addr string) {
	L().Info("listening", zap.String("tag", "Server"), zap.String("addr", "http://"+addr))
}
