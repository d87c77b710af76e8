// Package logger provides the tagged console logging used across the terminal.
// Every line carries a short component tag ("DB", "Ingest", "API") so output
// from concurrent realm ingestion stays readable.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = newConsole(zapcore.InfoLevel)
)

func newConsole(level zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Init replaces the global logger with a console logger at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func Init(level string) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		lvl = zapcore.InfoLevel
	}
	SetLogger(newConsole(lvl))
}

// SetLogger swaps the underlying zap logger (tests use an observer core).
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the underlying zap logger for callers that want structured fields.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func Debug(tag, msg string) {
	L().Debug(msg, zap.String("tag", tag))
}

func Info(tag, msg string) {
	L().Info(msg, zap.String("tag", tag))
}

// Success logs a completed step at info level with an ok marker.
func Success(tag, msg string) {
	L().Info(msg, zap.String("tag", tag), zap.Bool("ok", true))
}

func Warn(tag, msg string) {
	L().Warn(msg, zap.String("tag", tag))
}

func Error(tag, msg string) {
	L().Error(msg, zap.String("tag", tag))
}

// Banner prints the startup line.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	L().Info("WoW economy terminal", zap.String("version", version))
}

// Section marks the start of a logical block of output.
func Section(title string) {
	L().Info(fmt.Sprintf("== %s ==", title))
}

// Stats logs a single named counter, grouped for readability (12,345).
func Stats(key string, value int64) {
	L().Info(key, zap.String("value", humanize.Comma(value)))
}

// Server logs the listen address.
func Server(addr string) {
	L().Info("Listening", zap.String("tag", "Server"), zap.String("addr", "http://"+addr))
}
