// Package logx is the process-wide logging facade: structured JSON output via
// zap, with secret redaction and size-bounded messages layered on top.
// Credentials are registered as secrets before the first network call so they
// can never leak into logs.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	logger  = zap.NewNop()
	secrets = make([]string, 0)
	verbose bool
)

// Init wires the global logger to w at the given minimum level. Call once at
// startup; before Init every log call is a no-op.
func Init(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		parseLevel(level),
	)
	mu.Lock()
	logger = zap.New(core)
	mu.Unlock()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetVerbose toggles verbose output (no truncation of large messages).
func SetVerbose(v bool) { mu.Lock(); verbose = v; mu.Unlock() }

// Verbose returns whether verbose output is enabled.
func Verbose() bool { mu.RLock(); defer mu.RUnlock(); return verbose }

// RegisterSecret adds a string to be redacted from all output.
func RegisterSecret(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	mu.Lock()
	secrets = append(secrets, s)
	mu.Unlock()
}

// RegisterSecrets adds multiple secrets for redaction.
func RegisterSecrets(list []string) {
	for _, s := range list {
		RegisterSecret(s)
	}
}

// Debugf logs a debug message.
func Debugf(format string, args ...any) { emit(zapcore.DebugLevel, format, args...) }

// Infof logs an info message.
func Infof(format string, args ...any) { emit(zapcore.InfoLevel, format, args...) }

// Warnf logs a warning message.
func Warnf(format string, args ...any) { emit(zapcore.WarnLevel, format, args...) }

// Errorf logs an error message.
func Errorf(format string, args ...any) { emit(zapcore.ErrorLevel, format, args...) }

// Sync flushes buffered entries; safe to call on shutdown.
func Sync() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	_ = l.Sync()
}

func emit(lvl zapcore.Level, format string, args ...any) {
	mu.RLock()
	l := logger
	v := verbose
	mu.RUnlock()

	msg := Redact(fmt.Sprintf(format, args...))
	if !v {
		msg = truncate(msg, 2*1024)
	}
	if ce := l.Check(lvl, msg); ce != nil {
		ce.Write()
	}
}

// Redact replaces every registered secret in s with a marker.
func Redact(s string) string {
	mu.RLock()
	defer mu.RUnlock()
	out := s
	for _, sec := range secrets {
		if sec == "" {
			continue
		}
		out = strings.ReplaceAll(out, sec, "[REDACTED]")
	}
	return out
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// keep the last few chars to aid context
	suffix := "… [truncated]"
	if limit > len(suffix)+10 {
		head := s[:limit-len(suffix)-10]
		tail := s[len(s)-10:]
		return head + suffix + tail
	}
	return s[:limit]
}
