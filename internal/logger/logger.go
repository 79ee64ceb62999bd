// Package logger builds the zap loggers used by the CLI and server.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured field keys shared across packages.
const (
	FieldTenantID  = "tenant_id"
	FieldSessionID = "session_id"
	FieldUserID    = "user_id"
)

// New returns a console or JSON logger at info level, or debug level when
// debug is set. Logs go to stderr so stdout stays free for command output.
func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"

	if json {
		encoding = "json"
	}

	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}
	return cfg.Build()
}

// SessionFields returns the fields identifying one run, skipping blanks.
func SessionFields(tenantID, userID, sessionID string) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	for _, f := range []struct{ key, value string }{
		{FieldTenantID, tenantID},
		{FieldUserID, userID},
		{FieldSessionID, sessionID},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			fields = append(fields, zap.String(f.key, v))
		}
	}
	return fields
}

// WithSession attaches the run identifiers to logger. A nil logger becomes a
// no-op logger.
func WithSession(logger *zap.Logger, tenantID, userID, sessionID string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := SessionFields(tenantID, userID, sessionID)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
