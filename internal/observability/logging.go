package observability

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/model"
)

// NewLogger builds the console's JSON logger. Errors are reserved for store
// and process failures, warnings for rejected requests and forced logouts,
// debug for cache and retry chatter.
func NewLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	return zc.Build()
}

// RequestLogger tags base with the session and correlation of the request
// in ctx. Anonymous requests get base back unchanged.
func RequestLogger(ctx context.Context, base *zap.Logger) *zap.Logger {
	rc := model.RequestContextFrom(ctx)
	if rc == nil {
		return base
	}
	fields := make([]zap.Field, 0, 4)
	if rc.SessionID != "" {
		fields = append(fields, zap.String("session_id", rc.SessionID), zap.String("subject_id", rc.SubjectID))
	}
	fields = append(fields, zap.String("correlation_id", rc.CorrelationID))
	if rc.TraceID != "" {
		fields = append(fields, zap.String("trace_id", rc.TraceID))
	}
	return base.With(fields...)
}

const redacted = "[REDACTED]"

// secretKeys are never written to logs, at any depth of a body.
var secretKeys = map[string]bool{
	"password":      true,
	"newPassword":   true,
	"oldPassword":   true,
	"otp":           true,
	"token":         true,
	"authorization": true,
	"accountNumber": true,
	"bankAccount":   true,
	"pin":           true,
}

// Redacted logs a request or response body under key with credentials and
// bank details masked.
func Redacted(key string, body any) zap.Field {
	raw, err := json.Marshal(body)
	if err != nil {
		return zap.String(key, redacted)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return zap.String(key, redacted)
	}
	return zap.Any(key, redact(v))
}

func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			if secretKeys[k] {
				t[k] = redacted
				continue
			}
			t[k] = redact(inner)
		}
		return t
	case []any:
		for i := range t {
			t[i] = redact(t[i])
		}
		return t
	}
	return v
}
