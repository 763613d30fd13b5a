package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/model"
)

func TestNewLogger_levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		off     zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(config.ObservabilityConfig{LogLevel: tt.level})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.off))
		})
	}
}

func TestRequestLogger_sessionFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{
		SessionID:     "sess-1",
		SubjectID:     "admin-42",
		CorrelationID: "corr-abc",
		TraceID:       "trace-xyz",
	})

	RequestLogger(ctx, zap.New(core)).Info("signed in")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, map[string]any{
		"session_id":     "sess-1",
		"subject_id":     "admin-42",
		"correlation_id": "corr-abc",
		"trace_id":       "trace-xyz",
	}, logs.All()[0].ContextMap())
}

func TestRequestLogger_anonymousRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := model.WithRequestContext(context.Background(), &model.RequestContext{CorrelationID: "corr-1"})

	RequestLogger(ctx, zap.New(core)).Info("login attempt")
	RequestLogger(context.Background(), zap.New(core)).Info("health")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, map[string]any{"correlation_id": "corr-1"}, logs.All()[0].ContextMap())
	assert.Empty(t, logs.All()[1].ContextMap())
}

func TestRedacted(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	body := map[string]any{
		"email":    "ada@example.com",
		"password": "secret1",
		"bankDetails": map[string]any{
			"bankName":      "First Bank",
			"accountNumber": "0123456789",
		},
		"items": []any{map[string]any{"otp": "123456", "sku": "DL-1"}},
	}

	zap.New(core).Debug("backend rejected request", Redacted("body", body))

	got := logs.All()[0].ContextMap()["body"].(map[string]any)
	assert.Equal(t, "ada@example.com", got["email"])
	assert.Equal(t, "[REDACTED]", got["password"])
	assert.Equal(t, "First Bank", got["bankDetails"].(map[string]any)["bankName"])
	assert.Equal(t, "[REDACTED]", got["bankDetails"].(map[string]any)["accountNumber"])
	item := got["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "[REDACTED]", item["otp"])
	assert.Equal(t, "DL-1", item["sku"])

	assert.Equal(t, "secret1", body["password"], "caller's body must not change")
}

func TestRedacted_structBody(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	type login struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	zap.New(core).Debug("login", Redacted("body", login{Email: "ada@example.com", Password: "secret1"}))

	got := logs.All()[0].ContextMap()["body"].(map[string]any)
	assert.Equal(t, "[REDACTED]", got["password"])
	assert.Equal(t, "ada@example.com", got["email"])
}
