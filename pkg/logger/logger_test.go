package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInit_ReplacesGlobal(t *testing.T) {
	require.NoError(t, Init(Config{Level: "error", Encoding: "console"}))
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, Init(Config{Level: "debug", Encoding: "json"}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestFromContext_AddsRunID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := WithRunID(context.Background(), "run-123")
	FromContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-123", fields["run_id"])

	// nothing is added without a run id
	FromContext(context.Background(), base).Info("bare")
	assert.NotContains(t, logs.All()[1].ContextMap(), "run_id")
}
