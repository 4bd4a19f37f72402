package observability

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		level   string
		debug   bool
		info    bool
		warn    bool
		errorOn bool
	}{
		{"DEBUG", true, true, true, true},
		{"INFO", false, true, true, true},
		{"WARN", false, false, true, true},
		{"ERROR", false, false, false, true},
		{"warn", false, false, true, true},
		{"nonsense", false, true, true, true},
		{"", false, true, true, true},
	}
	for _, tc := range cases {
		logger := NewLogger(tc.level)
		assert.Equal(t, tc.debug, logger.Enabled(ctx, slog.LevelDebug), "level %q debug", tc.level)
		assert.Equal(t, tc.info, logger.Enabled(ctx, slog.LevelInfo), "level %q info", tc.level)
		assert.Equal(t, tc.warn, logger.Enabled(ctx, slog.LevelWarn), "level %q warn", tc.level)
		assert.Equal(t, tc.errorOn, logger.Enabled(ctx, slog.LevelError), "level %q error", tc.level)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "sentinel-core", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.Insecure)
}

func TestDisabledProviderIsNoOp(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, nil)
	require.NoError(t, err)

	opCtx, finish := p.StartOperation(ctx, "workflow.transition", "wf-1")
	assert.Equal(t, ctx, opCtx)
	assert.NotPanics(t, func() {
		finish(nil)
		finish(errors.New("recorded outcome"))
	})

	assert.NoError(t, p.Shutdown(ctx))
}
