package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "json")
	ctx := WithRunID(context.Background(), "run-42")
	FromContext(ctx).Debug("hello", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "run-42", rec["run_id"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "run-42", RunID(ctx))
}

func TestLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupWriter(&buf, "warn", "text")
	WithComponent("expander").Info("dropped")
	assert.Empty(t, buf.String())
	WithComponent("expander").Warn("kept")
	assert.Contains(t, buf.String(), "component=expander")

	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Empty(t, RunID(context.Background()))
}
