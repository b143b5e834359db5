package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 8)

	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		seen[NewID()] = struct{}{}
	}
	assert.Len(t, seen, 100, "IDs must not repeat within a batch")
}

func TestID_Roundtrip(t *testing.T) {
	ctx := WithID(context.Background(), "cafe0042")
	id, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "cafe0042", id)
}

func TestID_AbsentOrEmpty(t *testing.T) {
	id, ok := ID(context.Background())
	assert.False(t, ok)
	assert.Empty(t, id)

	id, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok)
	assert.Empty(t, id)
}

func correlatedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewHandler(inner)), &buf
}

func TestHandler_StampsCorrelationID(t *testing.T) {
	logger, buf := correlatedLogger()

	ctx := WithID(context.Background(), "cafe0042")
	logger.InfoContext(ctx, "vote cast", "voteable", "post:1")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=cafe0042")
	assert.Contains(t, output, "voteable=post:1")
	assert.Contains(t, output, "vote cast")
}

func TestHandler_SilentWithoutID(t *testing.T) {
	logger, buf := correlatedLogger()

	logger.InfoContext(context.Background(), "sweep finished")

	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithAttrsKeepsStamping(t *testing.T) {
	logger, buf := correlatedLogger()
	logger = logger.With("component", "reconciler")

	ctx := WithID(context.Background(), "beef7700")
	logger.InfoContext(ctx, "drift repaired")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=beef7700")
	assert.Contains(t, output, "component=reconciler")
}
