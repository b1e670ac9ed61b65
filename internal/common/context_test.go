package common

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	LoggerFromContext(context.Background(), base).Info("plain")
	assert.NotContains(t, buf.String(), "request_id")

	buf.Reset()
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	LoggerFromContext(ctx, base).Info("tagged")
	assert.Contains(t, buf.String(), `"request_id":"req-1"`)

	buf.Reset()
	ctx = WithLogger(ctx, base.With("trace_id", "t-9"))
	LoggerFromContext(ctx, nil).Info("stored")
	assert.Contains(t, buf.String(), `"trace_id":"t-9"`)
	assert.NotContains(t, buf.String(), "request_id")
}
