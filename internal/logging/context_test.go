package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func fieldKeys(ctx context.Context) map[string]string {
	out := make(map[string]string)
	for _, f := range ContextFields(ctx) {
		out[f.Key] = f.String
	}
	return out
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Correlation(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithUserID(ctx, "alice")
	ctx = WithRequestID(ctx, "req-42")

	got := fieldKeys(ctx)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", got["trace_id"])
	assert.Equal(t, "0102030405060708", got["span_id"])
	assert.Contains(t, got, "trace_sampled")
	assert.Equal(t, "alice", got["user.id"])
	assert.Equal(t, "req-42", got["request.id"])
}

func TestWithUserID_RejectsUnsafeValues(t *testing.T) {
	for _, id := range []string{"", "bob smith", "x\ny", strings.Repeat("a", maxIDLen+1), "\xff"} {
		ctx := WithUserID(context.Background(), id)
		assert.Empty(t, UserIDFromContext(ctx), "%q", id)
	}
	assert.Equal(t, "admin@example.com", UserIDFromContext(WithUserID(context.Background(), "admin@example.com")))
}
