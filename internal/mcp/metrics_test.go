package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
)

func newTestMetrics(t *testing.T) (*Metrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return newMetrics(mp.Meter(instrumentationName), zap.NewNop()), reader
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Track(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Track(ctx, "list_documents")(nil)
	m.Track(ctx, "document_search")(documents.ErrEmptyQuery)

	got := collect(t, reader)
	require.Contains(t, got, metricCalls)
	require.Contains(t, got, metricLatency)
	require.Contains(t, got, metricFailures)

	assert.Equal(t, int64(2), sumInt(t, got[metricCalls]))
	assert.Zero(t, sumInt(t, got[metricInFlight]))

	failures := got[metricFailures].Data.(metricdata.Sum[int64])
	require.Len(t, failures.DataPoints, 1)
	reason, ok := failures.DataPoints[0].Attributes.Value(attribute.Key("reason"))
	require.True(t, ok)
	assert.Equal(t, "bad_input", reason.AsString())
}

func TestMetrics_InFlight(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	done := m.Track(ctx, "clear_all_documents")
	m.Track(ctx, "clear_all_documents")
	assert.Equal(t, int64(2), sumInt(t, collect(t, reader)[metricInFlight]))

	done(nil)
	assert.Equal(t, int64(1), sumInt(t, collect(t, reader)[metricInFlight]))
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"unsupported enumerate", fmt.Errorf("list: %w", pointstore.ErrNoEnumerator), "unsupported_backend"},
		{"unsupported delete", pointstore.ErrNoDeleter, "unsupported_backend"},
		{"empty query", documents.ErrEmptyQuery, "bad_input"},
		{"invalid input", errors.New("invalid query: must not be empty"), "bad_input"},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), "cancelled"},
		{"backend failure", errors.New("connection reset"), "backend_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, failureReason(tt.err))
		})
	}
}
