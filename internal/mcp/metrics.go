package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/documents"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
)

const instrumentationName = "github.com/fyrsmithlabs/docmanager/internal/mcp"

// Metric names.
const (
	metricCalls    = "docmanager.mcp.tool.calls"
	metricLatency  = "docmanager.mcp.tool.latency"
	metricFailures = "docmanager.mcp.tool.failures"
	metricInFlight = "docmanager.mcp.tool.in_flight"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// Metrics records tool calls. A nil instrument is skipped, so a meter
// that fails to create one only loses that series.
type Metrics struct {
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewMetrics creates tool metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("creating instrument failed", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &Metrics{}
	var err error
	m.calls, err = meter.Int64Counter(metricCalls,
		metric.WithDescription("Tool calls by tool name"), metric.WithUnit("{call}"))
	warn(metricCalls, err)
	m.latency, err = meter.Float64Histogram(metricLatency,
		metric.WithDescription("Tool call latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))
	warn(metricLatency, err)
	m.failures, err = meter.Int64Counter(metricFailures,
		metric.WithDescription("Failed tool calls by tool and reason"), metric.WithUnit("{call}"))
	warn(metricFailures, err)
	m.inFlight, err = meter.Int64UpDownCounter(metricInFlight,
		metric.WithDescription("Tool calls currently running"), metric.WithUnit("{call}"))
	warn(metricInFlight, err)
	return m
}

// Track marks a call to tool as started. The returned func ends it.
func (m *Metrics) Track(ctx context.Context, tool string) func(error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, attrs)
	}
	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, attrs)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", failureReason(err))))
		}
	}
}

// failureReason buckets err into a low-cardinality label.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, pointstore.ErrNoEnumerator), errors.Is(err, pointstore.ErrNoSearcher),
		errors.Is(err, pointstore.ErrNoDeleter), errors.Is(err, pointstore.ErrNoFilterDelete):
		return "unsupported_backend"
	case errors.Is(err, documents.ErrEmptyQuery), errors.Is(err, pointstore.ErrInvalidConfig):
		return "bad_input"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	}
	if msg := strings.ToLower(err.Error()); strings.Contains(msg, "invalid") {
		return "bad_input"
	}
	return "backend_error"
}
