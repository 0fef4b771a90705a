package documents

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docmanager/internal/documents")

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docmanager",
		Subsystem: "documents",
		Name:      "operations_total",
		Help:      "Document operations by name and outcome.",
	}, []string{"operation", "status"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docmanager",
		Subsystem: "documents",
		Name:      "operation_duration_seconds",
		Help:      "Latency of document operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	chunksDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docmanager",
		Subsystem: "documents",
		Name:      "chunks_deleted_total",
		Help:      "Chunks removed by delete and clear operations.",
	})

	searchFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docmanager",
		Subsystem: "documents",
		Name:      "search_fallback_total",
		Help:      "Searches answered by the substring scan.",
	})
)

// begin starts a span for op. The returned func ends it and records the
// outcome in the prometheus series.
func begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "documents."+op,
		trace.WithAttributes(attribute.String("operation", op)))
	return ctx, func(err error) {
		observe(op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// observe records the outcome of one operation started at start.
func observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(op, status).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
