package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/docmanager/internal/http"

// Metric names.
const (
	metricRequests = "docmanager.http.requests"
	metricDuration = "docmanager.http.duration"
	metricBodySize = "docmanager.http.response_bytes"
	metricInFlight = "docmanager.http.in_flight"
)

// HTTPMetrics records per-route request metrics on an otel meter.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	bodySize metric.Int64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the instruments on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(httpInstrumentationName), logger)
}

func newHTTPMetrics(meter metric.Meter, logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HTTPMetrics{}
	var errs [4]error
	m.requests, errs[0] = meter.Int64Counter(metricRequests,
		metric.WithDescription("Requests by method, route and status"), metric.WithUnit("{request}"))
	m.duration, errs[1] = meter.Float64Histogram(metricDuration,
		metric.WithDescription("Request handling time"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10))
	m.bodySize, errs[2] = meter.Int64Histogram(metricBodySize,
		metric.WithDescription("Response body size"), metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(256, 1024, 4096, 16384, 65536, 262144, 1048576))
	m.inFlight, errs[3] = meter.Int64UpDownCounter(metricInFlight,
		metric.WithDescription("Requests being handled"), metric.WithUnit("{request}"))
	for _, err := range errs {
		if err != nil {
			logger.Warn("creating http instrument failed", zap.Error(err))
		}
	}
	return m
}

// Middleware records every request once echo has settled its status.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			if err := next(c); err != nil {
				c.Error(err)
			}

			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeOf(c)),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.bodySize != nil {
				m.bodySize.Record(ctx, c.Response().Size, attrs)
			}
			return nil
		}
	}
}

// routeOf returns the matched route pattern, or "unmatched" so arbitrary
// paths share one series.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
