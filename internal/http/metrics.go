package http

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/ticketdup/internal/http"

// HTTPMetrics records per-request counts and latency, labelled by method,
// matched route, and status.
type HTTPMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics registers the instruments on the global meter provider.
func NewHTTPMetrics(logger *logging.Logger) *HTTPMetrics {
	return newHTTPMetrics(otel.Meter(httpInstrumentationName), logger)
}

func newHTTPMetrics(meter metric.Meter, logger *logging.Logger) *HTTPMetrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &HTTPMetrics{
		requests: noop.Int64Counter{},
		duration: noop.Float64Histogram{},
		inFlight: noop.Int64UpDownCounter{},
	}

	if c, err := meter.Int64Counter("ticketdup.http.requests_total",
		metric.WithDescription("HTTP requests by method, route, and status"),
		metric.WithUnit("{request}"),
	); err == nil {
		m.requests = c
	} else {
		logger.Warn(context.Background(), "failed to create requests counter", zap.Error(err))
	}

	if h, err := meter.Float64Histogram("ticketdup.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration by method, route, and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	); err == nil {
		m.duration = h
	} else {
		logger.Warn(context.Background(), "failed to create duration histogram", zap.Error(err))
	}

	if g, err := meter.Int64UpDownCounter("ticketdup.http.active_requests",
		metric.WithDescription("HTTP requests in flight"),
		metric.WithUnit("{request}"),
	); err == nil {
		m.inFlight = g
	} else {
		logger.Warn(context.Background(), "failed to create active requests gauge", zap.Error(err))
	}
	return m
}

// MetricsMiddleware records every request that reaches it. The recorded
// status is final only if an inner middleware has already written handler
// errors to the response.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)

			err := next(c)

			labels := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", routeLabel(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			m.requests.Add(ctx, 1, labels)
			m.duration.Record(ctx, time.Since(start).Seconds(), labels)
			return err
		}
	}
}

// routeLabel returns the matched route pattern. Unmatched requests share one
// label so unknown paths cannot grow the series count.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}
