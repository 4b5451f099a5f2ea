package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/ticketdup/internal/mcp"

// Metrics holds the MCP tool instruments. An instrument that fails to
// register is replaced by a no-op.
type Metrics struct {
	invocations metric.Int64Counter
	errors      metric.Int64Counter
	duplicates  metric.Int64Counter
	duration    metric.Float64Histogram
	active      metric.Int64UpDownCounter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics(logger *logging.Logger) *Metrics {
	return newMetrics(otel.Meter(instrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNop()
	}
	warn := func(name string, err error) {
		logger.Warn(context.Background(), "failed to create instrument", zap.String("instrument", name), zap.Error(err))
	}

	var (
		m   Metrics
		err error
	)
	if m.invocations, err = meter.Int64Counter("ticketdup.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	); err != nil {
		warn("invocations_total", err)
		m.invocations = noop.Int64Counter{}
	}
	if m.errors, err = meter.Int64Counter("ticketdup.mcp.tool.errors_total",
		metric.WithDescription("MCP tool errors by reason"),
		metric.WithUnit("{error}"),
	); err != nil {
		warn("errors_total", err)
		m.errors = noop.Int64Counter{}
	}
	if m.duplicates, err = meter.Int64Counter("ticketdup.mcp.tool.duplicates_total",
		metric.WithDescription("Checks that found a duplicate"),
		metric.WithUnit("{check}"),
	); err != nil {
		warn("duplicates_total", err)
		m.duplicates = noop.Int64Counter{}
	}
	if m.duration, err = meter.Float64Histogram("ticketdup.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool invocation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	); err != nil {
		warn("duration_seconds", err)
		m.duration = noop.Float64Histogram{}
	}
	if m.active, err = meter.Int64UpDownCounter("ticketdup.mcp.tool.active_requests",
		metric.WithDescription("MCP tool invocations in flight"),
		metric.WithUnit("{request}"),
	); err != nil {
		warn("active_requests", err)
		m.active = noop.Int64UpDownCounter{}
	}
	return &m
}

// Start marks one invocation of tool as in flight. The returned func ends
// it and records the outcome.
func (m *Metrics) Start(ctx context.Context, tool string) func(r *detector.Report, err error) {
	start := time.Now()
	toolAttr := metric.WithAttributes(attribute.String("tool", tool))
	m.active.Add(ctx, 1, toolAttr)

	return func(r *detector.Report, err error) {
		m.active.Add(ctx, -1, toolAttr)
		m.invocations.Add(ctx, 1, toolAttr)
		m.duration.Record(ctx, time.Since(start).Seconds(), toolAttr)
		if err != nil {
			m.errors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", errorReason(err)),
			))
			return
		}
		if r != nil && r.Duplicate {
			m.duplicates.Add(ctx, 1, toolAttr)
		}
	}
}

// errorReason returns a bounded label for err.
func errorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, detector.ErrInvalidRequest):
		return "invalid_request"
	}
	if code := errkind.CodeOf(err); code != "" {
		return string(code)
	}
	return "internal"
}
