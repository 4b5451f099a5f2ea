package vectorstore

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ticketdup.vectorstore")

var (
	// OperationsTotal counts store operations.
	// Labels: backend (redis, chromem, qdrant), op, result (ok or error code)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ticketdup",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations by backend, operation and result",
		},
		[]string{"backend", "op", "result"},
	)

	// OperationDuration tracks how long store operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ticketdup",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "op"},
	)
)

// startOp opens a span for one store operation.
func startOp(ctx context.Context, backend, op, index string) (context.Context, trace.Span) {
	return tracer.Start(ctx, backend+"."+op, trace.WithAttributes(
		attribute.String("vectorstore.backend", backend),
		attribute.String("vectorstore.index", index),
	))
}

// finishOp records the outcome of an operation started with startOp.
// It is deferred with a pointer to the method's named error.
func finishOp(span trace.Span, backend, op string, start time.Time, errp *error) {
	result := "ok"
	if err := *errp; err != nil {
		result = resultLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	span.SetAttributes(attribute.String("vectorstore.result", result))
	span.End()

	OperationsTotal.WithLabelValues(backend, op, result).Inc()
	OperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	if code := errkind.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}
