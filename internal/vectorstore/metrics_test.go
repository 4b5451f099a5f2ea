package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestFinishOp_Counts(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "op")

	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("test", "knn", "index_not_found"))

	var err error = errkind.New(errkind.KindStore, errkind.CodeIndexNotFound, "knn", nil)
	finishOp(span, "test", "knn", time.Now(), &err)

	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("test", "knn", "index_not_found"))
	assert.Equal(t, before+1, after)
}

func TestChromemStore_RecordsMetrics(t *testing.T) {
	store, err := NewChromemStore(ChromemConfig{}, logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	d := protoDescriptor()
	d.Dim = 2

	okBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues(chromemBackend, "create_index", "ok"))
	badBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues(chromemBackend, "knn", "malformed_vector"))

	require.NoError(t, store.CreateIndex(ctx, d))
	_, err = store.KNN(ctx, d, vector.Embedding{1}, 1)
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(OperationsTotal.WithLabelValues(chromemBackend, "create_index", "ok")))
	assert.Equal(t, badBefore+1, testutil.ToFloat64(OperationsTotal.WithLabelValues(chromemBackend, "knn", "malformed_vector")))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "timeout_exceeded", resultLabel(errkind.New(errkind.KindStore, errkind.CodeTimeoutExceeded, "knn", nil)))
	assert.Equal(t, "error", resultLabel(ErrInvalidDescriptor))
}
