package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/fyrsmithlabs/ticketdup/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// mapEmbedder returns fixed vectors for known texts.
type mapEmbedder map[string]vector.Embedding

func (m mapEmbedder) Generate(_ context.Context, text string) (vector.Embedding, error) {
	v, ok := m[text]
	if !ok {
		return nil, errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate", errors.New("provider returned 503"))
	}
	return v, nil
}

var corpus = mapEmbedder{
	"printer jam":          {1, 0, 0, 0},
	"printer is jammed":    {1, 0.01, 0, 0},
	"password reset":       {0, 1, 0, 0},
	"cannot log in to VPN": {0, 0, 1, 0},
}

func testIndex() vectorstore.IndexDescriptor {
	return vectorstore.IndexDescriptor{
		Name:        "idx:tickets",
		KeyPrefix:   "ticket",
		TextField:   "ticket",
		VectorField: "embedding",
		Algorithm:   vectorstore.AlgorithmFlat,
		Metric:      vectorstore.MetricCosine,
		DataType:    vectorstore.DataTypeFloat32,
		Dim:         4,
	}
}

// stubDetector returns err from every call.
type stubDetector struct {
	err error
}

func (s stubDetector) Check(context.Context, detector.Request) (*detector.Report, error) {
	return nil, s.err
}

func (s stubDetector) InitIndex(context.Context, bool) error {
	return s.err
}

func (s stubDetector) Index() vectorstore.IndexDescriptor {
	return testIndex()
}

type testServer struct {
	*Server
	logs *logging.TestLogger
}

// setupTestServer creates a server over an in-memory chromem store.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	det, err := detector.New(corpus, store, testIndex())
	require.NoError(t, err)

	logs := logging.NewTestLogger()
	server, err := NewServer(det, logs.Logger, &Config{Host: "localhost", Port: 8088, BodyLimit: "1K", Version: "test"})
	require.NoError(t, err)

	return &testServer{Server: server, logs: logs}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer(t *testing.T) {
	det := stubDetector{}

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(det, logging.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "localhost", server.config.Host)
		assert.Equal(t, 8088, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(det, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when detector is nil", func(t *testing.T) {
		_, err := NewServer(nil, logging.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "detector cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
}

func TestHandleMetrics(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestHandleIndex(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/index", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[IndexResponse](t, rec)
	assert.Equal(t, "idx:tickets", resp.Index)
	assert.True(t, resp.Created)
	assert.False(t, resp.Force)

	rec = s.do(t, http.MethodPost, "/api/v1/index", IndexRequest{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "index_exists", decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/v1/index", IndexRequest{Force: true})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[IndexResponse](t, rec).Force)
}

func TestHandleCheck_IndexMissing(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/tickets/check", CheckRequest{Text: "printer jam"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "index_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestHandleCheck_StoreThenDetect(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/index", nil).Code)

	rec := s.do(t, http.MethodPost, "/api/v1/tickets/check", CheckRequest{ID: "1001", Text: "printer jam", Store: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[detector.Report](t, rec)
	assert.False(t, first.Duplicate)
	assert.True(t, first.Stored)
	assert.Empty(t, first.Neighbors)

	rec = s.do(t, http.MethodPost, "/api/v1/tickets/check", CheckRequest{ID: "1002", Text: "printer is jammed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decode[detector.Report](t, rec)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Stored)
	require.NotNil(t, second.Closest)
	assert.Equal(t, "1001", second.Closest.ID)
	assert.Equal(t, "printer jam", second.Closest.Text)
	assert.Equal(t, detector.DefaultThreshold, second.Threshold)

	// A zero threshold is honoured, not replaced by the default.
	zero := 0.0
	rec = s.do(t, http.MethodPost, "/api/v1/tickets/check", CheckRequest{Text: "printer is jammed", Threshold: &zero})
	require.Equal(t, http.StatusOK, rec.Code)
	third := decode[detector.Report](t, rec)
	assert.False(t, third.Duplicate)
	assert.Equal(t, 0.0, third.Threshold)
}

func TestHandleCheck_Errors(t *testing.T) {
	s := setupTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/index", nil).Code)

	tooHigh := 3.0
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{"text":`, http.StatusBadRequest, "invalid_request"},
		{"empty text", CheckRequest{ID: "1"}, http.StatusBadRequest, "empty_input"},
		{"store without id", CheckRequest{Text: "printer jam", Store: true}, http.StatusBadRequest, "empty_input"},
		{"negative k", CheckRequest{Text: "printer jam", K: -1}, http.StatusBadRequest, "invalid_request"},
		{"threshold out of range", CheckRequest{Text: "printer jam", Threshold: &tooHigh}, http.StatusBadRequest, "invalid_request"},
		{"provider failure", CheckRequest{Text: "unknown text"}, http.StatusBadGateway, "embedding_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/tickets/check", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantErr, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleCheck_BodyLimit(t *testing.T) {
	s := setupTestServer(t)

	body := fmt.Sprintf(`{"text":%q}`, strings.Repeat("a", 2048))
	rec := s.do(t, http.MethodPost, "/api/v1/tickets/check", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid request", fmt.Errorf("%w: k must be >= 1", detector.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"empty input", errkind.ErrEmptyInput, http.StatusBadRequest, "empty_input"},
		{"malformed vector", errkind.Dimension("knn", 512, 3), http.StatusBadRequest, "malformed_vector"},
		{"index not found", fmt.Errorf("querying index: %w", errkind.ErrIndexNotFound), http.StatusNotFound, "index_not_found"},
		{"index exists", errkind.ErrIndexExists, http.StatusConflict, "index_exists"},
		{"input too large", errkind.ErrInputTooLarge, http.StatusRequestEntityTooLarge, "input_too_large"},
		{"embedding unavailable", errkind.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_unavailable"},
		{"connection failure", errkind.ErrConnectionFailure, http.StatusServiceUnavailable, "connection_failure"},
		{"timeout", errkind.ErrTimeoutExceeded, http.StatusGatewayTimeout, "timeout_exceeded"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestServerErrorsAreLogged(t *testing.T) {
	logs := logging.NewTestLogger()
	server, err := NewServer(stubDetector{err: errkind.ErrConnectionFailure}, logs.Logger, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	logs.AssertLogged(t, zapcore.ErrorLevel, "request failed")
	logs.AssertField(t, "http request", "status", int64(http.StatusServiceUnavailable))
}

func TestServerLifecycle(t *testing.T) {
	server, err := NewServer(stubDetector{}, logging.NewNop(), &Config{Host: "localhost", Port: 0})
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed))
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("request id reaches response and logs", func(t *testing.T) {
		s := setupTestServer(t)

		rec := s.do(t, http.MethodGet, "/health", nil)
		id := rec.Header().Get(echo.HeaderXRequestID)
		require.NotEmpty(t, id)
		s.logs.AssertField(t, "http request", "request.id", id)
	})

	t.Run("keeps caller request id", func(t *testing.T) {
		s := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(echo.HeaderXRequestID, "req-42")
		rec := httptest.NewRecorder()
		s.echo.ServeHTTP(rec, req)

		assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		s := setupTestServer(t)
		s.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
