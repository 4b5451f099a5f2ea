package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const qdrantBackend = "qdrant"

// Payload keys on every stored point. The text is also stored under the
// descriptor's text field.
const (
	payloadID    = "id"
	payloadIndex = "index"
)

// pointNamespace seeds the UUIDv5 point IDs. Qdrant only accepts UUIDs or
// integers as point IDs, so ticket IDs are mapped deterministically and the
// original ID travels in the payload.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ticketdup/points"))

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the gRPC port (6334), not the HTTP REST port.
	Port int

	APIKey string
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// HealthTimeout bounds the health check made by NewQdrantStore.
	// Default: 5s
	HealthTimeout time.Duration
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = 5 * time.Second
	}
}

// QdrantStore implements Store using Qdrant's native gRPC client.
//
// Each index is a collection with cosine distance. KNN uses exact search,
// matching the brute-force FLAT algorithm of the other backends, and reports
// 1 - score as the distance.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *logging.Logger
}

// NewQdrantStore connects to Qdrant and performs a health check.
func NewQdrantStore(cfg QdrantConfig, logger *logging.Logger) (*QdrantStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("vectorstore.qdrant")

	if !cfg.UseTLS {
		logger.Warn(context.Background(), "qdrant gRPC using plaintext (TLS disabled)",
			zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, "connect", err)
	}

	s := &QdrantStore{client: client, config: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HealthTimeout)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, mapQdrantError(ctx, "health_check", "", err)
	}

	return s, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// CreateIndex creates the collection for d.
func (s *QdrantStore) CreateIndex(ctx context.Context, d IndexDescriptor) (err error) {
	ctx, span := startOp(ctx, qdrantBackend, "create_index", d.Name)
	defer finishOp(span, qdrantBackend, "create_index", time.Now(), &err)

	if err := d.Validate(); err != nil {
		return err
	}
	name, err := collectionName(d.Name)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return mapQdrantError(ctx, "create_index", d.Name, err)
	}
	if exists {
		return errkind.New(errkind.KindStore, errkind.CodeIndexExists, "create_index", nil).WithIndex(d.Name)
	}

	// A concurrent creator may win between the check and the create; Qdrant
	// then rejects this call with "already exists".
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(d.Dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return mapQdrantError(ctx, "create_index", d.Name, err)
	}

	s.logger.Info(ctx, "created index",
		zap.String("index", d.Name),
		zap.String("collection", name),
		zap.Int("dim", d.Dim),
	)
	return nil
}

// DropIndex deletes the collection and its points.
func (s *QdrantStore) DropIndex(ctx context.Context, index string) (err error) {
	ctx, span := startOp(ctx, qdrantBackend, "drop_index", index)
	defer finishOp(span, qdrantBackend, "drop_index", time.Now(), &err)

	name, err := collectionName(index)
	if err != nil {
		return err
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return mapQdrantError(ctx, "drop_index", index, err)
	}
	if !exists {
		return errkind.New(errkind.KindStore, errkind.CodeIndexNotFound, "drop_index", nil).WithIndex(index)
	}
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return mapQdrantError(ctx, "drop_index", index, err)
	}

	s.logger.Info(ctx, "dropped index", zap.String("index", index))
	return nil
}

// Insert upserts p and waits for the write to be applied.
func (s *QdrantStore) Insert(ctx context.Context, d IndexDescriptor, p Point) (err error) {
	ctx, span := startOp(ctx, qdrantBackend, "insert", d.Name)
	defer finishOp(span, qdrantBackend, "insert", time.Now(), &err)
	span.SetAttributes(attribute.String("ticket.id", p.ID))

	if err := checkPoint(d, p); err != nil {
		return err
	}
	name, err := collectionName(d.Name)
	if err != nil {
		return err
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(d, p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadID:    p.ID,
				payloadIndex: d.Name,
				d.TextField:  p.Text,
			}),
		}},
	})
	if err != nil {
		return mapQdrantError(ctx, "insert", d.Name, err).WithID(p.ID)
	}

	s.logger.Debug(ctx, "stored point", zap.String("key", d.Key(p.ID)))
	return nil
}

// KNN runs an exact nearest-neighbour query.
func (s *QdrantStore) KNN(ctx context.Context, d IndexDescriptor, query vector.Embedding, k int) (results []SearchResult, err error) {
	ctx, span := startOp(ctx, qdrantBackend, "knn", d.Name)
	defer finishOp(span, qdrantBackend, "knn", time.Now(), &err)
	span.SetAttributes(attribute.Int("k", k))

	if err := checkQuery(d, query, k); err != nil {
		return nil, err
	}
	name, err := collectionName(d.Name)
	if err != nil {
		return nil, err
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params: &qdrant.SearchParams{
			Exact: qdrant.PtrOf(true),
		},
	})
	if err != nil {
		return nil, mapQdrantError(ctx, "knn", d.Name, err)
	}

	results = make([]SearchResult, 0, len(points))
	for _, pt := range points {
		results = append(results, SearchResult{
			ID:       payloadString(pt.GetPayload(), payloadID),
			Text:     payloadString(pt.GetPayload(), d.TextField),
			Distance: 1 - float64(pt.GetScore()),
		})
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

func pointID(d IndexDescriptor, id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(d.Key(id))).String()
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

// mapQdrantError converts a non-nil gRPC error into an *errkind.Error.
func mapQdrantError(ctx context.Context, op, index string, err error) *errkind.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errkind.New(errkind.KindStore, errkind.CodeTimeoutExceeded, op, err).WithIndex(index)
	}

	st, ok := status.FromError(err)
	if !ok {
		return errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, op, err).WithIndex(index)
	}

	msg := strings.ToLower(st.Message())
	code := errkind.CodeConnectionFailure
	switch {
	case st.Code() == grpccodes.DeadlineExceeded:
		code = errkind.CodeTimeoutExceeded
	case st.Code() == grpccodes.AlreadyExists, strings.Contains(msg, "already exists"):
		code = errkind.CodeIndexExists
	case st.Code() == grpccodes.NotFound, strings.Contains(msg, "doesn't exist"), strings.Contains(msg, "not found"):
		code = errkind.CodeIndexNotFound
	case st.Code() == grpccodes.InvalidArgument && strings.Contains(msg, "dimension"):
		code = errkind.CodeMalformedVector
	}
	return errkind.New(errkind.KindStore, code, op, err).WithIndex(index)
}
