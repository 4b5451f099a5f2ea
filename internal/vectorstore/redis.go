package vectorstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const redisBackend = "redis"

// RedisConfig holds connection settings for a Redis server with the
// RediSearch module loaded.
type RedisConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	UseTLS       bool
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Validate validates the configuration.
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: redis addr required", ErrInvalidConfig)
	}
	return nil
}

// RedisStore implements Store with RediSearch commands over go-redis.
//
// The client speaks RESP2 so FT.SEARCH replies arrive as the flat
// [total, key, fields, ...] array decoded by decodeSearchReply.
type RedisStore struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisStore creates a RedisStore. It does not contact the server;
// connection failures surface on the first operation as ConnectionFailure.
func NewRedisStore(cfg RedisConfig, logger *logging.Logger) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Protocol:     2,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &RedisStore{
		client: redis.NewClient(opts),
		logger: logger.Named("vectorstore.redis"),
	}, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return mapRedisError(ctx, "ping", "", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CreateIndex issues FT.CREATE. Redis serialises concurrent creates, so
// exactly one caller succeeds and the others get IndexExists.
func (s *RedisStore) CreateIndex(ctx context.Context, d IndexDescriptor) (err error) {
	ctx, span := startOp(ctx, redisBackend, "create_index", d.Name)
	defer finishOp(span, redisBackend, "create_index", time.Now(), &err)

	if err := d.Validate(); err != nil {
		return err
	}

	if err := s.client.Do(ctx, createIndexArgs(d)...).Err(); err != nil {
		return mapRedisError(ctx, "create_index", d.Name, err)
	}

	s.logger.Info(ctx, "created index",
		zap.String("index", d.Name),
		zap.String("prefix", d.KeyPrefix+":"),
		zap.Int("dim", d.Dim),
	)
	return nil
}

// DropIndex issues FT.DROPINDEX <name> DD, removing the index and the hashes
// it covers.
func (s *RedisStore) DropIndex(ctx context.Context, name string) (err error) {
	ctx, span := startOp(ctx, redisBackend, "drop_index", name)
	defer finishOp(span, redisBackend, "drop_index", time.Now(), &err)

	if err := s.client.Do(ctx, dropIndexArgs(name)...).Err(); err != nil {
		return mapRedisError(ctx, "drop_index", name, err)
	}

	s.logger.Info(ctx, "dropped index", zap.String("index", name))
	return nil
}

// Insert checks the index exists with FT.INFO, then writes the hash with
// HSET. A plain HSET against a missing index would succeed silently.
func (s *RedisStore) Insert(ctx context.Context, d IndexDescriptor, p Point) (err error) {
	ctx, span := startOp(ctx, redisBackend, "insert", d.Name)
	defer finishOp(span, redisBackend, "insert", time.Now(), &err)
	span.SetAttributes(attribute.String("ticket.id", p.ID))

	if err := checkPoint(d, p); err != nil {
		return err
	}

	if err := s.checkIndexDim(ctx, "insert", d, len(p.Vector)); err != nil {
		return err.WithID(p.ID)
	}

	if err := s.client.Do(ctx, insertArgs(d, p)...).Err(); err != nil {
		return mapRedisError(ctx, "insert", d.Name, err).WithID(p.ID)
	}

	s.logger.Debug(ctx, "stored point", zap.String("key", d.Key(p.ID)))
	return nil
}

// checkIndexDim fetches FT.INFO for d and compares got with the dimension
// the index was created with. A missing index maps to IndexNotFound.
func (s *RedisStore) checkIndexDim(ctx context.Context, op string, d IndexDescriptor, got int) *errkind.Error {
	info, err := s.client.Do(ctx, "FT.INFO", d.Name).Result()
	if err != nil {
		return mapRedisError(ctx, op, d.Name, err)
	}
	if dim, ok := indexDimFromInfo(info, d.VectorField); ok && dim != got {
		return errkind.Dimension(op, dim, got).WithIndex(d.Name)
	}
	return nil
}

// KNN issues FT.SEARCH with a KNN clause and decodes the reply.
func (s *RedisStore) KNN(ctx context.Context, d IndexDescriptor, query vector.Embedding, k int) (results []SearchResult, err error) {
	ctx, span := startOp(ctx, redisBackend, "knn", d.Name)
	defer finishOp(span, redisBackend, "knn", time.Now(), &err)
	span.SetAttributes(attribute.Int("k", k))

	if err := checkQuery(d, query, k); err != nil {
		return nil, err
	}
	if err := s.checkIndexDim(ctx, "knn", d, len(query)); err != nil {
		return nil, err
	}

	reply, err := s.client.Do(ctx, searchArgs(d, query, k)...).Result()
	if err != nil {
		return nil, mapRedisError(ctx, "knn", d.Name, err)
	}
	s.logger.Trace(ctx, "search reply", zap.Any("reply", reply))

	results, err = decodeSearchReply(reply, d)
	if err != nil {
		return nil, errkind.New(errkind.KindStore, errkind.CodeConnectionFailure, "knn", err).WithIndex(d.Name)
	}
	if len(results) > k {
		results = results[:k]
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}
