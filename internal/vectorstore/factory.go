package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider:
//   - "redis" (default): RediSearch over go-redis
//   - "chromem": embedded chromem-go database, no external server
//   - "qdrant": Qdrant over gRPC
//
// Example usage:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	store, err := vectorstore.NewStore(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewStore(cfg *config.Config, logger *logging.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "redis", "":
		return NewRedisStore(RedisConfig{
			Addr:         cfg.Redis.Addr,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password.Value(),
			DB:           cfg.Redis.DB,
			UseTLS:       cfg.Redis.UseTLS,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
		}, logger)

	case "chromem":
		return NewChromemStore(ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey.Value(),
			UseTLS: cfg.Qdrant.UseTLS,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider: %s (supported: redis, chromem, qdrant)",
			ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
