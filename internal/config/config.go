// Package config provides configuration loading for ticketdup.
//
// Configuration is read from an optional YAML file and then overridden by
// TICKETDUP_* environment variables. Credentials live in the returned value
// and are passed explicitly into each client constructor.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/vector"
)

// ErrInvalidConfig indicates a configuration value failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete ticketdup configuration.
type Config struct {
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Redis       RedisConfig       `koanf:"redis"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Index       IndexConfig       `koanf:"index"`
	Detector    DetectorConfig    `koanf:"detector"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Events      EventsConfig      `koanf:"events"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "openai" (default) or "tei".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	// BaseURL overrides the provider endpoint. Required for tei.
	BaseURL       string        `koanf:"base_url"`
	APIKey        Secret        `koanf:"api_key"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxInputChars int           `koanf:"max_input_chars"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "redis" (default), "chromem", or "qdrant".
	Provider string `koanf:"provider"`
}

// RedisConfig configures the Redis (RediSearch) backend.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Username     string        `koanf:"username"`
	Password     Secret        `koanf:"password"`
	DB           int           `koanf:"db"`
	UseTLS       bool          `koanf:"use_tls"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PoolSize     int           `koanf:"pool_size"`
}

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the Qdrant gRPC backend.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`
}

// IndexConfig describes the similarity index.
type IndexConfig struct {
	Name        string `koanf:"name"`
	KeyPrefix   string `koanf:"key_prefix"`
	TextField   string `koanf:"text_field"`
	VectorField string `koanf:"vector_field"`
	Dim         int    `koanf:"dim"`
}

// DetectorConfig holds duplicate classification defaults.
type DetectorConfig struct {
	K         int     `koanf:"k"`
	Threshold float64 `koanf:"threshold"`
	// Timeout bounds one detection request end to end.
	Timeout time.Duration `koanf:"timeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// Output is "stderr" (default) or "stdout".
	Output string `koanf:"output"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint"`
	Protocol       string        `koanf:"protocol"`
	Insecure       bool          `koanf:"insecure"`
	ServiceName    string        `koanf:"service_name"`
	SampleRate     float64       `koanf:"sample_rate"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// EventsConfig configures the optional NATS event publisher.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Default returns a Config populated with defaults. File and environment
// values are unmarshalled on top of it, so unset keys keep these values.
func Default() Config {
	return Config{
		Embeddings: EmbeddingsConfig{
			Provider:      "openai",
			Model:         "text-embedding-3-small",
			Timeout:       30 * time.Second,
			MaxInputChars: 32000,
		},
		VectorStore: VectorStoreConfig{
			Provider: "redis",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Chromem: ChromemConfig{
			Path: "~/.config/ticketdup/vectorstore",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Index: IndexConfig{
			Name:        "idx:tickets",
			KeyPrefix:   "ticket",
			TextField:   "ticket",
			VectorField: "embedding",
			Dim:         vector.Dim,
		},
		Detector: DetectorConfig{
			K:         1,
			Threshold: 0.03,
			Timeout:   60 * time.Second,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8088,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			Insecure:       true,
			ServiceName:    "ticketdup",
			SampleRate:     1.0,
			ExportInterval: 15 * time.Second,
		},
		Events: EventsConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "tickets",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Embeddings.Provider {
	case "openai":
	case "tei":
		if c.Embeddings.BaseURL == "" {
			return fmt.Errorf("%w: embeddings.base_url required for tei provider", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embeddings provider %q (supported: openai, tei)", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Embeddings.MaxInputChars < 0 {
		return fmt.Errorf("%w: embeddings.max_input_chars must be >= 0", ErrInvalidConfig)
	}

	switch c.VectorStore.Provider {
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis.addr required", ErrInvalidConfig)
		}
	case "chromem":
		if c.Chromem.Path == "" {
			return fmt.Errorf("%w: chromem.path required", ErrInvalidConfig)
		}
	case "qdrant":
		if c.Qdrant.Host == "" {
			return fmt.Errorf("%w: qdrant.host required", ErrInvalidConfig)
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: invalid qdrant.port %d", ErrInvalidConfig, c.Qdrant.Port)
		}
	default:
		return fmt.Errorf("%w: unknown vectorstore provider %q (supported: redis, chromem, qdrant)", ErrInvalidConfig, c.VectorStore.Provider)
	}

	if c.Index.Name == "" || c.Index.KeyPrefix == "" || c.Index.TextField == "" || c.Index.VectorField == "" {
		return fmt.Errorf("%w: index name, key_prefix, text_field and vector_field are required", ErrInvalidConfig)
	}
	if c.Index.TextField == c.Index.VectorField {
		return fmt.Errorf("%w: index text_field and vector_field must differ", ErrInvalidConfig)
	}
	if c.Index.Dim <= 0 {
		return fmt.Errorf("%w: index.dim must be positive, got %d", ErrInvalidConfig, c.Index.Dim)
	}

	if c.Detector.K < 1 {
		return fmt.Errorf("%w: detector.k must be >= 1, got %d", ErrInvalidConfig, c.Detector.K)
	}
	if c.Detector.Threshold < 0 || c.Detector.Threshold > 2 {
		return fmt.Errorf("%w: detector.threshold must be within [0, 2], got %v", ErrInvalidConfig, c.Detector.Threshold)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d (must be 1-65535)", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("%w: telemetry.endpoint required when telemetry is enabled", ErrInvalidConfig)
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("%w: events.url required when events are enabled", ErrInvalidConfig)
	}

	return nil
}
