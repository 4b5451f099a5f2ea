package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/fyrsmithlabs/ticketdup/internal/errkind"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/vector"
	"go.uber.org/zap"
)

// ErrInvalidConfig indicates invalid provider configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Client turns ticket text into an embedding.
type Client interface {
	Generate(ctx context.Context, text string) (vector.Embedding, error)
}

// backend performs the provider call. Implementations map provider errors to
// *errkind.Error but leave input checks, deadlines, and dimension checks to
// Service.
type backend interface {
	embed(ctx context.Context, text string) (vector.Embedding, error)
	name() string
}

// Service wraps a provider backend with input validation, a per-call
// deadline, dimension verification, and metrics.
type Service struct {
	backend  backend
	model    string
	dim      int
	maxChars int
	timeout  time.Duration
	metrics  *Metrics
	logger   *logging.Logger
}

var _ Client = (*Service)(nil)

// NewClient builds the provider selected by cfg.Provider.
func NewClient(cfg config.EmbeddingsConfig, dim int, logger *logging.Logger) (*Service, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dim)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var b backend
	switch cfg.Provider {
	case "openai", "":
		if !cfg.APIKey.IsSet() {
			return nil, fmt.Errorf("%w: openai api key required (embeddings.api_key or OPENAI_API_KEY)", ErrInvalidConfig)
		}
		b = NewOpenAI(OpenAIConfig{
			APIKey:  cfg.APIKey.Value(),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Dim:     dim,
		})
	case "tei":
		tei, err := NewTEI(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey.Value(),
			Dim:     dim,
		})
		if err != nil {
			return nil, err
		}
		b = tei
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	return newService(b, cfg, dim, logger), nil
}

func newService(b backend, cfg config.EmbeddingsConfig, dim int, logger *logging.Logger) *Service {
	return &Service{
		backend:  b,
		model:    cfg.Model,
		dim:      dim,
		maxChars: cfg.MaxInputChars,
		timeout:  cfg.Timeout,
		metrics:  NewMetrics(logger.Underlying()),
		logger:   logger.Named("embeddings"),
	}
}

// Model returns the configured model identifier.
func (s *Service) Model() string { return s.model }

// Dimension returns the requested embedding dimension.
func (s *Service) Dimension() int { return s.dim }

// Generate embeds text. The result has exactly Dimension() components.
func (s *Service) Generate(ctx context.Context, text string) (vector.Embedding, error) {
	start := time.Now()
	emb, err := s.generate(ctx, text)
	s.metrics.RecordGeneration(ctx, s.backend.name(), s.model, time.Since(start), err)
	if err != nil {
		s.logger.Debug(ctx, "embedding failed",
			zap.String("provider", s.backend.name()),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Trace(ctx, "embedding generated",
		zap.String("provider", s.backend.name()),
		zap.Duration("duration", time.Since(start)),
	)
	return emb, nil
}

func (s *Service) generate(ctx context.Context, text string) (vector.Embedding, error) {
	if text == "" {
		return nil, errkind.New(errkind.KindInput, errkind.CodeEmptyInput, "generate", nil)
	}
	if s.maxChars > 0 {
		if n := utf8.RuneCountInString(text); n > s.maxChars {
			return nil, errkind.New(errkind.KindProvider, errkind.CodeInputTooLarge, "generate",
				fmt.Errorf("%d characters exceeds limit of %d", n, s.maxChars))
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	emb, err := s.backend.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if len(emb) != s.dim {
		return nil, &errkind.Error{
			Kind:     errkind.KindProvider,
			Code:     errkind.CodeEmbeddingUnavailable,
			Op:       "generate",
			Expected: s.dim,
			Actual:   len(emb),
			Err:      errors.New("provider returned wrong dimension"),
		}
	}
	return emb, nil
}

// transportError classifies a failed provider round trip. Deadline and net
// timeouts become TimeoutExceeded; everything else EmbeddingUnavailable.
func transportError(ctx context.Context, err error) *errkind.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errkind.New(errkind.KindProvider, errkind.CodeTimeoutExceeded, "generate", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errkind.New(errkind.KindProvider, errkind.CodeTimeoutExceeded, "generate", err)
	}
	return errkind.New(errkind.KindProvider, errkind.CodeEmbeddingUnavailable, "generate", err)
}
