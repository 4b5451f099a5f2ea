package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/fyrsmithlabs/ticketdup/internal/detector"
	"github.com/fyrsmithlabs/ticketdup/internal/embeddings"
	"github.com/fyrsmithlabs/ticketdup/internal/events"
	"github.com/fyrsmithlabs/ticketdup/internal/logging"
	"github.com/fyrsmithlabs/ticketdup/internal/telemetry"
	"github.com/fyrsmithlabs/ticketdup/internal/vectorstore"
	"go.uber.org/zap"
)

// app holds the services one command runs against.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	store     vectorstore.Store
	publisher *events.Publisher
	detector  *detector.Detector
}

// appOptions tunes newApp per command.
type appOptions struct {
	// stdoutReserved forces logs to stderr for commands whose stdout is a
	// protocol stream.
	stdoutReserved bool
	// lazyEmbeddings defers building the embedding client until a ticket is
	// embedded, for commands that only manage the index.
	lazyEmbeddings bool
}

// newApp wires config, logging, telemetry, embeddings, the vector store,
// and the detector.
func newApp(ctx context.Context, opts *globalOptions, aopts appOptions) (_ *app, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if aopts.stdoutReserved {
		cfg.Logging.Output = "stderr"
	}

	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version), nil)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a.telemetry.SetLogger(a.logger)

	buildEmbedder := func() (embeddings.Client, error) {
		c, err := embeddings.NewClient(cfg.Embeddings, cfg.Index.Dim, a.logger)
		if err != nil {
			return nil, fmt.Errorf("creating embedding client: %w", err)
		}
		return c, nil
	}
	var embedder embeddings.Client
	if aopts.lazyEmbeddings {
		embedder = embeddings.NewLazyClient(buildEmbedder)
	} else if embedder, err = buildEmbedder(); err != nil {
		return nil, err
	}

	a.store, err = vectorstore.NewStore(cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	detOpts := []detector.Option{
		detector.WithK(cfg.Detector.K),
		detector.WithThreshold(cfg.Detector.Threshold),
		detector.WithTimeout(cfg.Detector.Timeout),
		detector.WithLogger(a.logger),
	}
	if cfg.Events.Enabled {
		a.publisher, err = events.Connect(cfg.Events, a.logger)
		if err != nil {
			return nil, err
		}
		detOpts = append(detOpts, detector.WithPublisher(a.publisher))
	}

	a.detector, err = detector.New(embedder, a.store, vectorstore.DescriptorFromConfig(cfg.Index), detOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating detector: %w", err)
	}

	a.logger.Debug(ctx, "ticketdup ready",
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("index", cfg.Index.Name),
	)
	return a, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing publisher: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
