package main

import (
	"context"
	"errors"
	"net/http"

	httpserver "github.com/fyrsmithlabs/ticketdup/internal/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the duplicate check API on server.host:server.port.

Endpoints:
  GET  /health
  GET  /metrics
  POST /api/v1/index           {"force": false}
  POST /api/v1/tickets/check   {"id": "", "text": "", "k": 1, "store": false, "threshold": 0.03}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			srv, err := httpserver.NewServer(a.detector, a.logger, &httpserver.Config{
				Host:      a.cfg.Server.Host,
				Port:      a.cfg.Server.Port,
				BodyLimit: "1M",
				Version:   version,
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
				a.logger.Info(context.Background(), "signal received, shutting down", zap.Duration("timeout", a.cfg.Server.ShutdownTimeout))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
