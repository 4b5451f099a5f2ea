// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - console output on stderr (or stdout) plus an optional OpenTelemetry core
//   - context field injection (trace_id, request.id, ticket.id)
//   - secret redaction by field name and value pattern
//   - level-aware sampling where errors are never sampled
//
// Usage:
//
//	cfg, err := logging.FromSettings(appCfg.Logging)
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithTicketID(ctx, "T-1042")
//	logger.Info(ctx, "ticket checked", zap.Bool("duplicate", true))
//
// Tests use NewTestLogger and its Assert helpers.
package logging
