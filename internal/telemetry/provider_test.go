package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ServiceVersion = "1.0.0"

	res := newResource(cfg)
	require.NotNil(t, res)

	found := map[string]string{}
	for _, attr := range res.Attributes() {
		found[string(attr.Key)] = attr.Value.AsString()
	}
	assert.Equal(t, "ticketdup", found["service.name"])
	assert.Equal(t, "1.0.0", found["service.version"])
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		s := newSampler(tt.rate)
		assert.Contains(t, s.Description(), "ParentBased")
		assert.Contains(t, s.Description(), tt.want)
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel:4318", stripScheme("https://otel:4318"))
	assert.Equal(t, "otel:4318", stripScheme("http://otel:4318"))
	assert.Equal(t, "otel:4317", stripScheme("otel:4317"))
}

func TestNewProviders_CreateWithoutCollector(t *testing.T) {
	// OTLP exporters connect lazily, so creation succeeds with no collector.
	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol
			ctx := context.Background()

			tp, err := newTracerProvider(ctx, cfg, newResource(cfg))
			require.NoError(t, err)
			require.NotNil(t, tp)

			mp, err := newMeterProvider(ctx, cfg, newResource(cfg))
			require.NoError(t, err)
			require.NotNil(t, mp)

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
			_ = mp.Shutdown(shutdownCtx)
		})
	}
}
