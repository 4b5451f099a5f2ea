package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/ticketdup/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, "ticketdup", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:        true,
		Endpoint:       "https://otel.example.com:4318",
		Protocol:       ProtocolHTTP,
		Insecure:       false,
		ServiceName:    "tickets-api",
		SampleRate:     0.25,
		ExportInterval: 30 * time.Second,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "https://otel.example.com:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.False(t, cfg.Insecure)
	assert.Equal(t, "tickets-api", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.Equal(t, 30*time.Second, cfg.ExportInterval)
	require.NoError(t, cfg.Validate())
}

func TestFromSettings_Defaults(t *testing.T) {
	cfg := FromSettings(config.Default().Telemetry, "")

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "ticketdup", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid enabled config",
			mutate: func(*Config) {},
		},
		{
			name: "disabled config skips validation",
			mutate: func(c *Config) {
				*c = Config{Enabled: false}
			},
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Endpoint = "" },
			wantErr: true,
			errMsg:  "endpoint is required",
		},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.ServiceName = "" },
			wantErr: true,
			errMsg:  "service_name is required",
		},
		{
			name:    "unknown protocol",
			mutate:  func(c *Config) { c.Protocol = "udp" },
			wantErr: true,
			errMsg:  "protocol must be",
		},
		{
			name:    "insecure remote endpoint",
			mutate:  func(c *Config) { c.Endpoint = "collector.prod:4317" },
			wantErr: true,
			errMsg:  "insecure connections to remote endpoints",
		},
		{
			name: "secure remote endpoint",
			mutate: func(c *Config) {
				c.Endpoint = "collector.prod:4317"
				c.Insecure = false
			},
		},
		{
			name:    "sample rate too low",
			mutate:  func(c *Config) { c.SampleRate = -0.1 },
			wantErr: true,
			errMsg:  "sample_rate must be between 0 and 1",
		},
		{
			name:    "sample rate too high",
			mutate:  func(c *Config) { c.SampleRate = 1.5 },
			wantErr: true,
			errMsg:  "sample_rate must be between 0 and 1",
		},
		{
			name:    "zero export interval",
			mutate:  func(c *Config) { c.ExportInterval = 0 },
			wantErr: true,
			errMsg:  "export_interval must be positive",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.ShutdownTimeout = 0 },
			wantErr: true,
			errMsg:  "shutdown timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		isLocal  bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"http://localhost:4318", true},
		{"127.0.0.1:4317", true},
		{"127.0.0.1", true},
		{"127.0.1.1:4317", true},
		{"[::1]:4317", true},
		{"::1:4317", true},
		{"::1", true},
		{"collector.prod:4317", false},
		{"otel.example.com:4317", false},
		{"192.168.1.1:4317", false},
		{"10.0.0.1:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: tt.endpoint}
			assert.Equal(t, tt.isLocal, cfg.isLocalEndpoint())
		})
	}
}
