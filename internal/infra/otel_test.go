package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupTracing_NoopWhenDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{OTelEnabled: false, OTelEndpoint: "http://localhost:4318"}},
		{"no endpoint", &Config{OTelEnabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := SetupTracing(context.Background(), tt.cfg, "test-service")
			require.NoError(t, err)
			require.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestSetupTracing_CreatesProvider(t *testing.T) {
	// Non-routable address so nothing is exported.
	cfg := &Config{OTelEnabled: true, OTelEndpoint: "http://192.0.2.1:4318"}

	shutdown, err := SetupTracing(context.Background(), cfg, "test-service")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
