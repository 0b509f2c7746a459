package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/audit"
	"github.com/gatewaylabs/mcpgw/internal/config"
	"github.com/gatewaylabs/mcpgw/internal/health"
	"github.com/gatewaylabs/mcpgw/internal/metrics"
	"github.com/gatewaylabs/mcpgw/internal/router"
)

func TestNewOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := NewOptions()
	require.NoError(t, err)

	require.Empty(t, opts.APIOptions)
	require.Empty(t, opts.MonitorOptions)
	require.Empty(t, opts.RouterOptions)
	require.Equal(t, audit.DefaultBufferSize, opts.AuditBufferSize)
	require.Equal(t, metrics.DefaultBufferSize, opts.MetricBufferSize)
}

func TestNewOptions_Overrides(t *testing.T) {
	t.Parallel()

	opts, err := NewOptions(
		WithAPIOptions(WithCORSEnabled(true)),
		WithMonitorOptions(health.WithWindowSize(10)),
		WithRouterOptions(router.WithMaxAttempts(2)),
		WithAuditBufferSize(32),
		WithMetricBufferSize(64),
	)
	require.NoError(t, err)

	require.Len(t, opts.APIOptions, 1)
	require.Len(t, opts.MonitorOptions, 1)
	require.Len(t, opts.RouterOptions, 1)
	require.Equal(t, 32, opts.AuditBufferSize)
	require.Equal(t, 64, opts.MetricBufferSize)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty config yields no options", func(t *testing.T) {
		t.Parallel()

		require.Empty(t, optionsFromConfig(&config.Config{}))
	})

	t.Run("tunables translate to component options", func(t *testing.T) {
		t.Parallel()

		cfg := &config.Config{
			Health: config.HealthConfig{
				ProbeTimeoutSeconds:  5,
				WindowSize:           20,
				UnreachableThreshold: 2,
			},
			Router: config.RouterConfig{
				TimeoutSeconds: 15,
				MaxAttempts:    2,
			},
			CORS: &config.CORSConfig{
				Enabled:      true,
				AllowOrigins: []string{"https://ui.example.com"},
			},
		}

		daemonOpts, err := NewOptions(optionsFromConfig(cfg)...)
		require.NoError(t, err)

		monitorOpts, err := health.NewMonitorOptions(daemonOpts.MonitorOptions...)
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, monitorOpts.ProbeTimeout)
		require.Equal(t, 20, monitorOpts.WindowSize)
		require.Equal(t, 2, monitorOpts.UnreachableThreshold)
		require.Equal(t, health.DefaultReapInterval, monitorOpts.ReapInterval)

		routerOpts, err := router.NewOptions(daemonOpts.RouterOptions...)
		require.NoError(t, err)
		require.Equal(t, 15*time.Second, routerOpts.DefaultTimeout)
		require.Equal(t, 2, routerOpts.MaxAttempts)

		apiOpts, err := NewAPIOptions(daemonOpts.APIOptions...)
		require.NoError(t, err)
		require.True(t, apiOpts.CORS.Enabled)
		require.Equal(t, []string{"https://ui.example.com"}, apiOpts.CORS.AllowOrigins)

		// Unset CORS lists keep the API defaults.
		require.Equal(t, DefaultCORSAllowMethods(), apiOpts.CORS.AllowMethods)
	})
}
