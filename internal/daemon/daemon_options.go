package daemon

import (
	"github.com/gatewaylabs/mcpgw/internal/audit"
	"github.com/gatewaylabs/mcpgw/internal/health"
	"github.com/gatewaylabs/mcpgw/internal/metrics"
	"github.com/gatewaylabs/mcpgw/internal/router"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// MonitorOptions contains functional options for the health monitor.
	MonitorOptions []health.MonitorOption

	// RouterOptions contains functional options for the request router.
	RouterOptions []router.Option

	// AuditBufferSize sets the audit emitter's buffer capacity.
	AuditBufferSize int

	// MetricBufferSize sets the metric emitter's buffer capacity.
	MetricBufferSize int
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := Options{
		AuditBufferSize:  audit.DefaultBufferSize,
		MetricBufferSize: metrics.DefaultBufferSize,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithMonitorOptions configures health monitor options.
func WithMonitorOptions(monitorOpts ...health.MonitorOption) Option {
	return func(o *Options) error {
		o.MonitorOptions = monitorOpts
		return nil
	}
}

// WithRouterOptions configures request router options.
func WithRouterOptions(routerOpts ...router.Option) Option {
	return func(o *Options) error {
		o.RouterOptions = routerOpts
		return nil
	}
}

// WithAuditBufferSize configures the audit emitter's buffer capacity.
func WithAuditBufferSize(n int) Option {
	return func(o *Options) error {
		o.AuditBufferSize = n
		return nil
	}
}

// WithMetricBufferSize configures the metric emitter's buffer capacity.
func WithMetricBufferSize(n int) Option {
	return func(o *Options) error {
		o.MetricBufferSize = n
		return nil
	}
}
