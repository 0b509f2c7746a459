package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/gatewaylabs/mcpgw/internal/audit"
	"github.com/gatewaylabs/mcpgw/internal/config"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
	"github.com/gatewaylabs/mcpgw/internal/health"
	"github.com/gatewaylabs/mcpgw/internal/metrics"
	"github.com/gatewaylabs/mcpgw/internal/proxy"
	"github.com/gatewaylabs/mcpgw/internal/registry"
	"github.com/gatewaylabs/mcpgw/internal/router"
)

// seedActorID attributes config-driven registrations in the audit trail.
const seedActorID = "config"

// Daemon owns the gateway's long-running components: the registry, the health
// monitor, the request router, the emitters, and the HTTP API server.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger        hclog.Logger
	cfg           *config.Config
	apiAddr       string
	opts          Options
	pool          *proxy.Pool
	auditEmitter  *audit.Emitter
	metricEmitter *metrics.Emitter
}

// NewDaemon creates a Daemon from validated dependencies and options.
// Configuration tunables are applied first; explicit options override them.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for daemon: %w", err)
	}

	opts, err := NewOptions(append(optionsFromConfig(deps.Cfg), opt...)...)
	if err != nil {
		return nil, fmt.Errorf("invalid daemon options: %w", err)
	}

	logger := deps.Logger.Named("daemon")

	return &Daemon{
		logger:        logger,
		cfg:           deps.Cfg,
		apiAddr:       deps.APIAddr,
		opts:          opts,
		pool:          proxy.NewPool(logger),
		auditEmitter:  audit.NewEmitter(logger, audit.NewLogSink(logger), opts.AuditBufferSize),
		metricEmitter: metrics.NewEmitter(logger, metrics.NewLogSink(logger), opts.MetricBufferSize),
	}, nil
}

// StartAndManage wires the components together and blocks until the context
// is canceled or a component fails. Monitor startup precedes registry
// subscription so hydrated and seeded records get probe tasks immediately.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	defer d.auditEmitter.Close()
	defer d.metricEmitter.Close()

	reg, err := registry.NewRegistry(
		ctx,
		d.logger,
		registry.NewMemoryStore(),
		d.auditEmitter,
		registry.WithCapabilityDiscoverer(d.pool),
	)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	monitor, err := health.NewMonitor(
		d.logger,
		reg,
		d.pool,
		d.metricEmitter,
		d.auditEmitter,
		d.opts.MonitorOptions...,
	)
	if err != nil {
		return fmt.Errorf("failed to create health monitor: %w", err)
	}

	monitor.Start(ctx)
	defer monitor.Stop()

	reg.Subscribe(monitor)
	reg.Replay()

	d.seedServers(ctx, reg)

	requestRouter, err := router.NewRouter(
		d.logger,
		reg,
		router.NewDefaultBalancer(),
		d.pool,
		d.metricEmitter,
		d.opts.RouterOptions...,
	)
	if err != nil {
		return fmt.Errorf("failed to create request router: %w", err)
	}

	apiDeps, err := NewAPIDependencies(d.logger, reg, monitor, requestRouter, d.apiAddr)
	if err != nil {
		return fmt.Errorf("failed to create API dependencies: %w", err)
	}

	apiServer, err := NewAPIServer(apiDeps, d.opts.APIOptions...)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	ready := make(chan struct{})
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Start(gCtx, ready)
	})

	<-ready
	d.logger.Info("Gateway ready", "address", d.apiAddr)

	err = g.Wait()
	if stdErrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// seedServers registers the config file's server entries. Entries already
// present, e.g. hydrated from the store, are skipped.
func (d *Daemon) seedServers(ctx context.Context, reg *registry.Registry) {
	for _, entry := range d.cfg.Servers {
		auth := domain.AuthContext{TenantID: entry.Tenant, UserID: seedActorID}
		_, err := reg.Register(ctx, auth, entry.Descriptor())
		switch {
		case err == nil:
			d.logger.Info("Seeded server from config", "tenant", entry.Tenant, "name", entry.Name)
		case stdErrors.Is(err, errors.ErrDuplicateName):
			d.logger.Debug("Skipping already registered seed server", "tenant", entry.Tenant, "name", entry.Name)
		default:
			d.logger.Error("Failed to seed server from config", "tenant", entry.Tenant, "name", entry.Name, "error", err)
		}
	}
}

// optionsFromConfig translates config file tunables into daemon options.
func optionsFromConfig(cfg *config.Config) []Option {
	var monitorOpts []health.MonitorOption
	if d := cfg.Health.ProbeTimeout(); d > 0 {
		monitorOpts = append(monitorOpts, health.WithProbeTimeout(d))
	}
	if n := cfg.Health.WindowSize; n > 0 {
		monitorOpts = append(monitorOpts, health.WithWindowSize(n))
	}
	if n := cfg.Health.UnreachableThreshold; n > 0 {
		monitorOpts = append(monitorOpts, health.WithUnreachableThreshold(n))
	}
	if d := cfg.Health.ReapInterval(); d > 0 {
		monitorOpts = append(monitorOpts, health.WithReapInterval(d))
	}

	var routerOpts []router.Option
	if d := cfg.Router.Timeout(); d > 0 {
		routerOpts = append(routerOpts, router.WithDefaultTimeout(d))
	}
	if n := cfg.Router.MaxAttempts; n > 0 {
		routerOpts = append(routerOpts, router.WithMaxAttempts(n))
	}

	var apiOpts []APIOption
	if c := cfg.CORS; c != nil && c.Enabled {
		apiOpts = append(apiOpts,
			WithCORSEnabled(true),
			WithCORSAllowOrigins(c.AllowOrigins),
			WithCORSAllowCredentials(c.AllowCredentials),
		)
		if len(c.AllowMethods) > 0 {
			apiOpts = append(apiOpts, WithCORSAllowMethods(c.AllowMethods))
		}
		if len(c.AllowHeaders) > 0 {
			apiOpts = append(apiOpts, WithCORSAllowHeaders(c.AllowHeaders))
		}
		if len(c.ExposeHeaders) > 0 {
			apiOpts = append(apiOpts, WithCORSExposeHeaders(c.ExposeHeaders))
		}
		if d := c.MaxAge(); d > 0 {
			apiOpts = append(apiOpts, WithCORSMaxAge(d))
		}
	}

	var out []Option
	if len(monitorOpts) > 0 {
		out = append(out, WithMonitorOptions(monitorOpts...))
	}
	if len(routerOpts) > 0 {
		out = append(out, WithRouterOptions(routerOpts...))
	}
	if len(apiOpts) > 0 {
		out = append(out, WithAPIOptions(apiOpts...))
	}
	return out
}
