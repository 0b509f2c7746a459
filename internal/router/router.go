package router

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
	"github.com/gatewaylabs/mcpgw/internal/filter"
	"github.com/gatewaylabs/mcpgw/internal/registry"
)

const (
	// DefaultRequestTimeout applies when neither the request nor its hints
	// carry an explicit timeout.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultMaxAttempts bounds the failover loop; the effective bound is
	// min(DefaultMaxAttempts, candidate count).
	DefaultMaxAttempts = 3
)

// CandidateFailure records why one candidate failed, for diagnostics attached
// to AllCandidatesError.
type CandidateFailure struct {
	ServerID   string
	ServerName string
	Err        error
}

// AllCandidatesError reports that every attempted candidate failed at the
// transport level. It unwraps to errors.ErrAllCandidatesFailed.
type AllCandidatesError struct {
	CorrelationID string
	Failures      []CandidateFailure
}

// Error implements the error interface.
func (e *AllCandidatesError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ServerName, f.Err))
	}
	return fmt.Sprintf("%v: [%s] (correlation %s)",
		errors.ErrAllCandidatesFailed, strings.Join(parts, "; "), e.CorrelationID)
}

// Unwrap exposes the sentinel for errors.Is.
func (e *AllCandidatesError) Unwrap() error {
	return errors.ErrAllCandidatesFailed
}

// Options contains tunables for the request router.
type Options struct {
	// DefaultTimeout is the routing deadline when the caller supplies none.
	DefaultTimeout time.Duration

	// MaxAttempts caps how many ranked candidates one request may try.
	MaxAttempts int
}

// Option defines a functional option for configuring Options.
type Option func(*Options) error

// NewOptions creates Options with defaults, then applies the given options.
func NewOptions(opt ...Option) (Options, error) {
	options := Options{
		DefaultTimeout: DefaultRequestTimeout,
		MaxAttempts:    DefaultMaxAttempts,
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&options); err != nil {
			return Options{}, err
		}
	}
	return options, nil
}

// WithDefaultTimeout sets the routing deadline used when callers supply none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return fmt.Errorf("default timeout must be positive, got %s", d)
		}
		o.DefaultTimeout = d
		return nil
	}
}

// WithMaxAttempts sets the candidate failover bound.
func WithMaxAttempts(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return fmt.Errorf("max attempts must be at least 1, got %d", n)
		}
		o.MaxAttempts = n
		return nil
	}
}

// Router is the top-level request entry point. It only reads health state;
// status transitions remain the monitor's business.
// NewRouter should be used to create instances of Router.
type Router struct {
	logger    hclog.Logger
	registry  *registry.Registry
	balancer  *Balancer
	transport contracts.Transport
	metrics   contracts.MetricSink
	opts      Options
}

// NewRouter creates a Router over the given registry and transport.
func NewRouter(
	logger hclog.Logger,
	reg *registry.Registry,
	balancer *Balancer,
	transport contracts.Transport,
	metrics contracts.MetricSink,
	opt ...Option,
) (*Router, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if balancer == nil {
		return nil, fmt.Errorf("balancer cannot be nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metric sink cannot be nil")
	}

	options, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid router options: %w", err)
	}

	return &Router{
		logger:    logger.Named("router"),
		registry:  reg,
		balancer:  balancer,
		transport: transport,
		metrics:   metrics,
		opts:      options,
	}, nil
}

// Route resolves the request to a candidate set, dispatches to the best
// candidate, and fails over through the remaining ranked candidates on
// transport errors. Application-level JSON-RPC errors from a backend pass
// through unchanged and are never retried.
func (r *Router) Route(
	ctx context.Context,
	auth domain.AuthContext,
	req domain.ProxyRequest,
	hints domain.RoutingHints,
) (*domain.ProxyResponse, error) {
	correlationID := uuid.NewString()

	timeout := hints.Timeout
	if timeout <= 0 && hints.TimeoutSecs > 0 {
		timeout = time.Duration(hints.TimeoutSecs) * time.Second
	}
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}

	routeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	candidates, err := r.resolveCandidates(auth, hints, correlationID)
	if err != nil {
		return nil, err
	}

	ranked := r.balancer.Rank(candidates)
	attempts := r.opts.MaxAttempts
	if len(ranked) < attempts {
		attempts = len(ranked)
	}

	var failures []CandidateFailure
	for i := 0; i < attempts; i++ {
		// Once the route context is done, no further candidate may be started.
		if routeCtx.Err() != nil {
			return nil, r.contextError(routeCtx, correlationID, timeout)
		}

		rec := ranked[i].Record
		resp, sendErr := r.dispatch(routeCtx, rec, req)
		if sendErr == nil {
			resp.ServerID = rec.ID
			return resp, nil
		}

		if routeCtx.Err() != nil &&
			(stderrors.Is(sendErr, context.DeadlineExceeded) || stderrors.Is(sendErr, context.Canceled)) {
			return nil, r.contextError(routeCtx, correlationID, timeout)
		}

		r.logger.Warn("candidate failed, trying next",
			"server", rec.Name, "correlation", correlationID, "error", sendErr)
		failures = append(failures, CandidateFailure{
			ServerID:   rec.ID,
			ServerName: rec.Name,
			Err:        sendErr,
		})
	}

	if routeCtx.Err() != nil {
		return nil, r.contextError(routeCtx, correlationID, timeout)
	}
	return nil, &AllCandidatesError{CorrelationID: correlationID, Failures: failures}
}

// resolveCandidates walks steps 1-3 of the routing algorithm: capability
// intersection, preferred-server restriction, and the health tier filter.
func (r *Router) resolveCandidates(
	auth domain.AuthContext,
	hints domain.RoutingHints,
	correlationID string,
) ([]*domain.ServerRecord, error) {
	required := filter.NormalizeSlice(hints.RequiredCapabilities())
	ids := r.registry.Capabilities().Find(auth.TenantID, required)

	if len(hints.PreferredServers) > 0 {
		ids = restrictToPreferred(ids, hints.PreferredServers, r.registry.ResolveNames(auth, hints.PreferredServers))
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no server offers the required capabilities (correlation %s)",
			errors.ErrNoEligibleServer, correlationID)
	}

	records := r.registry.Candidates(auth, ids)

	// Tier 1: healthy servers, plus unmonitored ones we have no signal about.
	// Tier 2 (entered once, when tier 1 is empty): degraded servers.
	// Unhealthy and unreachable servers never receive traffic.
	var primary, degraded []*domain.ServerRecord
	for _, rec := range records {
		if !rec.Enabled || rec.Maintenance || rec.Deleted {
			continue
		}
		switch {
		case rec.Health.Status == domain.HealthStatusHealthy,
			!rec.HealthCheckEnabled && rec.Health.Status == domain.HealthStatusUnknown:
			primary = append(primary, rec)
		case rec.Health.Status == domain.HealthStatusDegraded:
			degraded = append(degraded, rec)
		}
	}

	if hints.AllowDegraded {
		primary = append(primary, degraded...)
	}
	if len(primary) > 0 {
		return primary, nil
	}
	if len(degraded) > 0 {
		return degraded, nil
	}
	return nil, fmt.Errorf("%w: no routable server for the required capabilities (correlation %s)",
		errors.ErrNoEligibleServer, correlationID)
}

// dispatch sends the request to one candidate, maintaining its load counters
// and emitting the per-request metric sample.
func (r *Router) dispatch(
	ctx context.Context,
	rec *domain.ServerRecord,
	req domain.ProxyRequest,
) (*domain.ProxyResponse, error) {
	deadline, ok := ctx.Deadline()
	timeout := r.opts.DefaultTimeout
	if ok {
		timeout = time.Until(deadline)
	}

	endpoint := contracts.Endpoint{URL: rec.EndpointURL, Kind: rec.Transport}

	r.registry.AcquireSlot(rec.ID)
	start := time.Now()
	resp, err := r.transport.Send(ctx, endpoint, rec.AuthConfig, req, timeout)
	elapsed := time.Since(start)
	r.registry.ReleaseSlot(rec.ID, err == nil)

	r.metrics.Emit(domain.MetricSample{
		ServerID:       rec.ID,
		Timestamp:      time.Now().UTC(),
		ResponseTimeMs: elapsed.Milliseconds(),
		Success:        err == nil,
	})

	return resp, err
}

// contextError maps a finished route context onto the caller-facing error.
// Cancellation by the caller keeps its own identity and is never reported
// as a router timeout.
func (r *Router) contextError(routeCtx context.Context, correlationID string, timeout time.Duration) error {
	if stderrors.Is(routeCtx.Err(), context.Canceled) {
		return routeCtx.Err()
	}
	return r.timeoutError(correlationID, timeout)
}

func (r *Router) timeoutError(correlationID string, timeout time.Duration) error {
	return fmt.Errorf("%w: after %s (correlation %s)", errors.ErrRouterTimeout, timeout, correlationID)
}

// restrictToPreferred intersects the capability-matched ids with the caller's
// preferred servers, which may be given as ids or names.
func restrictToPreferred(ids []string, preferred []string, preferredIDs []string) []string {
	allowed := make(map[string]struct{}, len(preferred)+len(preferredIDs))
	for _, p := range preferred {
		allowed[p] = struct{}{}
	}
	for _, p := range preferredIDs {
		allowed[p] = struct{}{}
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
