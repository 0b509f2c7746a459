package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/retry"
)

const (
	// DefaultUnreachableThreshold is the number of consecutive probe failures
	// after which a server is marked unreachable.
	DefaultUnreachableThreshold = 3

	// DefaultReapInterval is how often soft-deleted records are purged.
	DefaultReapInterval = 60 * time.Second

	// healthyRateThreshold is the rolling success rate at or above which a
	// responding server is considered healthy.
	healthyRateThreshold = 0.9

	// unhealthyRateThreshold is the rolling success rate at or below which a
	// failing server is considered unhealthy rather than degraded.
	unhealthyRateThreshold = 0.5

	// latencyDegradedFactor marks a responding server degraded when its last
	// response time exceeds this multiple of the trailing median.
	latencyDegradedFactor = 2
)

// Registry is the registry surface the monitor needs: health mutation under
// the per-record lock, record reads, and the deleted-record purge.
type Registry interface {
	Record(id string) (*domain.ServerRecord, error)
	ApplyHealth(id string, mutate func(*domain.HealthSnapshot)) (*domain.ServerRecord, error)
	HealthSnapshot(id string) (domain.HealthSnapshot, error)
	HealthSnapshots() map[string]domain.HealthSnapshot
	PurgeDeleted(ctx context.Context) int
}

// MonitorOptions contains tunables for the health monitor.
// NewMonitorOptions should be used to create instances of MonitorOptions.
type MonitorOptions struct {
	// WindowSize is the number of samples retained per server.
	WindowSize int

	// UnreachableThreshold is the consecutive-failure count that flips a
	// server to unreachable. Also the attempt budget of one probe cycle.
	UnreachableThreshold int

	// ProbeTimeout bounds a single probe attempt.
	ProbeTimeout time.Duration

	// RetryBaseDelay is the first backoff delay after a failed probe attempt.
	// Backoff grows exponentially and is capped at the server's interval.
	RetryBaseDelay time.Duration

	// ReapInterval is how often soft-deleted records are purged from the cache.
	ReapInterval time.Duration
}

// MonitorOption defines a functional option for configuring MonitorOptions.
type MonitorOption func(*MonitorOptions) error

// NewMonitorOptions creates MonitorOptions with defaults, then applies the
// given options in order.
func NewMonitorOptions(opt ...MonitorOption) (MonitorOptions, error) {
	options := MonitorOptions{
		WindowSize:           DefaultWindowSize,
		UnreachableThreshold: DefaultUnreachableThreshold,
		ProbeTimeout:         DefaultProbeTimeout,
		RetryBaseDelay:       time.Second,
		ReapInterval:         DefaultReapInterval,
	}
	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&options); err != nil {
			return MonitorOptions{}, err
		}
	}
	return options, nil
}

// WithWindowSize sets the rolling sample window size.
func WithWindowSize(n int) MonitorOption {
	return func(o *MonitorOptions) error {
		if n < 1 {
			return fmt.Errorf("window size must be at least 1, got %d", n)
		}
		o.WindowSize = n
		return nil
	}
}

// WithUnreachableThreshold sets the consecutive-failure threshold.
func WithUnreachableThreshold(n int) MonitorOption {
	return func(o *MonitorOptions) error {
		if n < 1 {
			return fmt.Errorf("unreachable threshold must be at least 1, got %d", n)
		}
		o.UnreachableThreshold = n
		return nil
	}
}

// WithProbeTimeout sets the per-attempt probe timeout.
func WithProbeTimeout(d time.Duration) MonitorOption {
	return func(o *MonitorOptions) error {
		if d <= 0 {
			return fmt.Errorf("probe timeout must be positive, got %s", d)
		}
		o.ProbeTimeout = d
		return nil
	}
}

// WithReapInterval sets the purge sweep interval.
func WithReapInterval(d time.Duration) MonitorOption {
	return func(o *MonitorOptions) error {
		if d <= 0 {
			return fmt.Errorf("reap interval must be positive, got %s", d)
		}
		o.ReapInterval = d
		return nil
	}
}

// Monitor schedules an independent, cancellable probe task per registered
// server. It implements registry.Watcher to follow the server lifecycle, and
// contracts.HealthReader for read access.
// NewMonitor should be used to create instances of Monitor.
type Monitor struct {
	logger   hclog.Logger
	registry Registry
	prober   *Prober
	metrics  contracts.MetricSink
	audit    contracts.AuditSink
	opts     MonitorOptions

	mu     sync.Mutex
	tasks  map[string]context.CancelFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor probing through the given transport.
func NewMonitor(
	logger hclog.Logger,
	reg Registry,
	transport contracts.Transport,
	metrics contracts.MetricSink,
	audit contracts.AuditSink,
	opt ...MonitorOption,
) (*Monitor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if metrics == nil {
		return nil, fmt.Errorf("metric sink cannot be nil")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit sink cannot be nil")
	}

	options, err := NewMonitorOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid monitor options: %w", err)
	}

	return &Monitor{
		logger:   logger.Named("monitor"),
		registry: reg,
		prober:   NewProber(transport, options.ProbeTimeout),
		metrics:  metrics,
		audit:    audit,
		opts:     options,
		tasks:    make(map[string]context.CancelFunc),
	}, nil
}

// Start begins the reaper sweep and enables probe task scheduling. It must be
// called before the monitor is subscribed to the registry.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.reapLoop(m.ctx)
}

// Stop cancels every probe task and the reaper, then waits for them to exit.
// No orphaned probe tasks remain after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// ServerRegistered starts a probe task for the new server.
func (m *Monitor) ServerRegistered(record *domain.ServerRecord) {
	m.startTask(record)
}

// ServerUpdated restarts the server's probe task so endpoint, interval, or
// health-check toggle changes take effect.
func (m *Monitor) ServerUpdated(record *domain.ServerRecord) {
	m.stopTask(record.ID)
	m.startTask(record)
}

// ServerRemoved cancels the server's probe task.
func (m *Monitor) ServerRemoved(id string) {
	m.stopTask(id)
}

// Snapshot implements contracts.HealthReader.
func (m *Monitor) Snapshot(serverID string) (domain.HealthSnapshot, error) {
	return m.registry.HealthSnapshot(serverID)
}

// List implements contracts.HealthReader.
func (m *Monitor) List() map[string]domain.HealthSnapshot {
	return m.registry.HealthSnapshots()
}

func (m *Monitor) startTask(record *domain.ServerRecord) {
	if !record.HealthCheckEnabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}
	if _, running := m.tasks[record.ID]; running {
		return
	}

	taskCtx, cancel := context.WithCancel(m.ctx)
	m.tasks[record.ID] = cancel

	interval := record.HealthCheckInterval
	if interval <= 0 {
		interval = DefaultHealthCheckIntervalFallback
	}

	m.wg.Add(1)
	go m.probeLoop(taskCtx, record.ID, interval)
	m.logger.Debug("probe task started", "server", record.ID, "interval", interval)
}

func (m *Monitor) stopTask(id string) {
	m.mu.Lock()
	cancel, ok := m.tasks[id]
	if ok {
		delete(m.tasks, id)
	}
	m.mu.Unlock()
	if ok {
		cancel()
		m.logger.Debug("probe task stopped", "server", id)
	}
}

// probeLoop runs one server's probe cycle on its configured interval until
// the task is cancelled. Failed attempts back off exponentially within a
// cycle; the cadence resets to the normal interval afterwards, so transient
// blips never permanently slow monitoring.
func (m *Monitor) probeLoop(ctx context.Context, id string, interval time.Duration) {
	defer m.wg.Done()

	win := newWindow(m.opts.WindowSize)

	policy := retry.Policy{
		MaxAttempts: m.opts.UnreachableThreshold,
		BaseDelay:   m.opts.RetryBaseDelay,
		MaxDelay:    interval,
	}

	m.probeCycle(ctx, id, win, policy)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeCycle(ctx, id, win, policy)
		}
	}
}

// probeCycle performs up to MaxAttempts probes, stopping early on the first
// success. Every attempt lands in the window and the registry snapshot.
func (m *Monitor) probeCycle(ctx context.Context, id string, win *window, policy retry.Policy) {
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		rec, err := m.registry.Record(id)
		if err != nil {
			// Record gone; the watcher will cancel this task shortly.
			return
		}

		sample := m.prober.Probe(ctx, rec)
		m.apply(id, win, sample)
		if sample.Success {
			return
		}

		if attempt+1 < policy.MaxAttempts {
			if err := policy.Wait(ctx, attempt+1); err != nil {
				return
			}
		}
	}
}

// apply appends the sample, emits its metric, and writes the recomputed
// snapshot through the registry's single-writer health path.
func (m *Monitor) apply(id string, win *window, sample domain.HealthSample) {
	win.append(sample)

	metric := domain.MetricSample{
		ServerID:  id,
		Timestamp: sample.Timestamp,
		Success:   sample.Success,
	}
	if sample.ResponseTime != nil {
		metric.ResponseTimeMs = sample.ResponseTime.Milliseconds()
	}
	if sample.StatusCode != nil {
		metric.StatusCode = *sample.StatusCode
	}
	m.metrics.Emit(metric)

	status := computeStatus(win, m.opts.UnreachableThreshold)

	var previous domain.HealthStatus
	rec, err := m.registry.ApplyHealth(id, func(h *domain.HealthSnapshot) {
		previous = h.Status
		h.Status = status
		h.SuccessRate = win.successRate()
		h.ConsecutiveFailures = win.consecutiveFailures()
		now := sample.Timestamp
		h.LastChecked = &now
		if sample.Success {
			h.LastResponseTime = sample.ResponseTime
			h.LastSuccessful = &now
		}
	})
	if err != nil {
		return
	}

	if previous != status {
		m.logger.Info("server health status changed",
			"server", id, "name", rec.Name, "from", previous, "to", status)
		m.audit.Emit(domain.AuditEvent{
			TenantID:     rec.TenantID,
			ActorID:      "health-monitor",
			ResourceType: "mcp_server",
			ResourceID:   id,
			Operation:    domain.AuditOpStatusChange,
			Timestamp:    time.Now().UTC(),
			Details: map[string]string{
				"from": string(previous),
				"to":   string(status),
			},
		})
	}
}

func (m *Monitor) reapLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.registry.PurgeDeleted(ctx)
		}
	}
}

// DefaultHealthCheckIntervalFallback guards against records that slipped past
// descriptor validation with a zero interval.
const DefaultHealthCheckIntervalFallback = 60 * time.Second

// computeStatus derives a server's health status from its rolling window.
//
// unreachable: the last threshold probes all failed.
// healthy:     last probe succeeded, rolling success rate >= 90%, latency
//              within 2x the trailing median.
// degraded:    rolling success rate between the unhealthy and healthy
//              thresholds, an elevated latency on a passing server, or an
//              isolated recent failure on an otherwise good window.
// unhealthy:   at least half the window failed but a success remains in it,
//              regardless of the most recent outcome.
// unknown:     no samples, or nothing but failures before the first success
//              while still under the unreachable threshold.
func computeStatus(win *window, unreachableThreshold int) domain.HealthStatus {
	if win.len() == 0 {
		return domain.HealthStatusUnknown
	}
	if win.consecutiveFailures() >= unreachableThreshold {
		return domain.HealthStatusUnreachable
	}

	last, _ := win.last()
	rate := win.successRate()

	if last.Success {
		if rate >= healthyRateThreshold {
			if last.ResponseTime != nil {
				if median, ok := win.medianResponseTime(); ok && *last.ResponseTime > latencyDegradedFactor*median {
					return domain.HealthStatusDegraded
				}
			}
			return domain.HealthStatusHealthy
		}
		// One probe landing does not clear a window where half or more of
		// the probes failed.
		if rate <= unhealthyRateThreshold {
			return domain.HealthStatusUnhealthy
		}
		return domain.HealthStatusDegraded
	}

	if !win.anySuccess() {
		return domain.HealthStatusUnknown
	}
	if rate <= unhealthyRateThreshold {
		return domain.HealthStatusUnhealthy
	}
	return domain.HealthStatusDegraded
}
