// Package registry maintains the in-memory cache-of-record for registered MCP
// servers and the capability index used for routing. The external durable
// store remains the source of truth; the registry is write-through on
// mutation and loaded once at startup.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
	"github.com/gatewaylabs/mcpgw/internal/filter"
)

// Watcher is notified of registry lifecycle changes. The health monitor uses
// this to create and cancel per-server probe tasks.
type Watcher interface {
	ServerRegistered(record *domain.ServerRecord)
	ServerUpdated(record *domain.ServerRecord)
	ServerRemoved(id string)
}

// entry pairs a record with its own mutex. All mutation of the record funnels
// through this lock, giving single-writer semantics per record without
// serializing unrelated servers behind one registry-wide lock.
type entry struct {
	mu  sync.Mutex
	rec *domain.ServerRecord
}

// Registry is the in-memory server registry. It is safe for concurrent use.
// NewRegistry should be used to create instances of Registry.
type Registry struct {
	logger hclog.Logger
	store  contracts.RegistryStore
	audit  contracts.AuditSink

	mu      sync.RWMutex
	entries map[string]*entry
	names   map[string]string // (tenant, normalized name) -> id, live records only

	capabilities *CapabilityIndex

	// discoverer, when set, enables tools/list capability discovery during
	// registration for descriptors that opt in.
	discoverer contracts.Transport

	watcherMu sync.RWMutex
	watchers  []Watcher
}

// NewRegistry creates a Registry backed by the given durable store and audit
// sink, hydrating the cache from the store.
func NewRegistry(
	ctx context.Context,
	logger hclog.Logger,
	store contracts.RegistryStore,
	audit contracts.AuditSink,
	opt ...Option,
) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("registry store cannot be nil")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit sink cannot be nil")
	}

	r := &Registry{
		logger:       logger.Named("registry"),
		store:        store,
		audit:        audit,
		entries:      make(map[string]*entry),
		names:        make(map[string]string),
		capabilities: NewCapabilityIndex(),
	}

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(r); err != nil {
			return nil, err
		}
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry records: %w", err)
	}
	for _, rec := range records {
		r.entries[rec.ID] = &entry{rec: rec.Clone()}
		if !rec.Deleted {
			r.names[nameKey(rec.TenantID, rec.Name)] = rec.ID
			r.capabilities.Add(rec.TenantID, rec.ID, rec.Capabilities)
		}
	}
	r.logger.Info("registry hydrated", "records", len(records))

	return r, nil
}

// Subscribe adds a lifecycle watcher. Watchers registered before startup also
// receive events for records hydrated from the store via Replay.
func (r *Registry) Subscribe(w Watcher) {
	r.watcherMu.Lock()
	defer r.watcherMu.Unlock()
	r.watchers = append(r.watchers, w)
}

// Replay invokes ServerRegistered on all watchers for every live record.
// Called once at daemon startup after watchers are subscribed.
func (r *Registry) Replay() {
	for _, rec := range r.liveRecords("") {
		r.notifyRegistered(rec)
	}
}

// Capabilities exposes the capability index for routing lookups.
func (r *Registry) Capabilities() *CapabilityIndex {
	return r.capabilities
}

// Register validates the descriptor and creates a new server record for the
// caller's tenant. The record starts in the unknown health state until the
// first successful probe promotes it.
func (r *Registry) Register(
	ctx context.Context,
	auth domain.AuthContext,
	descriptor domain.ServerDescriptor,
) (*domain.ServerRecord, error) {
	if err := ValidateDescriptor(descriptor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(descriptor.Name)
	interval := time.Duration(descriptor.HealthCheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}

	capabilities := filter.NormalizeSlice(descriptor.Capabilities)
	if descriptor.DiscoverCapabilities && r.discoverer != nil {
		capabilities = r.discoverCapabilities(ctx, descriptor, capabilities)
	}

	now := time.Now().UTC()
	rec := &domain.ServerRecord{
		ID:                  uuid.NewString(),
		TenantID:            auth.TenantID,
		Name:                name,
		DisplayName:         strings.TrimSpace(descriptor.DisplayName),
		EndpointURL:         descriptor.EndpointURL,
		Transport:           descriptor.TransportType,
		Capabilities:        capabilities,
		AuthConfig:          descriptor.AuthConfig,
		Enabled:             true,
		HealthCheckEnabled:  descriptor.HealthCheckEnabled,
		HealthCheckInterval: interval,
		Health:              domain.HealthSnapshot{Status: domain.HealthStatusUnknown},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if rec.DisplayName == "" {
		rec.DisplayName = rec.Name
	}

	key := nameKey(auth.TenantID, name)

	r.mu.Lock()
	if _, taken := r.names[key]; taken {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", errors.ErrDuplicateName, name)
	}
	r.entries[rec.ID] = &entry{rec: rec}
	r.names[key] = rec.ID
	r.capabilities.Add(rec.TenantID, rec.ID, rec.Capabilities)
	r.mu.Unlock()

	if err := r.store.Save(ctx, rec.Clone()); err != nil {
		// Roll the cache back so a failed persist does not leave a phantom record.
		r.mu.Lock()
		delete(r.entries, rec.ID)
		delete(r.names, key)
		r.capabilities.Remove(rec.TenantID, rec.ID)
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to persist server %q: %w", name, err)
	}

	r.emitAudit(auth, rec.ID, domain.AuditOpRegister, map[string]string{
		"name":      rec.Name,
		"endpoint":  rec.EndpointURL,
		"transport": string(rec.Transport),
	})
	r.notifyRegistered(rec.Clone())
	r.logger.Info("server registered", "id", rec.ID, "name", rec.Name, "tenant", rec.TenantID)

	return rec.Clone(), nil
}

// Get returns the record for the given id, scoped to the caller's tenant.
// Soft-deleted records are reported as not found.
func (r *Registry) Get(_ context.Context, auth domain.AuthContext, id string) (*domain.ServerRecord, error) {
	e, err := r.lookup(auth.TenantID, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Deleted {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return e.rec.Clone(), nil
}

// List returns all live records for the caller's tenant that match the given
// filters. Supported filter keys: name, status, transport, capability, enabled.
func (r *Registry) List(
	_ context.Context,
	auth domain.AuthContext,
	filters map[string]string,
) ([]*domain.ServerRecord, error) {
	opts := []filter.Option[*domain.ServerRecord]{
		filter.WithMatcher("name", filter.Partial(func(rec *domain.ServerRecord) string { return rec.Name })),
		filter.WithMatcher("status", filter.Equals(func(rec *domain.ServerRecord) string { return string(rec.Health.Status) })),
		filter.WithMatcher("transport", filter.Equals(func(rec *domain.ServerRecord) string { return string(rec.Transport) })),
		filter.WithMatcher("capability", filter.PartialAny(func(rec *domain.ServerRecord) []string { return rec.Capabilities })),
		filter.WithMatcher("enabled", filter.EqualsBool(func(rec *domain.ServerRecord) bool { return rec.Enabled })),
		// Tenant scoping comes from the auth context and deleted records are
		// never listed; filtering on either is a caller mistake.
		filter.WithUnsupportedKeys[*domain.ServerRecord]("tenant", "deleted"),
		filter.WithLogFunc[*domain.ServerRecord](func(key, val string) {
			r.logger.Debug("unsupported list filter", "key", key, "value", val)
		}),
	}

	var out []*domain.ServerRecord
	for _, rec := range r.liveRecords(auth.TenantID) {
		ok, err := filter.Match(rec, filters, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrValidation, err)
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Update applies an administrative patch to the record under its single-writer
// lock, so concurrent health writes are never lost.
func (r *Registry) Update(
	ctx context.Context,
	auth domain.AuthContext,
	id string,
	patch domain.ServerPatch,
) (*domain.ServerRecord, error) {
	e, err := r.lookup(auth.TenantID, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Deleted {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}

	// The patch lands on a copy and is persisted before the cache commits,
	// so a rejected field or a store failure leaves the live record intact.
	updated := e.rec.Clone()
	if err := applyPatch(updated, patch); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := r.store.Save(ctx, updated.Clone()); err != nil {
		return nil, fmt.Errorf("failed to persist server %q: %w", updated.Name, err)
	}

	e.rec = updated
	if patch.Capabilities != nil {
		r.capabilities.Replace(e.rec.TenantID, e.rec.ID, e.rec.Capabilities)
	}

	r.emitAudit(auth, id, domain.AuditOpUpdate, map[string]string{"name": e.rec.Name})
	r.notifyUpdated(e.rec.Clone())

	return e.rec.Clone(), nil
}

// SoftDelete marks the record deleted and removes it from the live indexes
// immediately. The physical purge happens asynchronously via PurgeDeleted.
// A second call for the same id returns ErrServerNotFound.
func (r *Registry) SoftDelete(ctx context.Context, auth domain.AuthContext, id string) error {
	e, err := r.lookup(auth.TenantID, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.rec.Deleted {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	e.rec.Deleted = true
	e.rec.UpdatedAt = time.Now().UTC()
	tenant, name := e.rec.TenantID, e.rec.Name
	snapshot := e.rec.Clone()
	e.mu.Unlock()

	r.mu.Lock()
	delete(r.names, nameKey(tenant, name))
	r.capabilities.Remove(tenant, id)
	r.mu.Unlock()

	if err := r.store.Save(ctx, snapshot); err != nil {
		r.logger.Error("failed to persist soft-delete", "id", id, "error", err)
	}

	r.emitAudit(auth, id, domain.AuditOpDelete, map[string]string{"name": name})
	r.notifyRemoved(id)
	r.logger.Info("server soft-deleted", "id", id, "name", name)

	return nil
}

// PurgeDeleted physically removes soft-deleted records from the cache and the
// durable store. Called by the monitor's sweep, not by request handlers.
func (r *Registry) PurgeDeleted(ctx context.Context) int {
	r.mu.Lock()
	var ids []string
	for id, e := range r.entries {
		e.mu.Lock()
		if e.rec.Deleted {
			ids = append(ids, id)
		}
		e.mu.Unlock()
	}
	for _, id := range ids {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.store.Delete(ctx, id); err != nil {
			r.logger.Error("failed to purge deleted server", "id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		r.logger.Debug("purged soft-deleted servers", "count", len(ids))
	}
	return len(ids)
}

// ApplyHealth mutates the health snapshot of a record under its single-writer
// lock. This is the only mutation path for health fields; the health monitor
// is its only caller. The returned record is a post-mutation clone.
func (r *Registry) ApplyHealth(id string, mutate func(*domain.HealthSnapshot)) (*domain.ServerRecord, error) {
	e, err := r.lookupAnyTenant(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Deleted {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	mutate(&e.rec.Health)
	return e.rec.Clone(), nil
}

// Record returns a clone of a live record by id without tenant scoping.
// Internal collaborators (health monitor) use this; API callers go through Get.
func (r *Registry) Record(id string) (*domain.ServerRecord, error) {
	e, err := r.lookupAnyTenant(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Deleted {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return e.rec.Clone(), nil
}

// HealthSnapshot returns the current health snapshot for a live record.
func (r *Registry) HealthSnapshot(id string) (domain.HealthSnapshot, error) {
	e, err := r.lookupAnyTenant(id)
	if err != nil {
		return domain.HealthSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Deleted {
		return domain.HealthSnapshot{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return e.rec.Clone().Health, nil
}

// HealthSnapshots returns the current health snapshot of every live record,
// keyed by server id.
func (r *Registry) HealthSnapshots() map[string]domain.HealthSnapshot {
	out := make(map[string]domain.HealthSnapshot)
	for _, rec := range r.liveRecords("") {
		out[rec.ID] = rec.Health
	}
	return out
}

// AcquireSlot increments the in-flight counter for a server about to receive a
// proxied request.
func (r *Registry) AcquireSlot(id string) {
	if e, err := r.lookupAnyTenant(id); err == nil {
		e.mu.Lock()
		e.rec.Load.InFlight++
		e.mu.Unlock()
	}
}

// ReleaseSlot decrements the in-flight counter and updates the cumulative
// call/error counters once a proxied request completes.
func (r *Registry) ReleaseSlot(id string, success bool) {
	if e, err := r.lookupAnyTenant(id); err == nil {
		e.mu.Lock()
		if e.rec.Load.InFlight > 0 {
			e.rec.Load.InFlight--
		}
		e.rec.Load.TotalCalls++
		if !success {
			e.rec.Load.TotalErrors++
		}
		e.mu.Unlock()
	}
}

// Candidates returns clones of the live records with the given ids, scoped to
// the caller's tenant. Unknown ids are skipped.
func (r *Registry) Candidates(auth domain.AuthContext, ids []string) []*domain.ServerRecord {
	out := make([]*domain.ServerRecord, 0, len(ids))
	for _, id := range ids {
		e, err := r.lookup(auth.TenantID, id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		if !e.rec.Deleted {
			out = append(out, e.rec.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

// ResolveNames maps server names to ids within a tenant, preserving order and
// skipping unknown names.
func (r *Registry) ResolveNames(auth domain.AuthContext, names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(names))
	for _, n := range names {
		if id, ok := r.names[nameKey(auth.TenantID, n)]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Registry) lookup(tenantID string, id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}

	e.mu.Lock()
	match := e.rec.TenantID == tenantID
	e.mu.Unlock()
	if !match {
		// Cross-tenant ids are indistinguishable from unknown ids by design.
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return e, nil
}

func (r *Registry) lookupAnyTenant(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return e, nil
}

// liveRecords returns clones of all non-deleted records, optionally scoped to
// a tenant (empty tenant means all tenants).
func (r *Registry) liveRecords(tenantID string) []*domain.ServerRecord {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*domain.ServerRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.rec.Deleted && (tenantID == "" || e.rec.TenantID == tenantID) {
			out = append(out, e.rec.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

func (r *Registry) emitAudit(auth domain.AuthContext, id string, op string, details map[string]string) {
	r.audit.Emit(domain.AuditEvent{
		TenantID:     auth.TenantID,
		ActorID:      auth.UserID,
		ResourceType: "mcp_server",
		ResourceID:   id,
		Operation:    op,
		Timestamp:    time.Now().UTC(),
		Details:      details,
	})
}

func (r *Registry) notifyRegistered(rec *domain.ServerRecord) {
	r.watcherMu.RLock()
	defer r.watcherMu.RUnlock()
	for _, w := range r.watchers {
		w.ServerRegistered(rec)
	}
}

func (r *Registry) notifyUpdated(rec *domain.ServerRecord) {
	r.watcherMu.RLock()
	defer r.watcherMu.RUnlock()
	for _, w := range r.watchers {
		w.ServerUpdated(rec)
	}
}

func (r *Registry) notifyRemoved(id string) {
	r.watcherMu.RLock()
	defer r.watcherMu.RUnlock()
	for _, w := range r.watchers {
		w.ServerRemoved(id)
	}
}

func applyPatch(rec *domain.ServerRecord, patch domain.ServerPatch) error {
	if patch.EndpointURL != nil {
		if err := validateEndpointURL(*patch.EndpointURL); err != nil {
			return err
		}
		rec.EndpointURL = *patch.EndpointURL
	}
	if patch.TransportType != nil {
		if !patch.TransportType.Valid() {
			return fmt.Errorf("%w: unsupported transport %q", errors.ErrValidation, *patch.TransportType)
		}
		rec.Transport = *patch.TransportType
	}
	if patch.DisplayName != nil {
		rec.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Capabilities != nil {
		caps := filter.NormalizeSlice(patch.Capabilities)
		if err := validateCapabilities(caps); err != nil {
			return err
		}
		rec.Capabilities = caps
	}
	if patch.AuthConfig != nil {
		rec.AuthConfig = patch.AuthConfig
	}
	if patch.Enabled != nil {
		rec.Enabled = *patch.Enabled
	}
	if patch.Maintenance != nil {
		rec.Maintenance = *patch.Maintenance
	}
	if patch.HealthCheckEnabled != nil {
		rec.HealthCheckEnabled = *patch.HealthCheckEnabled
	}
	if patch.HealthCheckIntervalSecs != nil {
		if *patch.HealthCheckIntervalSecs < 1 {
			return fmt.Errorf("%w: health check interval must be at least 1s", errors.ErrValidation)
		}
		rec.HealthCheckInterval = time.Duration(*patch.HealthCheckIntervalSecs) * time.Second
	}
	return nil
}

func nameKey(tenantID string, name string) string {
	return tenantID + "\x00" + filter.NormalizeString(name)
}
