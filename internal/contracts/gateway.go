package contracts

import (
	"context"
	"time"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// Endpoint identifies where and how a backend server is reached.
type Endpoint struct {
	URL  string
	Kind domain.TransportKind
}

// Transport sends a single JSON-RPC request to a backend endpoint and returns
// the backend's response or a typed transport failure. Implementations may
// pool connections per endpoint, but must enforce the supplied timeout
// regardless of pooling strategy.
type Transport interface {
	Send(
		ctx context.Context,
		endpoint Endpoint,
		credential map[string]string,
		req domain.ProxyRequest,
		timeout time.Duration,
	) (*domain.ProxyResponse, error)
}

// RegistryStore is the external durable store backing the in-memory registry.
// The registry treats it as write-through: records are persisted on mutation
// and loaded once at startup.
type RegistryStore interface {
	// Save persists the record, inserting or overwriting by id.
	Save(ctx context.Context, record *domain.ServerRecord) error

	// Delete removes the record by id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// LoadAll returns every persisted record.
	LoadAll(ctx context.Context) ([]*domain.ServerRecord, error)
}

// AuditSink consumes audit events emitted by the gateway.
// Implementations must not block the caller; persistence is external.
type AuditSink interface {
	Emit(event domain.AuditEvent)
}

// MetricSink consumes metric samples emitted per probe and per proxied request.
type MetricSink interface {
	Emit(sample domain.MetricSample)
}

// ServerRegistry is the registry contract consumed by the API layer.
type ServerRegistry interface {
	Register(ctx context.Context, auth domain.AuthContext, descriptor domain.ServerDescriptor) (*domain.ServerRecord, error)
	Get(ctx context.Context, auth domain.AuthContext, id string) (*domain.ServerRecord, error)
	List(ctx context.Context, auth domain.AuthContext, filters map[string]string) ([]*domain.ServerRecord, error)
	Update(ctx context.Context, auth domain.AuthContext, id string, patch domain.ServerPatch) (*domain.ServerRecord, error)
	SoftDelete(ctx context.Context, auth domain.AuthContext, id string) error
}

// RequestRouter resolves and dispatches a JSON-RPC request to a backend.
type RequestRouter interface {
	Route(
		ctx context.Context,
		auth domain.AuthContext,
		req domain.ProxyRequest,
		hints domain.RoutingHints,
	) (*domain.ProxyResponse, error)
}

// HealthReader provides read access to live server health.
type HealthReader interface {
	// Snapshot returns the current health snapshot for a server.
	Snapshot(serverID string) (domain.HealthSnapshot, error)

	// List returns the current snapshot for every monitored server, keyed by id.
	List() map[string]domain.HealthSnapshot
}
