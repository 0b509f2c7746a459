package domain

import (
	"slices"
	"time"
)

const (
	TransportHTTP      TransportKind = "http"
	TransportWebSocket TransportKind = "websocket"
)

// TransportKind identifies how the gateway speaks JSON-RPC to a backend server.
type TransportKind string

// Valid reports whether the value is a supported transport.
func (t TransportKind) Valid() bool {
	return t == TransportHTTP || t == TransportWebSocket
}

// ServerDescriptor is the registration input for a backend MCP server.
// AuthConfig is an opaque credential reference owned by the external auth
// subsystem; the gateway stores and forwards it without interpreting it.
type ServerDescriptor struct {
	Name                      string            `json:"name"`
	DisplayName               string            `json:"displayName,omitempty"`
	EndpointURL               string            `json:"endpointUrl"`
	TransportType             TransportKind     `json:"transportType"`
	Capabilities              []string          `json:"capabilities,omitempty"`
	AuthConfig                map[string]string `json:"authConfig,omitempty"`
	HealthCheckEnabled        bool              `json:"healthCheckEnabled"`
	HealthCheckIntervalSecs   int               `json:"healthCheckIntervalSeconds,omitempty"`
	DiscoverCapabilities      bool              `json:"discoverCapabilities,omitempty"`
}

// ServerPatch is an administrative update to a registered server.
// Nil fields are left unchanged.
type ServerPatch struct {
	DisplayName             *string
	EndpointURL             *string
	TransportType           *TransportKind
	Capabilities            []string
	AuthConfig              map[string]string
	Enabled                 *bool
	Maintenance             *bool
	HealthCheckEnabled      *bool
	HealthCheckIntervalSecs *int
}

// LoadStats are the per-server load counters consulted by the load balancer.
type LoadStats struct {
	InFlight         int64
	TotalCalls       int64
	TotalErrors      int64
}

// ServerRecord is the registry's view of one backend MCP server.
// The registry owns all mutation; the health monitor is the only writer of
// the Health field, and routing code only ever reads.
type ServerRecord struct {
	ID           string
	TenantID     string
	Name         string
	DisplayName  string
	EndpointURL  string
	Transport    TransportKind
	Capabilities []string
	AuthConfig   map[string]string

	Enabled     bool
	Maintenance bool
	Deleted     bool

	HealthCheckEnabled  bool
	HealthCheckInterval time.Duration

	Health HealthSnapshot
	Load   LoadStats

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCapability reports whether the server advertises the named capability.
func (r *ServerRecord) HasCapability(name string) bool {
	return slices.Contains(r.Capabilities, name)
}

// Routable reports whether the record may be considered for routing at all:
// enabled, not in maintenance, not deleted, and in a routable health state.
func (r *ServerRecord) Routable() bool {
	return r.Enabled && !r.Maintenance && !r.Deleted && r.Health.Status.Routable()
}

// Clone returns a deep copy safe to hand to readers outside the registry.
func (r *ServerRecord) Clone() *ServerRecord {
	c := *r
	c.Capabilities = slices.Clone(r.Capabilities)
	if r.AuthConfig != nil {
		c.AuthConfig = make(map[string]string, len(r.AuthConfig))
		for k, v := range r.AuthConfig {
			c.AuthConfig[k] = v
		}
	}
	if r.Health.LastResponseTime != nil {
		d := *r.Health.LastResponseTime
		c.Health.LastResponseTime = &d
	}
	if r.Health.LastChecked != nil {
		t := *r.Health.LastChecked
		c.Health.LastChecked = &t
	}
	if r.Health.LastSuccessful != nil {
		t := *r.Health.LastSuccessful
		c.Health.LastSuccessful = &t
	}
	return &c
}
