package domain

import "time"

const (
	HealthStatusUnknown     HealthStatus = "unknown"
	HealthStatusHealthy     HealthStatus = "healthy"
	HealthStatusDegraded    HealthStatus = "degraded"
	HealthStatusUnhealthy   HealthStatus = "unhealthy"
	HealthStatusUnreachable HealthStatus = "unreachable"
)

// HealthStatus represents the internal state of an MCP server's availability.
type HealthStatus string

// Routable reports whether a server in this state may receive proxied traffic.
// Only healthy and degraded servers are routable.
func (s HealthStatus) Routable() bool {
	return s == HealthStatusHealthy || s == HealthStatusDegraded
}

// Valid reports whether the value is one of the known health statuses.
func (s HealthStatus) Valid() bool {
	switch s {
	case HealthStatusUnknown, HealthStatusHealthy, HealthStatusDegraded,
		HealthStatusUnhealthy, HealthStatusUnreachable:
		return true
	default:
		return false
	}
}

// HealthSample records the outcome of a single probe against one server.
// Samples are append-only and retained in a bounded rolling window per server.
type HealthSample struct {
	Timestamp    time.Time
	Success      bool
	ResponseTime *time.Duration
	StatusCode   *int
	Error        string
}

// HealthSnapshot is the live health state carried on a ServerRecord.
// Only the health monitor writes these fields.
type HealthSnapshot struct {
	Status              HealthStatus
	LastResponseTime    *time.Duration
	SuccessRate         float64
	ConsecutiveFailures int
	LastChecked         *time.Time
	LastSuccessful      *time.Time
}
