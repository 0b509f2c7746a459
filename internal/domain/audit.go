package domain

import "time"

const (
	AuditOpRegister     = "register"
	AuditOpUpdate       = "update"
	AuditOpDelete       = "delete"
	AuditOpStatusChange = "health_status_change"
)

// AuditEvent is emitted on every register/update/delete and on every
// health-triggered status change. An external collaborator persists these;
// the gateway only constructs and emits them.
type AuditEvent struct {
	TenantID     string            `json:"tenantId"`
	ActorID      string            `json:"actorId"`
	ResourceType string            `json:"resourceType"`
	ResourceID   string            `json:"resourceId"`
	Operation    string            `json:"operation"`
	Timestamp    time.Time         `json:"timestamp"`
	Details      map[string]string `json:"details,omitempty"`
}

// MetricSample is emitted per health probe and per proxied request.
// An external collaborator aggregates and exposes these.
type MetricSample struct {
	ServerID       string    `json:"serverId"`
	Timestamp      time.Time `json:"timestamp"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	StatusCode     int       `json:"statusCode,omitempty"`
	Success        bool      `json:"success"`
}
