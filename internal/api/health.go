package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
)

// ServerHealth provides information about the ongoing health checks performed
// on a registered backend server.
type ServerHealth struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	SuccessRate         float64    `json:"successRate"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	Latency             *string    `json:"latency,omitempty"`
	LastChecked         *time.Time `json:"lastChecked,omitempty"`
	LastSuccessful      *time.Time `json:"lastSuccessful,omitempty"`
}

// ServersHealthResponse is the response for listing all server health.
type ServersHealthResponse struct {
	Body struct {
		Servers []ServerHealth `doc:"Tracked server health statuses" json:"servers"`
	}
}

// ServerHealthRequest is the incoming request for one server's health.
type ServerHealthRequest struct {
	TenantID string `header:"X-Tenant-ID" required:"true"`
	ActorID  string `header:"X-Actor-ID"`
	ID       string `path:"id" doc:"Server id"`
}

// ListServersHealthRequest is the incoming request for the fleet's health.
type ListServersHealthRequest struct {
	TenantID string `header:"X-Tenant-ID" required:"true"`
	ActorID  string `header:"X-Actor-ID"`
}

// ServerHealthResponse wraps a single server's health.
type ServerHealthResponse struct {
	Body ServerHealth
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(
	routerAPI huma.API,
	reg contracts.ServerRegistry,
	health contracts.HealthReader,
	apiPathPrefix string,
) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "listServersHealth",
			Method:      http.MethodGet,
			Path:        "/servers",
			Summary:     "List the health statuses for all servers",
			Tags:        tags,
		},
		func(ctx context.Context, input *ListServersHealthRequest) (*ServersHealthResponse, error) {
			return handleHealthServers(ctx, reg, input)
		},
	)

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getServerHealth",
			Method:      http.MethodGet,
			Path:        "/servers/{id}",
			Summary:     "Get the health status of a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerHealthRequest) (*ServerHealthResponse, error) {
			return handleHealthServer(ctx, reg, health, input)
		},
	)
}

// handleHealthServers reports health for every live server in the tenant.
func handleHealthServers(
	ctx context.Context,
	reg contracts.ServerRegistry,
	input *ListServersHealthRequest,
) (*ServersHealthResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)
	records, err := reg.List(ctx, auth, nil)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b *domain.ServerRecord) int {
		return strings.Compare(a.Name, b.Name)
	})

	resp := &ServersHealthResponse{}
	resp.Body.Servers = make([]ServerHealth, 0, len(records))
	for _, rec := range records {
		resp.Body.Servers = append(resp.Body.Servers, toServerHealth(rec.ID, rec.Name, rec.Health))
	}
	return resp, nil
}

// handleHealthServer reports health for one server, confirming tenant
// ownership through the registry before consulting the health reader.
func handleHealthServer(
	ctx context.Context,
	reg contracts.ServerRegistry,
	health contracts.HealthReader,
	input *ServerHealthRequest,
) (*ServerHealthResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)
	rec, err := reg.Get(ctx, auth, input.ID)
	if err != nil {
		return nil, err
	}
	if !rec.HealthCheckEnabled {
		return nil, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, input.ID)
	}

	snapshot, err := health.Snapshot(input.ID)
	if err != nil {
		return nil, err
	}

	return &ServerHealthResponse{Body: toServerHealth(rec.ID, rec.Name, snapshot)}, nil
}

func toServerHealth(id string, name string, h domain.HealthSnapshot) ServerHealth {
	out := ServerHealth{
		ID:                  id,
		Name:                name,
		Status:              string(h.Status),
		SuccessRate:         h.SuccessRate,
		ConsecutiveFailures: h.ConsecutiveFailures,
		LastChecked:         h.LastChecked,
		LastSuccessful:      h.LastSuccessful,
	}
	if h.LastResponseTime != nil {
		latency := h.LastResponseTime.String()
		out.Latency = &latency
	}
	return out
}
