package api

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// Server is the API representation of a registered backend server.
type Server struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	DisplayName         string     `json:"displayName"`
	EndpointURL         string     `json:"endpointUrl"`
	TransportType       string     `json:"transportType"`
	Capabilities        []string   `json:"capabilities"`
	Enabled             bool       `json:"enabled"`
	Maintenance         bool       `json:"maintenance"`
	HealthCheckEnabled  bool       `json:"healthCheckEnabled"`
	HealthCheckInterval string     `json:"healthCheckInterval"`
	Status              string     `json:"status"`
	SuccessRate         float64    `json:"successRate"`
	LastResponseTime    *string    `json:"lastResponseTime,omitempty"`
	InFlight            int64      `json:"inFlight"`
	TotalCalls          int64      `json:"totalCalls"`
	TotalErrors         int64      `json:"totalErrors"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// DomainServer is a wrapper that allows receivers to be declared in the API
// package that deal with domain types.
type DomainServer domain.ServerRecord

// ToAPIType converts a wrapped domain record to its API-safe representation.
// The opaque auth config is deliberately never exposed.
func (d DomainServer) ToAPIType() Server {
	s := Server{
		ID:                  d.ID,
		Name:                d.Name,
		DisplayName:         d.DisplayName,
		EndpointURL:         d.EndpointURL,
		TransportType:       string(d.Transport),
		Capabilities:        d.Capabilities,
		Enabled:             d.Enabled,
		Maintenance:         d.Maintenance,
		HealthCheckEnabled:  d.HealthCheckEnabled,
		HealthCheckInterval: d.HealthCheckInterval.String(),
		Status:              string(d.Health.Status),
		SuccessRate:         d.Health.SuccessRate,
		InFlight:            d.Load.InFlight,
		TotalCalls:          d.Load.TotalCalls,
		TotalErrors:         d.Load.TotalErrors,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if d.Health.LastResponseTime != nil {
		rt := d.Health.LastResponseTime.String()
		s.LastResponseTime = &rt
	}
	return s
}

// RegisterServerRequest is the incoming request to register a server.
type RegisterServerRequest struct {
	TenantID string                  `header:"X-Tenant-ID" required:"true" doc:"Tenant owning the server"`
	ActorID  string                  `header:"X-Actor-ID"                  doc:"Acting user id for audit attribution"`
	Body     domain.ServerDescriptor `required:"true"`
}

// RegisterServerResponse wraps the newly created server.
type RegisterServerResponse struct {
	Body Server
}

// ListServersRequest is the incoming request to list servers with filters.
type ListServersRequest struct {
	TenantID   string `header:"X-Tenant-ID" required:"true"`
	ActorID    string `header:"X-Actor-ID"`
	Name       string `query:"name"       doc:"Filter by name substring"`
	Status     string `query:"status"     doc:"Filter by health status"`
	Capability string `query:"capability" doc:"Filter by capability substring"`
	Transport  string `query:"transport"  doc:"Filter by transport kind"`
	Enabled    string `query:"enabled"    doc:"Filter by enabled flag"`
}

// ListServersResponse wraps the matched servers.
type ListServersResponse struct {
	Body struct {
		Servers []Server `json:"servers"`
	}
}

// GetServerRequest is the incoming request to fetch one server.
type GetServerRequest struct {
	TenantID string `header:"X-Tenant-ID" required:"true"`
	ActorID  string `header:"X-Actor-ID"`
	ID       string `path:"id" doc:"Server id"`
}

// GetServerResponse wraps a single server.
type GetServerResponse struct {
	Body Server
}

// UpdateServerBody carries the patchable fields; absent fields are unchanged.
type UpdateServerBody struct {
	DisplayName             *string               `json:"displayName,omitempty"`
	EndpointURL             *string               `json:"endpointUrl,omitempty"`
	TransportType           *domain.TransportKind `json:"transportType,omitempty"`
	Capabilities            []string              `json:"capabilities,omitempty"`
	AuthConfig              map[string]string     `json:"authConfig,omitempty"`
	Enabled                 *bool                 `json:"enabled,omitempty"`
	Maintenance             *bool                 `json:"maintenance,omitempty"`
	HealthCheckEnabled      *bool                 `json:"healthCheckEnabled,omitempty"`
	HealthCheckIntervalSecs *int                  `json:"healthCheckIntervalSeconds,omitempty"`
}

// UpdateServerRequest is the incoming request to patch a server.
type UpdateServerRequest struct {
	TenantID string           `header:"X-Tenant-ID" required:"true"`
	ActorID  string           `header:"X-Actor-ID"`
	ID       string           `path:"id"`
	Body     UpdateServerBody `required:"true"`
}

// DeleteServerRequest is the incoming request to soft-delete a server.
type DeleteServerRequest struct {
	TenantID string `header:"X-Tenant-ID" required:"true"`
	ActorID  string `header:"X-Actor-ID"`
	ID       string `path:"id"`
}

// DeleteServerResponse is intentionally empty; deletion yields 204.
type DeleteServerResponse struct {
	Status int
}

// RegisterServerRoutes sets up the server registration CRUD endpoints.
func RegisterServerRoutes(routerAPI huma.API, reg contracts.ServerRegistry, apiPathPrefix string) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Servers"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "registerServer",
			Method:        http.MethodPost,
			Summary:       "Register a backend MCP server",
			Tags:          tags,
			DefaultStatus: http.StatusCreated,
		},
		func(ctx context.Context, input *RegisterServerRequest) (*RegisterServerResponse, error) {
			return handleRegisterServer(ctx, reg, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Summary:     "List registered servers",
			Tags:        tags,
		},
		func(ctx context.Context, input *ListServersRequest) (*ListServersResponse, error) {
			return handleListServers(ctx, reg, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get a registered server",
			Tags:        tags,
		},
		func(ctx context.Context, input *GetServerRequest) (*GetServerResponse, error) {
			return handleGetServer(ctx, reg, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "updateServer",
			Method:      http.MethodPatch,
			Path:        "/{id}",
			Summary:     "Update a registered server",
			Tags:        tags,
		},
		func(ctx context.Context, input *UpdateServerRequest) (*GetServerResponse, error) {
			return handleUpdateServer(ctx, reg, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID:   "deleteServer",
			Method:        http.MethodDelete,
			Path:          "/{id}",
			Summary:       "Soft-delete a registered server",
			Tags:          tags,
			DefaultStatus: http.StatusNoContent,
		},
		func(ctx context.Context, input *DeleteServerRequest) (*DeleteServerResponse, error) {
			return handleDeleteServer(ctx, reg, input)
		},
	)
}

func handleRegisterServer(
	ctx context.Context,
	reg contracts.ServerRegistry,
	input *RegisterServerRequest,
) (*RegisterServerResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)
	rec, err := reg.Register(ctx, auth, input.Body)
	if err != nil {
		return nil, err
	}
	return &RegisterServerResponse{Body: DomainServer(*rec).ToAPIType()}, nil
}

func handleListServers(
	ctx context.Context,
	reg contracts.ServerRegistry,
	input *ListServersRequest,
) (*ListServersResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)

	filters := map[string]string{}
	for key, val := range map[string]string{
		"name":       input.Name,
		"status":     input.Status,
		"capability": input.Capability,
		"transport":  input.Transport,
		"enabled":    input.Enabled,
	} {
		if strings.TrimSpace(val) != "" {
			filters[key] = val
		}
	}

	records, err := reg.List(ctx, auth, filters)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b *domain.ServerRecord) int {
		return strings.Compare(a.Name, b.Name)
	})

	resp := &ListServersResponse{}
	resp.Body.Servers = make([]Server, 0, len(records))
	for _, rec := range records {
		resp.Body.Servers = append(resp.Body.Servers, DomainServer(*rec).ToAPIType())
	}
	return resp, nil
}

func handleGetServer(
	ctx context.Context,
	reg contracts.ServerRegistry,
	input *GetServerRequest,
) (*GetServerResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)
	rec, err := reg.Get(ctx, auth, input.ID)
	if err != nil {
		return nil, err
	}
	return &GetServerResponse{Body: DomainServer(*rec).ToAPIType()}, nil
}

func handleUpdateServer(
	ctx context.Context,
	reg contracts.ServerRegistry,
	input *UpdateServerRequest,
) (*GetServerResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)
	patch := domain.ServerPatch{
		DisplayName:             input.Body.DisplayName,
		EndpointURL:             input.Body.EndpointURL,
		TransportType:           input.Body.TransportType,
		Capabilities:            input.Body.Capabilities,
		AuthConfig:              input.Body.AuthConfig,
		Enabled:                 input.Body.Enabled,
		Maintenance:             input.Body.Maintenance,
		HealthCheckEnabled:      input.Body.HealthCheckEnabled,
		HealthCheckIntervalSecs: input.Body.HealthCheckIntervalSecs,
	}
	rec, err := reg.Update(ctx, auth, input.ID, patch)
	if err != nil {
		return nil, err
	}
	return &GetServerResponse{Body: DomainServer(*rec).ToAPIType()}, nil
}

func handleDeleteServer(
	ctx context.Context,
	reg contracts.ServerRegistry,
	input *DeleteServerRequest,
) (*DeleteServerResponse, error) {
	auth := authFromHeaders(input.TenantID, input.ActorID)
	if err := reg.SoftDelete(ctx, auth, input.ID); err != nil {
		return nil, err
	}
	return &DeleteServerResponse{Status: http.StatusNoContent}, nil
}
