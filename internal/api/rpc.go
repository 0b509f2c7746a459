package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
)

// RPCRequestBody carries the JSON-RPC envelope and optional routing hints.
type RPCRequestBody struct {
	Request domain.ProxyRequest  `json:"request" required:"true"`
	Hints   *domain.RoutingHints `json:"hints,omitempty"`
}

// RPCRequest is the incoming proxy request.
type RPCRequest struct {
	TenantID string         `header:"X-Tenant-ID" required:"true"`
	ActorID  string         `header:"X-Actor-ID"`
	Body     RPCRequestBody `required:"true"`
}

// RPCResponse wraps the backend's JSON-RPC response. The serving backend is
// identified in a response header for diagnostics.
type RPCResponse struct {
	ServerID string `header:"X-MCPGW-Server"`
	Body     domain.ProxyResponse
}

// RegisterRPCRoutes sets up the JSON-RPC proxy endpoint.
func RegisterRPCRoutes(routerAPI huma.API, requestRouter contracts.RequestRouter, apiPathPrefix string) {
	rpcAPI := huma.NewGroup(routerAPI, apiPathPrefix)

	huma.Register(
		rpcAPI,
		huma.Operation{
			OperationID: "proxyRequest",
			Method:      http.MethodPost,
			Summary:     "Proxy a JSON-RPC request to the best available backend",
			Tags:        []string{"Proxy"},
		},
		func(ctx context.Context, input *RPCRequest) (*RPCResponse, error) {
			return handleProxyRequest(ctx, requestRouter, input)
		},
	)
}

func handleProxyRequest(
	ctx context.Context,
	requestRouter contracts.RequestRouter,
	input *RPCRequest,
) (*RPCResponse, error) {
	req := input.Body.Request
	if req.JSONRPC != domain.JSONRPCVersion {
		return nil, fmt.Errorf("%w: jsonrpc version must be %q", errors.ErrValidation, domain.JSONRPCVersion)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: method cannot be empty", errors.ErrValidation)
	}

	var hints domain.RoutingHints
	if input.Body.Hints != nil {
		hints = *input.Body.Hints
	}

	auth := authFromHeaders(input.TenantID, input.ActorID)
	resp, err := requestRouter.Route(ctx, auth, req, hints)
	if err != nil {
		return nil, err
	}

	return &RPCResponse{ServerID: resp.ServerID, Body: *resp}, nil
}
