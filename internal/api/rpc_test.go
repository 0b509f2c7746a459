package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
)

type fakeRouter struct {
	gotAuth  domain.AuthContext
	gotReq   domain.ProxyRequest
	gotHints domain.RoutingHints
	resp     *domain.ProxyResponse
	err      error
}

func (f *fakeRouter) Route(
	_ context.Context,
	auth domain.AuthContext,
	req domain.ProxyRequest,
	hints domain.RoutingHints,
) (*domain.ProxyResponse, error) {
	f.gotAuth = auth
	f.gotReq = req
	f.gotHints = hints
	return f.resp, f.err
}

func rpcInput(body RPCRequestBody) *RPCRequest {
	return &RPCRequest{
		TenantID: "acme",
		ActorID:  "alice",
		Body:     body,
	}
}

func TestHandleProxyRequest(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{
		resp: &domain.ProxyResponse{
			JSONRPC:  domain.JSONRPCVersion,
			ID:       json.RawMessage(`1`),
			Result:   json.RawMessage(`{"content":"hello"}`),
			ServerID: "srv-1",
		},
	}

	input := rpcInput(RPCRequestBody{
		Request: domain.ProxyRequest{
			JSONRPC: domain.JSONRPCVersion,
			ID:      json.RawMessage(`1`),
			Method:  "tools/call",
		},
		Hints: &domain.RoutingHints{
			RequiredTools: []string{"read_file"},
			TimeoutSecs:   5,
		},
	})

	resp, err := handleProxyRequest(context.Background(), router, input)
	require.NoError(t, err)

	// The serving backend is surfaced as a header, never in the envelope.
	require.Equal(t, "srv-1", resp.ServerID)
	require.JSONEq(t, `{"content":"hello"}`, string(resp.Body.Result))

	require.Equal(t, domain.AuthContext{TenantID: "acme", UserID: "alice"}, router.gotAuth)
	require.Equal(t, "tools/call", router.gotReq.Method)
	require.Equal(t, []string{"read_file"}, router.gotHints.RequiredTools)
	require.Equal(t, 5, router.gotHints.TimeoutSecs)
}

func TestHandleProxyRequest_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  domain.ProxyRequest
	}{
		{
			name: "wrong jsonrpc version",
			req:  domain.ProxyRequest{JSONRPC: "1.0", Method: "tools/call"},
		},
		{
			name: "missing jsonrpc version",
			req:  domain.ProxyRequest{Method: "tools/call"},
		},
		{
			name: "empty method",
			req:  domain.ProxyRequest{JSONRPC: domain.JSONRPCVersion},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			router := &fakeRouter{}
			_, err := handleProxyRequest(context.Background(), router, rpcInput(RPCRequestBody{Request: tc.req}))
			require.ErrorIs(t, err, errors.ErrValidation)

			// Invalid envelopes never reach the router.
			require.Empty(t, router.gotReq.Method)
		})
	}
}

func TestHandleProxyRequest_RouterErrorPassesThrough(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{err: errors.ErrNoEligibleServer}

	_, err := handleProxyRequest(context.Background(), router, rpcInput(RPCRequestBody{
		Request: domain.ProxyRequest{JSONRPC: domain.JSONRPCVersion, Method: "tools/call"},
	}))
	require.ErrorIs(t, err, errors.ErrNoEligibleServer)
}

func TestHandleProxyRequest_NilHints(t *testing.T) {
	t.Parallel()

	router := &fakeRouter{resp: &domain.ProxyResponse{JSONRPC: domain.JSONRPCVersion}}

	_, err := handleProxyRequest(context.Background(), router, rpcInput(RPCRequestBody{
		Request: domain.ProxyRequest{JSONRPC: domain.JSONRPCVersion, Method: "tools/call"},
	}))
	require.NoError(t, err)
	require.Equal(t, domain.RoutingHints{}, router.gotHints)
	require.Equal(t, time.Duration(0), router.gotHints.Timeout)
}
