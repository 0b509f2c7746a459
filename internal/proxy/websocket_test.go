package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
)

func wsEndpoint(httpURL string) contracts.Endpoint {
	return contracts.Endpoint{
		URL:  "ws" + strings.TrimPrefix(httpURL, "http"),
		Kind: domain.TransportWebSocket,
	}
}

// echoWSServer upgrades each connection and answers every request frame
// through handle.
func echoWSServer(t *testing.T, handle func(req domain.ProxyRequest, conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		var req domain.ProxyRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		handle(req, conn)
	}))
}

func TestWebSocketTransport_Send(t *testing.T) {
	t.Parallel()

	srv := echoWSServer(t, func(req domain.ProxyRequest, conn *websocket.Conn) {
		_ = conn.WriteJSON(domain.ProxyResponse{
			JSONRPC: domain.JSONRPCVersion,
			ID:      req.ID,
			Result:  json.RawMessage(`{"content":"hello"}`),
		})
	})
	defer srv.Close()

	transport := NewWebSocketTransport(hclog.NewNullLogger())

	resp, err := transport.Send(context.Background(), wsEndpoint(srv.URL), nil, testProxyRequest(), 5*time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `{"content":"hello"}`, string(resp.Result))
}

func TestWebSocketTransport_SkipsNotificationFrames(t *testing.T) {
	t.Parallel()

	srv := echoWSServer(t, func(req domain.ProxyRequest, conn *websocket.Conn) {
		// A server-initiated notification arrives before the actual response.
		_ = conn.WriteJSON(domain.ProxyRequest{
			JSONRPC: domain.JSONRPCVersion,
			Method:  "notifications/progress",
		})
		_ = conn.WriteJSON(domain.ProxyResponse{
			JSONRPC: domain.JSONRPCVersion,
			ID:      req.ID,
			Result:  json.RawMessage(`"done"`),
		})
	})
	defer srv.Close()

	transport := NewWebSocketTransport(hclog.NewNullLogger())

	resp, err := transport.Send(context.Background(), wsEndpoint(srv.URL), nil, testProxyRequest(), 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, `"done"`, string(resp.Result))
}

func TestWebSocketTransport_ForwardsCredentialHeaders(t *testing.T) {
	t.Parallel()

	var gotAuth string
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		var req domain.ProxyRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(domain.ProxyResponse{
			JSONRPC: domain.JSONRPCVersion,
			ID:      req.ID,
			Result:  json.RawMessage(`"ok"`),
		})
	}))
	defer srv.Close()

	transport := NewWebSocketTransport(hclog.NewNullLogger())
	credential := map[string]string{"Authorization": "Bearer token-123"}

	_, err := transport.Send(context.Background(), wsEndpoint(srv.URL), credential, testProxyRequest(), 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "Bearer token-123", gotAuth)
}

func TestWebSocketTransport_TimeoutWhenServerStaysSilent(t *testing.T) {
	t.Parallel()

	srv := echoWSServer(t, func(_ domain.ProxyRequest, conn *websocket.Conn) {
		// Never respond; the read deadline has to fire.
		time.Sleep(2 * time.Second)
	})
	defer srv.Close()

	transport := NewWebSocketTransport(hclog.NewNullLogger())

	start := time.Now()
	_, err := transport.Send(context.Background(), wsEndpoint(srv.URL), nil, testProxyRequest(), 100*time.Millisecond)
	require.Less(t, time.Since(start), 5*time.Second)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, FailureTimeout, terr.Kind)
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	transport := NewWebSocketTransport(hclog.NewNullLogger())

	_, err := transport.Send(context.Background(), wsEndpoint(url), nil, testProxyRequest(), time.Second)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, FailureConnectionRefused, terr.Kind)
}
