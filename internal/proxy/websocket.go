package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// WebSocketTransport sends JSON-RPC 2.0 requests over a WebSocket connection.
// Each send dials, exchanges one request/response pair, and closes; the
// caller-supplied timeout covers the whole exchange.
// NewWebSocketTransport should be used to create instances of WebSocketTransport.
type WebSocketTransport struct {
	logger hclog.Logger
	dialer *websocket.Dialer
}

// NewWebSocketTransport creates a WebSocketTransport with a default dialer.
func NewWebSocketTransport(logger hclog.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		logger: logger.Named("transport.ws"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Send dials the endpoint, writes the request frame, and waits for a response
// frame carrying the matching JSON-RPC envelope.
func (t *WebSocketTransport) Send(
	ctx context.Context,
	endpoint contracts.Endpoint,
	credential map[string]string,
	req domain.ProxyRequest,
	timeout time.Duration,
) (*domain.ProxyResponse, error) {
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	for k, v := range credential {
		header.Set(k, v)
	}

	conn, _, err := t.dialer.DialContext(sendCtx, endpoint.URL, header)
	if err != nil {
		return nil, classifyError(endpoint.URL, err)
	}
	defer func() { _ = conn.Close() }()

	deadline, ok := sendCtx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return nil, classifyError(endpoint.URL, err)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, classifyError(endpoint.URL, err)
	}

	if err := conn.WriteJSON(req); err != nil {
		return nil, classifyError(endpoint.URL, err)
	}

	// The request/response exchange is serialized per connection, so the next
	// text frame is the response. Interleaved server notifications are skipped.
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, classifyError(endpoint.URL, err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		var envelope domain.ProxyResponse
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, &TransportError{
				Kind:     FailureProtocol,
				Endpoint: endpoint.URL,
				Err:      fmt.Errorf("invalid JSON-RPC frame: %w", err),
			}
		}
		// Frames without result or error are notifications, not our response.
		if envelope.Result == nil && envelope.Error == nil {
			continue
		}
		return &envelope, nil
	}
}
