// Package proxy implements the transports used to forward JSON-RPC requests
// to backend MCP servers, over HTTP or WebSocket.
package proxy

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
)

const (
	FailureTimeout           FailureKind = "timeout"
	FailureConnectionRefused FailureKind = "connection_refused"
	FailureProtocol          FailureKind = "protocol_error"
)

// FailureKind classifies a transport-level failure.
type FailureKind string

// TransportError is a typed per-attempt transport failure. It is handled by
// the router (retry next candidate) and aggregated, never surfaced directly.
type TransportError struct {
	Kind       FailureKind
	Endpoint   string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s (%s): %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("transport %s (%s)", e.Kind, e.Endpoint)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyError converts a low-level send failure into a TransportError.
func classifyError(endpoint string, err error) *TransportError {
	kind := FailureProtocol
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		kind = FailureTimeout
	case stderrors.Is(err, syscall.ECONNREFUSED):
		kind = FailureConnectionRefused
	default:
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			kind = FailureTimeout
		}
	}
	return &TransportError{Kind: kind, Endpoint: endpoint, Err: err}
}

// Pool dispatches sends to the transport implementation matching the
// endpoint's kind. Connections are pooled inside each implementation.
// NewPool should be used to create instances of Pool.
type Pool struct {
	http *HTTPTransport
	ws   *WebSocketTransport
}

// NewPool creates a Pool with both transport implementations ready.
func NewPool(logger hclog.Logger) *Pool {
	return &Pool{
		http: NewHTTPTransport(logger),
		ws:   NewWebSocketTransport(logger),
	}
}

// Send forwards the request over the endpoint's transport, enforcing the
// caller-supplied timeout regardless of pooling strategy.
func (p *Pool) Send(
	ctx context.Context,
	endpoint contracts.Endpoint,
	credential map[string]string,
	req domain.ProxyRequest,
	timeout time.Duration,
) (*domain.ProxyResponse, error) {
	switch endpoint.Kind {
	case domain.TransportHTTP:
		return p.http.Send(ctx, endpoint, credential, req, timeout)
	case domain.TransportWebSocket:
		return p.ws.Send(ctx, endpoint, credential, req, timeout)
	default:
		return nil, &TransportError{
			Kind:     FailureProtocol,
			Endpoint: endpoint.URL,
			Err:      fmt.Errorf("unsupported transport kind %q", endpoint.Kind),
		}
	}
}
