package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// maxResponseBytes bounds how much of a backend response the gateway will
// buffer; anything larger is a protocol error, not a memory obligation.
const maxResponseBytes = 16 << 20

// HTTPTransport sends JSON-RPC 2.0 requests as HTTP POSTs. The underlying
// http.Client pools and reuses connections per endpoint host.
// NewHTTPTransport should be used to create instances of HTTPTransport.
type HTTPTransport struct {
	logger hclog.Logger
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport with a pooled client. Per-request
// deadlines come from the caller's timeout, not from the client itself.
func NewHTTPTransport(logger hclog.Logger) *HTTPTransport {
	return &HTTPTransport{
		logger: logger.Named("transport.http"),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Send posts the JSON-RPC request to the endpoint and decodes the response
// envelope. Credential entries are forwarded as headers.
func (t *HTTPTransport) Send(
	ctx context.Context,
	endpoint contracts.Endpoint,
	credential map[string]string,
	req domain.ProxyRequest,
	timeout time.Duration,
) (*domain.ProxyResponse, error) {
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Kind: FailureProtocol, Endpoint: endpoint.URL, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(sendCtx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Kind: FailureProtocol, Endpoint: endpoint.URL, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range credential {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(endpoint.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused before we report the failure.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &TransportError{
			Kind:       FailureProtocol,
			Endpoint:   endpoint.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected HTTP status %d", resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyError(endpoint.URL, err)
	}

	var envelope domain.ProxyResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &TransportError{
			Kind:       FailureProtocol,
			Endpoint:   endpoint.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid JSON-RPC response: %w", err),
		}
	}

	return &envelope, nil
}
