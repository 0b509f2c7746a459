package health

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/proxy"
)

// DefaultProbeTimeout bounds a single probe attempt. A probe that exceeds it
// counts as a failure, not a hang.
const DefaultProbeTimeout = 10 * time.Second

// Prober performs a single connectivity/latency check against one backend.
// NewProber should be used to create instances of Prober.
type Prober struct {
	transport contracts.Transport
	timeout   time.Duration
}

// NewProber creates a Prober that pings backends through the given transport.
func NewProber(transport contracts.Transport, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		transport: transport,
		timeout:   timeout,
	}
}

// Probe sends a JSON-RPC ping to the server and returns the resulting sample.
// Failures are captured in the sample, never returned as errors.
func (p *Prober) Probe(ctx context.Context, rec *domain.ServerRecord) domain.HealthSample {
	req := domain.ProxyRequest{
		JSONRPC: domain.JSONRPCVersion,
		ID:      json.RawMessage(`"health-probe"`),
		Method:  string(mcp.MethodPing),
	}
	endpoint := contracts.Endpoint{URL: rec.EndpointURL, Kind: rec.Transport}

	start := time.Now()
	resp, err := p.transport.Send(ctx, endpoint, rec.AuthConfig, req, p.timeout)
	elapsed := time.Since(start)

	sample := domain.HealthSample{
		Timestamp:    time.Now().UTC(),
		ResponseTime: &elapsed,
	}

	if err != nil {
		sample.ResponseTime = nil
		sample.Error = err.Error()
		var terr *proxy.TransportError
		if stderrors.As(err, &terr) && terr.StatusCode != 0 {
			code := terr.StatusCode
			sample.StatusCode = &code
		}
		return sample
	}

	// A JSON-RPC error in response to ping means the server answered but is
	// not behaving as an MCP endpoint; treat it as a failed probe.
	if resp.Error != nil {
		sample.Error = resp.Error.Message
		return sample
	}

	ok := 200
	sample.Success = true
	sample.StatusCode = &ok
	return sample
}
