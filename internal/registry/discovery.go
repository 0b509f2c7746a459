package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/filter"
)

// discoveryTimeout bounds the one-shot tools/list call made during
// registration when the descriptor opts into capability discovery.
const discoveryTimeout = 10 * time.Second

// Option configures optional Registry collaborators.
type Option func(*Registry) error

// WithCapabilityDiscoverer enables tools/list capability discovery at
// registration time, using the given transport to reach the backend.
func WithCapabilityDiscoverer(t contracts.Transport) Option {
	return func(r *Registry) error {
		if t == nil {
			return fmt.Errorf("capability discoverer cannot be nil")
		}
		r.discoverer = t
		return nil
	}
}

// discoverCapabilities asks the backend for its tool list and returns the
// union of declared and discovered capability names. Discovery failures are
// non-fatal: registration proceeds with the declared set and the first health
// probe will surface an unreachable backend.
func (r *Registry) discoverCapabilities(
	ctx context.Context,
	descriptor domain.ServerDescriptor,
	declared []string,
) []string {
	req := domain.ProxyRequest{
		JSONRPC: domain.JSONRPCVersion,
		ID:      json.RawMessage(`"capability-discovery"`),
		Method:  string(mcp.MethodToolsList),
	}
	endpoint := contracts.Endpoint{URL: descriptor.EndpointURL, Kind: descriptor.TransportType}

	resp, err := r.discoverer.Send(ctx, endpoint, descriptor.AuthConfig, req, discoveryTimeout)
	if err != nil || resp.Error != nil {
		r.logger.Warn("capability discovery failed, using declared capabilities",
			"server", descriptor.Name, "error", err)
		return declared
	}

	var listed mcp.ListToolsResult
	if err := json.Unmarshal(resp.Result, &listed); err != nil {
		r.logger.Warn("capability discovery returned an unparseable tool list",
			"server", descriptor.Name, "error", err)
		return declared
	}

	seen := make(map[string]struct{}, len(declared))
	merged := make([]string, 0, len(declared)+len(listed.Tools))
	for _, c := range declared {
		seen[c] = struct{}{}
		merged = append(merged, c)
	}
	for _, tool := range listed.Tools {
		name := filter.NormalizeString(tool.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}
	return merged
}
