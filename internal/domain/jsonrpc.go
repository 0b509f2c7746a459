package domain

import (
	"encoding/json"
	"time"
)

// JSONRPCVersion is the only protocol version the gateway accepts or emits.
const JSONRPCVersion = "2.0"

// ProxyRequest is the JSON-RPC 2.0 envelope accepted by the gateway,
// forwarded verbatim to the chosen backend.
type ProxyRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object returned by a backend.
// Application-level errors are passed through to the caller unchanged.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ProxyResponse is either the backend's JSON-RPC result/error, or a
// gateway-originated failure surfaced before any backend answered.
type ProxyResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`

	// ServerID identifies the backend that produced the response.
	// Empty for gateway-originated failures.
	ServerID string `json:"-"`
}

// RoutingHints are gateway-level routing directives carried alongside a
// ProxyRequest. All fields are optional.
type RoutingHints struct {
	RequiredTools     []string      `json:"requiredTools,omitempty"`
	RequiredResources []string      `json:"requiredResources,omitempty"`
	PreferredServers  []string      `json:"preferredServers,omitempty"`
	Timeout           time.Duration `json:"-"`
	TimeoutSecs       int           `json:"timeoutSeconds,omitempty"`
	AllowDegraded     bool          `json:"allowDegraded,omitempty"`
}

// RequiredCapabilities merges tool and resource requirements into the
// capability set presented to the index.
func (h RoutingHints) RequiredCapabilities() []string {
	caps := make([]string, 0, len(h.RequiredTools)+len(h.RequiredResources))
	caps = append(caps, h.RequiredTools...)
	caps = append(caps, h.RequiredResources...)
	return caps
}
