package api

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// TenantHeader carries the caller's tenant id, resolved by the external auth
// layer in front of the gateway. The gateway trusts it.
const TenantHeader = "X-Tenant-ID"

// ActorHeader carries the acting user id for audit attribution.
const ActorHeader = "X-Actor-ID"

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(
	router huma.API,
	reg contracts.ServerRegistry,
	health contracts.HealthReader,
	requestRouter contracts.RequestRouter,
) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if reg == nil || reflect.ValueOf(reg).IsNil() {
		return "", fmt.Errorf("server registry cannot be nil")
	}
	if health == nil || reflect.ValueOf(health).IsNil() {
		return "", fmt.Errorf("health reader cannot be nil")
	}
	if requestRouter == nil || reflect.ValueOf(requestRouter).IsNil() {
		return "", fmt.Errorf("request router cannot be nil")
	}

	apiPathPrefix, err := url.JoinPath("/api", APIVersion)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterServerRoutes(versionedGroup, reg, "/servers")
	RegisterHealthRoutes(versionedGroup, reg, health, "/health")
	RegisterRPCRoutes(versionedGroup, requestRouter, "/rpc")

	return apiPathPrefix, nil
}

// authFromHeaders builds the trusted AuthContext from boundary headers.
func authFromHeaders(tenantID string, actorID string) domain.AuthContext {
	return domain.AuthContext{
		TenantID: tenantID,
		UserID:   actorID,
	}
}
