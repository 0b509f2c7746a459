package api

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/contracts"
	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
	"github.com/gatewaylabs/mcpgw/internal/registry"
)

type nopAudit struct{}

func (nopAudit) Emit(domain.AuditEvent) {}

func newTestRegistry(t *testing.T) contracts.ServerRegistry {
	t.Helper()

	reg, err := registry.NewRegistry(context.Background(), hclog.NewNullLogger(), registry.NewMemoryStore(), nopAudit{})
	require.NoError(t, err)
	return reg
}

func registerRequest(name string, caps ...string) *RegisterServerRequest {
	return &RegisterServerRequest{
		TenantID: "acme",
		ActorID:  "alice",
		Body: domain.ServerDescriptor{
			Name:          name,
			EndpointURL:   "http://" + name + ".local/rpc",
			TransportType: domain.TransportHTTP,
			Capabilities:  caps,
			AuthConfig:    map[string]string{"Authorization": "Bearer secret"},
		},
	}
}

func TestHandleRegisterServer(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	resp, err := handleRegisterServer(context.Background(), reg, registerRequest("files", "tools/read_file"))
	require.NoError(t, err)

	got := resp.Body
	require.NotEmpty(t, got.ID)
	require.Equal(t, "files", got.Name)
	require.Equal(t, "files", got.DisplayName)
	require.Equal(t, "http", got.TransportType)
	require.Equal(t, []string{"tools/read_file"}, got.Capabilities)
	require.True(t, got.Enabled)
	require.Equal(t, string(domain.HealthStatusUnknown), got.Status)

	_, err = handleRegisterServer(context.Background(), reg, registerRequest("files"))
	require.ErrorIs(t, err, errors.ErrDuplicateName)
}

func TestHandleRegisterServer_InvalidDescriptor(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	input := registerRequest("files")
	input.Body.EndpointURL = "ftp://files.local/rpc"

	_, err := handleRegisterServer(context.Background(), reg, input)
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestHandleListServers(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	for _, name := range []string{"zeta-tools", "file-tools", "web-search"} {
		_, err := handleRegisterServer(context.Background(), reg, registerRequest(name, "tools/call"))
		require.NoError(t, err)
	}

	resp, err := handleListServers(context.Background(), reg, &ListServersRequest{TenantID: "acme"})
	require.NoError(t, err)
	require.Len(t, resp.Body.Servers, 3)

	// Results come back sorted by name.
	require.Equal(t, "file-tools", resp.Body.Servers[0].Name)
	require.Equal(t, "web-search", resp.Body.Servers[1].Name)
	require.Equal(t, "zeta-tools", resp.Body.Servers[2].Name)

	filtered, err := handleListServers(context.Background(), reg, &ListServersRequest{
		TenantID: "acme",
		Name:     "tools",
	})
	require.NoError(t, err)
	require.Len(t, filtered.Body.Servers, 2)

	// Another tenant sees nothing.
	other, err := handleListServers(context.Background(), reg, &ListServersRequest{TenantID: "globex"})
	require.NoError(t, err)
	require.Empty(t, other.Body.Servers)
}

func TestHandleGetServer(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	created, err := handleRegisterServer(context.Background(), reg, registerRequest("files"))
	require.NoError(t, err)

	resp, err := handleGetServer(context.Background(), reg, &GetServerRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "files", resp.Body.Name)

	_, err = handleGetServer(context.Background(), reg, &GetServerRequest{
		TenantID: "acme",
		ID:       "nonexistent",
	})
	require.ErrorIs(t, err, errors.ErrServerNotFound)

	// Tenancy is enforced on reads.
	_, err = handleGetServer(context.Background(), reg, &GetServerRequest{
		TenantID: "globex",
		ID:       created.Body.ID,
	})
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestHandleUpdateServer(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	created, err := handleRegisterServer(context.Background(), reg, registerRequest("files"))
	require.NoError(t, err)

	display := "File Tools"
	maintenance := true
	resp, err := handleUpdateServer(context.Background(), reg, &UpdateServerRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
		Body: UpdateServerBody{
			DisplayName: &display,
			Maintenance: &maintenance,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "File Tools", resp.Body.DisplayName)
	require.True(t, resp.Body.Maintenance)

	badURL := "http://"
	_, err = handleUpdateServer(context.Background(), reg, &UpdateServerRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
		Body:     UpdateServerBody{EndpointURL: &badURL},
	})
	require.ErrorIs(t, err, errors.ErrValidation)
}

func TestHandleDeleteServer(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	created, err := handleRegisterServer(context.Background(), reg, registerRequest("files"))
	require.NoError(t, err)

	resp, err := handleDeleteServer(context.Background(), reg, &DeleteServerRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 204, resp.Status)

	_, err = handleGetServer(context.Background(), reg, &GetServerRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
	})
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}

func TestDomainServerToAPIType_HidesAuthConfig(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	created, err := handleRegisterServer(context.Background(), reg, registerRequest("files"))
	require.NoError(t, err)

	// The API type carries no credential material at all; spot-check the
	// fields that do cross the boundary.
	require.Equal(t, "http://files.local/rpc", created.Body.EndpointURL)
	require.NotZero(t, created.Body.CreatedAt)
	require.NotEmpty(t, created.Body.HealthCheckInterval)
}
