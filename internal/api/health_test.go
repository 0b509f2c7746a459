package api

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/domain"
	"github.com/gatewaylabs/mcpgw/internal/errors"
)

type fakeHealthReader struct {
	snapshots map[string]domain.HealthSnapshot
}

func (f *fakeHealthReader) Snapshot(serverID string) (domain.HealthSnapshot, error) {
	snap, ok := f.snapshots[serverID]
	if !ok {
		return domain.HealthSnapshot{}, fmt.Errorf("%w: %s", errors.ErrHealthNotTracked, serverID)
	}
	return snap, nil
}

func (f *fakeHealthReader) List() map[string]domain.HealthSnapshot {
	return f.snapshots
}

func TestHandleHealthServers(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	for _, name := range []string{"web-search", "file-tools"} {
		_, err := handleRegisterServer(context.Background(), reg, registerRequest(name))
		require.NoError(t, err)
	}

	resp, err := handleHealthServers(context.Background(), reg, &ListServersHealthRequest{TenantID: "acme"})
	require.NoError(t, err)
	require.Len(t, resp.Body.Servers, 2)
	require.Equal(t, "file-tools", resp.Body.Servers[0].Name)
	require.Equal(t, string(domain.HealthStatusUnknown), resp.Body.Servers[0].Status)

	other, err := handleHealthServers(context.Background(), reg, &ListServersHealthRequest{TenantID: "globex"})
	require.NoError(t, err)
	require.Empty(t, other.Body.Servers)
}

func TestHandleHealthServer(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)

	monitored := registerRequest("files")
	monitored.Body.HealthCheckEnabled = true
	monitored.Body.HealthCheckIntervalSecs = 30
	created, err := handleRegisterServer(context.Background(), reg, monitored)
	require.NoError(t, err)

	rt := 42 * time.Millisecond
	checked := time.Now().UTC()
	health := &fakeHealthReader{snapshots: map[string]domain.HealthSnapshot{
		created.Body.ID: {
			Status:           domain.HealthStatusHealthy,
			SuccessRate:      0.98,
			LastResponseTime: &rt,
			LastChecked:      &checked,
			LastSuccessful:   &checked,
		},
	}}

	resp, err := handleHealthServer(context.Background(), reg, health, &ServerHealthRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "files", resp.Body.Name)
	require.Equal(t, string(domain.HealthStatusHealthy), resp.Body.Status)
	require.InDelta(t, 0.98, resp.Body.SuccessRate, 0.001)
	require.NotNil(t, resp.Body.Latency)
	require.Equal(t, "42ms", *resp.Body.Latency)
}

func TestHandleHealthServer_NotTracked(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	health := &fakeHealthReader{snapshots: map[string]domain.HealthSnapshot{}}

	// Health checks disabled means health is simply not tracked.
	created, err := handleRegisterServer(context.Background(), reg, registerRequest("files"))
	require.NoError(t, err)

	_, err = handleHealthServer(context.Background(), reg, health, &ServerHealthRequest{
		TenantID: "acme",
		ID:       created.Body.ID,
	})
	require.ErrorIs(t, err, errors.ErrHealthNotTracked)

	// Unknown server is a registry miss, not a health miss.
	_, err = handleHealthServer(context.Background(), reg, health, &ServerHealthRequest{
		TenantID: "acme",
		ID:       "nonexistent",
	})
	require.ErrorIs(t, err, errors.ErrServerNotFound)
}
