package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".mcpgw.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultLoader_Init(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".mcpgw.toml")
	loader := NewDefaultLoader()

	require.NoError(t, loader.Init(path))

	cfg, err := loader.Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddr, cfg.ListenAddr)

	// A second init must not clobber an existing file.
	err = loader.Init(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestDefaultLoader_LoadMissingFile(t *testing.T) {
	t.Parallel()

	loader := NewDefaultLoader()

	_, err := loader.Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.ErrorIs(t, err, ErrConfigLoadFailed)
	require.Contains(t, err.Error(), "mcpgw init")

	_, err = loader.Load("   ")
	require.ErrorIs(t, err, ErrConfigLoadFailed)
}

func TestDefaultLoader_LoadMalformedTOML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "listen_addr = [not toml")

	_, err := NewDefaultLoader().Load(path)
	require.ErrorIs(t, err, ErrConfigLoadFailed)
}

func TestDefaultLoader_LoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
listen_addr = "127.0.0.1:9090"

[health]
probe_timeout_seconds = 5
window_size = 20
unreachable_threshold = 2
reap_interval_seconds = 30

[router]
timeout_seconds = 15
max_attempts = 2

[cors]
enabled = true
allow_origins = ["https://ui.example.com"]
max_age_seconds = 300

[[servers]]
tenant = "acme"
name = "files"
display_name = "File Tools"
endpoint_url = "http://localhost:9001/rpc"
transport = "http"
capabilities = ["tools/read_file"]
health_check_enabled = true
health_check_interval_seconds = 30
discover_capabilities = true

[servers.auth_config]
Authorization = "Bearer token-123"
`)

	cfg, err := NewDefaultLoader().Load(path)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	require.Equal(t, 5*time.Second, cfg.Health.ProbeTimeout())
	require.Equal(t, 20, cfg.Health.WindowSize)
	require.Equal(t, 2, cfg.Health.UnreachableThreshold)
	require.Equal(t, 30*time.Second, cfg.Health.ReapInterval())
	require.Equal(t, 15*time.Second, cfg.Router.Timeout())
	require.Equal(t, 2, cfg.Router.MaxAttempts)

	require.NotNil(t, cfg.CORS)
	require.True(t, cfg.CORS.Enabled)
	require.Equal(t, []string{"https://ui.example.com"}, cfg.CORS.AllowOrigins)
	require.Equal(t, 5*time.Minute, cfg.CORS.MaxAge())

	require.Len(t, cfg.Servers, 1)
	entry := cfg.Servers[0]
	require.Equal(t, "acme", entry.Tenant)

	d := entry.Descriptor()
	require.Equal(t, domain.ServerDescriptor{
		Name:                    "files",
		DisplayName:             "File Tools",
		EndpointURL:             "http://localhost:9001/rpc",
		TransportType:           domain.TransportHTTP,
		Capabilities:            []string{"tools/read_file"},
		AuthConfig:              map[string]string{"Authorization": "Bearer token-123"},
		HealthCheckEnabled:      true,
		HealthCheckIntervalSecs: 30,
		DiscoverCapabilities:    true,
	}, d)
}

func TestDefaultLoader_LoadDefaultsListenAddr(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[router]
timeout_seconds = 10
`)

	cfg, err := NewDefaultLoader().Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	require.Nil(t, cfg.CORS)
}

func TestDefaultLoader_LoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "negative health tunable",
			content: `
[health]
window_size = -1
`,
			wantMsg: "health.window_size cannot be negative",
		},
		{
			name: "negative router tunable",
			content: `
[router]
max_attempts = -2
`,
			wantMsg: "router.max_attempts cannot be negative",
		},
		{
			name: "server without tenant",
			content: `
[[servers]]
name = "files"
endpoint_url = "http://localhost:9001/rpc"
transport = "http"
`,
			wantMsg: "tenant cannot be empty",
		},
		{
			name: "server without endpoint",
			content: `
[[servers]]
tenant = "acme"
name = "files"
transport = "http"
`,
			wantMsg: "endpoint_url cannot be empty",
		},
		{
			name: "unsupported transport",
			content: `
[[servers]]
tenant = "acme"
name = "files"
endpoint_url = "http://localhost:9001/rpc"
transport = "grpc"
`,
			wantMsg: "unsupported transport 'grpc'",
		},
		{
			name: "duplicate tenant and name",
			content: `
[[servers]]
tenant = "acme"
name = "files"
endpoint_url = "http://localhost:9001/rpc"
transport = "http"

[[servers]]
tenant = "acme"
name = "files"
endpoint_url = "http://localhost:9002/rpc"
transport = "http"
`,
			wantMsg: "duplicate server 'acme/files'",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tc.content)

			_, err := NewDefaultLoader().Load(path)
			require.ErrorIs(t, err, ErrConfigLoadFailed)
			require.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}
