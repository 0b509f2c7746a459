package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gatewaylabs/mcpgw/internal/domain"
)

const regularFilePerms = 0o644

// DefaultListenAddr is the address the gateway API binds when the config file
// does not specify one.
const DefaultListenAddr = "0.0.0.0:8090"

// Loader loads gateway configuration from a file path.
type Loader interface {
	Init(path string) error
	Load(path string) (*Config, error)
}

// DefaultLoader is the TOML-backed Loader used by the CLI.
type DefaultLoader struct{}

// NewDefaultLoader returns a DefaultLoader.
func NewDefaultLoader() *DefaultLoader {
	return &DefaultLoader{}
}

// Config is the gateway configuration file (.mcpgw.toml).
type Config struct {
	ListenAddr string        `toml:"listen_addr,omitempty"`
	Health     HealthConfig  `toml:"health,omitempty"`
	Router     RouterConfig  `toml:"router,omitempty"`
	CORS       *CORSConfig   `toml:"cors,omitempty"`
	Servers    []ServerEntry `toml:"servers,omitempty"`
}

// HealthConfig tunes the health monitor.
// Zero values fall back to the monitor's defaults.
type HealthConfig struct {
	ProbeTimeoutSeconds  int `toml:"probe_timeout_seconds,omitempty"`
	WindowSize           int `toml:"window_size,omitempty"`
	UnreachableThreshold int `toml:"unreachable_threshold,omitempty"`
	ReapIntervalSeconds  int `toml:"reap_interval_seconds,omitempty"`
}

// RouterConfig tunes the request router.
// Zero values fall back to the router's defaults.
type RouterConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds,omitempty"`
	MaxAttempts    int `toml:"max_attempts,omitempty"`
}

// CORSConfig enables CORS on the API server.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	AllowOrigins     []string `toml:"allow_origins,omitempty"`
	AllowMethods     []string `toml:"allow_methods,omitempty"`
	AllowHeaders     []string `toml:"allow_headers,omitempty"`
	ExposeHeaders    []string `toml:"expose_headers,omitempty"`
	AllowCredentials bool     `toml:"allow_credentials,omitempty"`
	MaxAgeSeconds    int      `toml:"max_age_seconds,omitempty"`
}

// ServerEntry is a backend server seeded into the registry at startup.
type ServerEntry struct {
	Tenant                     string            `toml:"tenant"`
	Name                       string            `toml:"name"`
	DisplayName                string            `toml:"display_name,omitempty"`
	EndpointURL                string            `toml:"endpoint_url"`
	Transport                  string            `toml:"transport"`
	Capabilities               []string          `toml:"capabilities,omitempty"`
	AuthConfig                 map[string]string `toml:"auth_config,omitempty"`
	HealthCheckEnabled         bool              `toml:"health_check_enabled,omitempty"`
	HealthCheckIntervalSeconds int               `toml:"health_check_interval_seconds,omitempty"`
	DiscoverCapabilities       bool              `toml:"discover_capabilities,omitempty"`
}

// Descriptor converts the entry into the registration input used by the
// registry.
func (s ServerEntry) Descriptor() domain.ServerDescriptor {
	return domain.ServerDescriptor{
		Name:                    s.Name,
		DisplayName:             s.DisplayName,
		EndpointURL:             s.EndpointURL,
		TransportType:           domain.TransportKind(s.Transport),
		Capabilities:            slices.Clone(s.Capabilities),
		AuthConfig:              s.AuthConfig,
		HealthCheckEnabled:      s.HealthCheckEnabled,
		HealthCheckIntervalSecs: s.HealthCheckIntervalSeconds,
		DiscoverCapabilities:    s.DiscoverCapabilities,
	}
}

// ProbeTimeout returns the configured probe timeout, or zero when unset.
func (h HealthConfig) ProbeTimeout() time.Duration {
	return time.Duration(h.ProbeTimeoutSeconds) * time.Second
}

// ReapInterval returns the configured reap interval, or zero when unset.
func (h HealthConfig) ReapInterval() time.Duration {
	return time.Duration(h.ReapIntervalSeconds) * time.Second
}

// Timeout returns the configured router timeout, or zero when unset.
func (r RouterConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// MaxAge returns the configured preflight cache duration, or zero when unset.
func (c CORSConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// Init creates the base skeleton configuration file for the gateway.
func (d *DefaultLoader) Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	content := fmt.Sprintf("listen_addr = %q\n", DefaultListenAddr)

	if err := os.WriteFile(path, []byte(content), regularFilePerms); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// Load reads and validates the config file at path.
func (d *DefaultLoader) Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrConfigLoadFailed)
	}

	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file cannot be found, run: 'mcpgw init'", ErrConfigLoadFailed)
		}
		return nil, fmt.Errorf("%w: failed to stat config file (%s): %w", ErrConfigLoadFailed, path, err)
	}

	var cfg *Config
	_, err = toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", ErrConfigLoadFailed, path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: config file is empty (%s)", ErrConfigLoadFailed, path)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: failed to validate config (%s): %w", ErrConfigLoadFailed, path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	for section, v := range map[string]int{
		"health.probe_timeout_seconds": c.Health.ProbeTimeoutSeconds,
		"health.window_size":           c.Health.WindowSize,
		"health.unreachable_threshold": c.Health.UnreachableThreshold,
		"health.reap_interval_seconds": c.Health.ReapIntervalSeconds,
		"router.timeout_seconds":       c.Router.TimeoutSeconds,
		"router.max_attempts":          c.Router.MaxAttempts,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative", section)
		}
	}

	seen := make(map[string]struct{}, len(c.Servers))
	for i, s := range c.Servers {
		if strings.TrimSpace(s.Tenant) == "" {
			return fmt.Errorf("servers[%d]: tenant cannot be empty", i)
		}
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("servers[%d]: name cannot be empty", i)
		}
		if strings.TrimSpace(s.EndpointURL) == "" {
			return fmt.Errorf("servers[%d]: endpoint_url cannot be empty", i)
		}
		if !domain.TransportKind(s.Transport).Valid() {
			return fmt.Errorf("servers[%d]: unsupported transport '%s'", i, s.Transport)
		}
		key := s.Tenant + "/" + s.Name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("servers[%d]: duplicate server '%s'", i, key)
		}
		seen[key] = struct{}{}
	}

	return nil
}
