package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewaylabs/mcpgw/internal/api"
	"github.com/gatewaylabs/mcpgw/internal/cmd"
	"github.com/gatewaylabs/mcpgw/internal/cmd/output"
	"github.com/gatewaylabs/mcpgw/internal/config"
)

// StatusCmd should be used to represent the 'status' command.
// It queries a running gateway daemon for the health of registered servers.
type StatusCmd struct {
	*cmd.BaseCmd
	Addr   string
	Tenant string
	Format string
}

// NewStatusCmd creates a newly configured (Cobra) command.
func NewStatusCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &StatusCmd{
		BaseCmd: baseCmd,
	}

	cobraCommand := &cobra.Command{
		Use:   "status --tenant <tenant> [--addr] [--format]",
		Short: "Shows the health of servers registered with a running gateway daemon",
		RunE:  c.run,
	}

	cobraCommand.Flags().StringVar(
		&c.Addr,
		"addr",
		config.DefaultListenAddr,
		"Address of the running gateway daemon",
	)

	cobraCommand.Flags().StringVar(
		&c.Tenant,
		"tenant",
		"",
		"Tenant whose servers should be shown",
	)

	cobraCommand.Flags().StringVar(
		&c.Format,
		"format",
		"text",
		"Output format, one of: text, json, yaml",
	)

	if err := cobraCommand.MarkFlagRequired("tenant"); err != nil {
		return nil, err
	}

	return cobraCommand, nil
}

// run is configured (via NewStatusCmd) to be called by the Cobra framework when the command is executed.
func (c *StatusCmd) run(cobraCmd *cobra.Command, _ []string) error {
	handler, err := c.handler(cobraCmd.OutOrStdout())
	if err != nil {
		return err
	}

	servers, err := c.fetchServers()
	if err != nil {
		return handler.HandleError(err)
	}

	return handler.HandleResults(servers...)
}

// fetchServers queries the daemon's health listing endpoint.
func (c *StatusCmd) fetchServers() ([]api.ServerHealth, error) {
	endpoint := url.URL{
		Scheme: "http",
		Host:   c.Addr,
		Path:   "/api/" + api.APIVersion + "/health/servers",
	}

	req, err := http.NewRequest(http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.TenantHeader, c.Tenant)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach gateway daemon at %s: %w", c.Addr, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gateway daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Servers []api.ServerHealth `json:"servers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return payload.Servers, nil
}

// handler selects the output handler for the configured format.
func (c *StatusCmd) handler(w io.Writer) (output.Handler[api.ServerHealth], error) {
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "", "text":
		return output.NewTextHandler[api.ServerHealth](w, statusPrinter()), nil
	case "json":
		return output.NewJSONHandler[api.ServerHealth](w, 2), nil
	case "yaml":
		return output.NewYAMLHandler[api.ServerHealth](w, 2), nil
	default:
		return nil, fmt.Errorf("unsupported format '%s', expected one of: text, json, yaml", c.Format)
	}
}

func statusPrinter() output.Printer[api.ServerHealth] {
	return output.FuncPrinter[api.ServerHealth]{
		HeaderFn: func(w io.Writer, count int) {
			_, _ = fmt.Fprintf(w, "Servers (%d):\n", count)
		},
		ItemFn: func(w io.Writer, s api.ServerHealth) error {
			latency := "-"
			if s.Latency != nil {
				latency = *s.Latency
			}
			_, _ = fmt.Fprintf(
				w,
				"  %s\t%s\tsuccess=%.0f%%\tfailures=%d\tlatency=%s\n",
				s.Name, s.Status, s.SuccessRate*100, s.ConsecutiveFailures, latency,
			)
			return nil
		},
	}
}
