package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/gatewaylabs/mcpgw/internal/cmd"
	"github.com/gatewaylabs/mcpgw/internal/flags"
)

type RootCmd struct {
	*cmd.BaseCmd
}

// Execute runs the root command, returning any error to the caller for exit
// code handling.
func Execute() error {
	logger, err := configureLogger()
	if err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}

	rootCmd, err := NewRootCmd(logger)
	if err != nil {
		return err
	}

	return rootCmd.Execute()
}

// NewRootCmd creates the root command and attaches all subcommands.
func NewRootCmd(logger hclog.Logger) (*cobra.Command, error) {
	baseCmd := &cmd.BaseCmd{}
	baseCmd.SetLogger(logger)

	c := &RootCmd{
		BaseCmd: baseCmd,
	}

	rootCmd := &cobra.Command{
		Use:          "mcpgw <command> [args]",
		Short:        "'mcpgw' is a gateway proxy that routes JSON-RPC requests across MCP servers.",
		Long:         c.longDescription(),
		SilenceUsage: true,
		Version:      cmd.Version(),
	}

	// Global flags
	flags.InitFlags(rootCmd.PersistentFlags())

	initCmd, err := NewInitCmd(baseCmd)
	if err != nil {
		return nil, err
	}
	daemonCmd, err := NewDaemonCmd(baseCmd)
	if err != nil {
		return nil, err
	}
	statusCmd, err := NewStatusCmd(baseCmd)
	if err != nil {
		return nil, err
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)

	return rootCmd, nil
}

func (c *RootCmd) longDescription() string {
	return `The 'mcpgw' CLI runs and inspects the MCP gateway proxy: a daemon that
registers backend MCP servers, monitors their health, and routes JSON-RPC
requests to the best available backend.`
}

func configureLogger() (hclog.Logger, error) {
	logPath := strings.TrimSpace(os.Getenv(flags.EnvVarLogPath))

	// If MCPGW_LOG_PATH is not set, don't log anywhere.
	var logOutput io.Writer = io.Discard

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		logOutput = f
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mcpgw",
		Level:  hclog.LevelFromString(getLogLevel()),
		Output: logOutput,
	})

	return logger, nil
}

func getLogLevel() string {
	lvl := strings.ToLower(os.Getenv(flags.EnvVarLogLevel))
	switch lvl {
	case "trace", "debug", "info", "warn", "error", "off":
		return lvl
	default:
		return "info"
	}
}
