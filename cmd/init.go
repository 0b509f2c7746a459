package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gatewaylabs/mcpgw/internal/cmd"
	"github.com/gatewaylabs/mcpgw/internal/config"
	"github.com/gatewaylabs/mcpgw/internal/flags"
)

type InitCmd struct {
	*cmd.BaseCmd
	cfgLoader config.Loader
}

func NewInitCmd(baseCmd *cmd.BaseCmd) (*cobra.Command, error) {
	c := &InitCmd{
		BaseCmd:   baseCmd,
		cfgLoader: config.NewDefaultLoader(),
	}

	cobraCommand := &cobra.Command{
		Use:   "init",
		Short: "Initializes the current directory as an `mcpgw` deployment",
		Long:  c.longDescription(),
		RunE:  c.run,
	}

	return cobraCommand, nil
}

func (c *InitCmd) longDescription() string {
	return fmt.Sprintf(
		"Initializes the current directory as an `mcpgw` deployment, creating a %s configuration file.\n\n"+
			"The configuration file path can be overridden using the `--%s` flag or the `%s` environment variable",
		flags.DefaultConfigFile,
		flags.FlagNameConfigFile,
		flags.EnvVarConfigFile,
	)
}

func (c *InitCmd) run(cobraCmd *cobra.Command, _ []string) error {
	logger := c.Logger()

	var initFilePath string

	// If the config file flag just has the default value, we're expecting to create it in the current working directory.
	if flags.ConfigFile == flags.DefaultConfigFile {
		if _, err := fmt.Fprintf(
			cobraCmd.OutOrStdout(),
			"Using default config file: '%s' in the current directory\n", flags.DefaultConfigFile,
		); err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			logger.Error("Failed to get working directory", "error", err)
			return fmt.Errorf("error getting current directory: %w", err)
		}
		initFilePath = filepath.Join(cwd, flags.DefaultConfigFile)
	} else {
		initFilePath = flags.ConfigFile
	}

	if err := c.cfgLoader.Init(initFilePath); err != nil {
		logger.Error("Gateway initialization failed", "error", err)
		return fmt.Errorf("error initializing mcpgw deployment: %w", err)
	}

	if _, err := fmt.Fprintf(
		cobraCmd.OutOrStdout(),
		"Config file created: %s\n", initFilePath,
	); err != nil {
		return err
	}

	return nil
}
