package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a callscope configuration file for syntax errors and invalid values.

Examples:
  callscope config validate                      # Validates default config locations
  callscope -c callscope.toml config validate    # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file as TOML.

Examples:
  callscope config show
  callscope -c callscope.toml config show`,
				Action: runConfigShow,
			},
		},
	}
}

// configSource is the file the global flag or the standard locations point at.
func configSource(c *cli.Context) string {
	if path := c.String("config"); path != "" {
		return path
	}
	if path, ok := config.Find(); ok {
		return path
	}
	return ""
}

// runConfigValidate reports the config loaded by the app's Before hook, which
// already failed the run if the file was invalid.
func runConfigValidate(c *cli.Context) error {
	if err := appConfig(c).Validate(); err != nil {
		return err
	}
	if source := configSource(c); source != "" {
		color.New(color.FgGreen).Fprintf(c.App.Writer, "Configuration valid: %s\n", source)
	} else {
		color.New(color.FgYellow).Fprintln(c.App.Writer, "No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	if source := configSource(c); source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(*appConfig(c))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = c.App.Writer.Write(content)
	return err
}
