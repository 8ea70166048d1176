// Package cli provides the command-line interface for screenkit.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/screenkit/pkg/config"
	"github.com/devicelab-dev/screenkit/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config-dir",
		Aliases: []string{"C"},
		Usage:   "Directory holding screenkit.yaml and .env",
		Value:   ".",
		EnvVars: []string{"SCREENKIT_CONFIG_DIR"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write debug logs to this file (overrides log.file)",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the screenkit application writing to stdout and stderr.
func NewApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:    "screenkit",
		Usage:   "Inspect and maintain screenkit Allure results",
		Version: Version,
		Description: `screenkit records UI test runs as Allure result files. This tool reads
those files back, checks them and writes the run metadata Allure uses.

Examples:
  screenkit results allure-results
  screenkit validate allure-results
  screenkit categories allure-results
  screenkit --config-dir e2e config`,
		Flags:     GlobalFlags,
		Writer:    stdout,
		ErrWriter: stderr,
		// Execute owns the exit code.
		ExitErrHandler: func(*cli.Context, error) {},
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") || os.Getenv("NO_COLOR") != "" {
				color.NoColor = true
			}
			return nil
		},
		After: func(c *cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			resultsCommand,
			validateCommand,
			configCommand,
			categoriesCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration for the --config-dir flag and opens
// the log file.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Resolve(c.String("config-dir"))
	if err != nil {
		return nil, err
	}
	if f := c.String("log-file"); f != "" {
		cfg.Log.File = f
	}
	if err := cfg.InitLogging(); err != nil {
		return nil, err
	}
	logger.Debug("screenkit %s: config dir %s, results dir %s", Version, c.String("config-dir"), cfg.Results.Dir)
	return cfg, nil
}

// resultsDir returns the directory argument, or the configured one.
func resultsDir(c *cli.Context, cfg *config.Config) string {
	if c.Args().Present() {
		return c.Args().First()
	}
	return cfg.Results.Dir
}
