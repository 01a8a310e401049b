// Package cli provides the command-line interface for the terrain camera recorder.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/moumouls/aero-4g-cam/pkg/config"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "env-file",
		Usage: "Dotenv file loaded before reading the environment (real variables win)",
		Value: ".env",
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Print progress logs to the console",
		EnvVars: []string{"VERBOSE"},
	},
	&cli.BoolFlag{
		Name:    "debug",
		Usage:   "Print debug logs to the console",
		EnvVars: []string{"DEBUG"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "aero-4g-cam",
		Usage:   "Record the terrain camera stream from the UBox Android app",
		Version: Version,
		Description: `Drives the UBox app on an Android emulator through Appium, records
the live camera stream and publishes it to Cloudflare R2 or the local disk.

Examples:
  aero-4g-cam record
  aero-4g-cam record --local --storage local
  aero-4g-cam record --flow flows/terrain.yaml --retries 2
  aero-4g-cam validate flows/terrain.yaml
  aero-4g-cam validate-env
  aero-4g-cam install --local
  aero-4g-cam relay --addr :8080
  aero-4g-cam trigger`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if err := config.LoadDotEnv(c.String("env-file")); err != nil {
				return fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
			}
			return nil
		},
		Commands: []*cli.Command{
			recordCommand,
			validateCommand,
			validateEnvCommand,
			installCommand,
			relayCommand,
			triggerCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
