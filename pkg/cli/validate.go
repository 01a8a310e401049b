package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/moumouls/aero-4g-cam/pkg/scenario"
	"github.com/moumouls/aero-4g-cam/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check flow files, or the built-in scenario, without a device",
	ArgsUsage: "[flow.yaml...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config.yaml used for the built-in scenario policy",
		},
	},
	Action: func(c *cli.Context) error {
		p := newPrinter(c.App.Writer, c.Bool("no-ansi"))
		if err := validateFlows(p, c.String("config"), c.Args().Slice()); err != nil {
			return cli.Exit("", 1)
		}
		return nil
	},
}

// validateFlows validates each path, or the scenario built from config.yaml when none are given.
func validateFlows(p *printer, configPath string, paths []string) error {
	p.section("Validation")
	if len(paths) == 0 {
		ws, err := loadWorkspaceConfig(configPath)
		if err != nil {
			p.fail(err.Error())
			return err
		}
		f, err := scenario.Build(ws.Policy, scenario.Options{
			Email:     "validate@example.com",
			Password:  "validate",
			Dwell:     scenario.DefaultDwell,
			Recording: ws.Recording,
		})
		if err != nil {
			p.fail(err.Error())
			return err
		}
		if err := validator.Validate(f).Err(); err != nil {
			p.fail("Built-in scenario is invalid")
			printValidationError(p, err)
			return err
		}
		p.success(fmt.Sprintf("Built-in scenario: %d steps", len(f.Steps)))
		return nil
	}

	var failed error
	for _, path := range paths {
		f, result := validator.ValidateFile(path)
		if err := result.Err(); err != nil {
			p.fail(path)
			printValidationError(p, err)
			failed = err
			continue
		}
		p.success(fmt.Sprintf("%s: %d steps", path, len(f.Steps)))
	}
	return failed
}
