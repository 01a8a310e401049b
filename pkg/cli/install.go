package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/moumouls/aero-4g-cam/pkg/config"
	"github.com/moumouls/aero-4g-cam/pkg/device"
	"github.com/moumouls/aero-4g-cam/pkg/driver/appium"
)

var installCommand = &cli.Command{
	Name:  "install",
	Usage: "Install the UBox split APKs on the device",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "serial",
			Usage:   "Device serial (default: first connected device)",
			EnvVars: []string{"ANDROID_SERIAL"},
		},
		&cli.BoolFlag{
			Name:    "local",
			Usage:   "Target the developer emulator (emulator-5554)",
			EnvVars: []string{"LOCAL_EMULATOR"},
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Directory holding the extracted split APKs",
			Value: config.DefaultSplitAPKDir,
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Reinstall even when the package is present",
		},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "How long to wait for the device to come online",
			Value: 30 * time.Second,
		},
	},
	Action: func(c *cli.Context) error {
		p := newPrinter(c.App.Writer, c.Bool("no-ansi"))
		log := relayLogger(c)
		defer func() { _ = log.Sync() }()

		serial := c.String("serial")
		if serial == "" && c.Bool("local") {
			serial = deviceName(true)
		}
		opts := device.InstallOptions{
			Package:     appium.DefaultAppPackage,
			Dir:         c.String("dir"),
			Force:       c.Bool("force"),
			WaitTimeout: c.Duration("wait"),
		}
		if err := installAPKs(c.Context, p, device.Config{Serial: serial}, opts, log); err != nil {
			return cli.Exit("", 1)
		}
		return nil
	},
}

func installAPKs(ctx context.Context, p *printer, cfg device.Config, opts device.InstallOptions, log *zap.Logger) error {
	p.section("Install")
	adb, err := device.New(ctx, cfg, log.Named("adb"))
	if err != nil {
		p.fail(err.Error())
		return err
	}

	res, err := adb.Install(ctx, opts)
	if err != nil {
		p.fail(fmt.Sprintf("Install on %s failed: %v", adb.Serial(), err))
		return err
	}
	if res.Skipped {
		p.success(fmt.Sprintf("%s already installed on %s (use --force to reinstall)", opts.Package, res.Serial))
		return nil
	}
	p.success(fmt.Sprintf("Installed %s on %s from %d APKs", opts.Package, res.Serial, len(res.APKs)))
	return nil
}
