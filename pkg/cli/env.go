package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/moumouls/aero-4g-cam/pkg/config"
	"github.com/moumouls/aero-4g-cam/pkg/publish"
)

var validateEnvCommand = &cli.Command{
	Name:  "validate-env",
	Usage: "Check the environment variables needed by record",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "storage",
			Usage: "Validate for this backend: local or r2 (default: r2, local when USE_FS=true)",
		},
		&cli.BoolFlag{
			Name:  "skip-apk-check",
			Usage: "Do not require split APKs in ./split-apks",
		},
	},
	Action: func(c *cli.Context) error {
		p := newPrinter(c.App.Writer, c.Bool("no-ansi"))
		if err := validateEnv(p, os.LookupEnv, c.String("storage"), c.Bool("skip-apk-check"), c.Bool("verbose")); err != nil {
			return cli.Exit("", 1)
		}
		return nil
	},
}

func validateEnv(p *printer, lookup func(string) (string, bool), storageFlag string, skipAPK, verbose bool) error {
	p.section("Environment")
	env := config.FromEnv(lookup)
	storage, err := resolveStorage(storageFlag, env, config.Default())
	if err != nil {
		p.fail(err.Error())
		return err
	}

	err = env.Validate(config.CheckOptions{
		LocalStorage: storage == publish.BackendLocal,
		SplitAPKDir:  config.DefaultSplitAPKDir,
		SkipAPKCheck: skipAPK,
	})
	if err != nil {
		p.fail("Environment validation failed")
		printValidationError(p, err)
		return err
	}

	p.success(fmt.Sprintf("Environment variables validated (storage: %s)", storage))
	if verbose {
		printFields(p, env)
	}
	return nil
}

// printFields prints the masked configuration.
func printFields(p *printer, env *config.Env) {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range env.Fields() {
		f.AddTo(enc)
	}
	for _, f := range env.Fields() {
		p.printf("    %-18s %v\n", f.Key+":", enc.Fields[f.Key])
	}
}
