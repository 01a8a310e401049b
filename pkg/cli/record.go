package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/moumouls/aero-4g-cam/pkg/config"
	"github.com/moumouls/aero-4g-cam/pkg/core"
	"github.com/moumouls/aero-4g-cam/pkg/driver/appium"
	"github.com/moumouls/aero-4g-cam/pkg/executor"
	"github.com/moumouls/aero-4g-cam/pkg/flow"
	"github.com/moumouls/aero-4g-cam/pkg/logger"
	"github.com/moumouls/aero-4g-cam/pkg/publish"
	"github.com/moumouls/aero-4g-cam/pkg/report"
	"github.com/moumouls/aero-4g-cam/pkg/scenario"
)

const defaultScreenshotDir = "screenshots"

var recordCommand = &cli.Command{
	Name:  "record",
	Usage: "Record the camera stream and publish it",
	Description: `Logs into the UBox app, opens the terrain camera in fullscreen,
records the stream for RECORDING_DURATION and publishes the video.

Without --flow the built-in scenario is used, tuned by the policy section of
config.yaml. A run log is always written to .logs/run-<id>.log.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config.yaml (default: ./config.yaml when present)",
		},
		&cli.StringFlag{
			Name:  "flow",
			Usage: "YAML flow file replacing the built-in scenario",
		},
		&cli.BoolFlag{
			Name:    "local",
			Usage:   "Target the developer emulator (emulator-5554)",
			EnvVars: []string{"LOCAL_EMULATOR"},
		},
		&cli.StringFlag{
			Name:    "appium-url",
			Usage:   "Appium server URL",
			Value:   appium.DefaultServerURL,
			EnvVars: []string{"APPIUM_URL"},
		},
		&cli.StringFlag{
			Name:  "storage",
			Usage: "Where to publish the video: local or r2 (default: r2, local when USE_FS=true)",
		},
		&cli.StringFlag{
			Name:  "recordings-dir",
			Usage: "Output directory of the local storage backend",
			Value: publish.DefaultLocalDir,
		},
		&cli.StringFlag{
			Name:  "screenshots-dir",
			Usage: "Where failure screenshots are written",
			Value: defaultScreenshotDir,
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Re-run the whole flow on a fresh session this many times after a failure",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Abort the run after this long (0 = no limit)",
		},
		&cli.BoolFlag{
			Name:  "skip-apk-check",
			Usage: "Do not require split APKs in ./split-apks",
		},
	},
	Action: runRecord,
}

// RecordConfig holds all configuration for a record run.
type RecordConfig struct {
	ConfigPath     string
	FlowPath       string
	Local          bool
	AppiumURL      string
	Storage        string
	RecordingsDir  string
	ScreenshotsDir string
	LogDir         string
	Retries        int
	Timeout        time.Duration
	SkipAPKCheck   bool
	Verbose        bool
	Debug          bool
	NoANSI         bool

	Out io.Writer

	// Overrides used by tests.
	lookupEnv func(string) (string, bool)
	factory   core.SessionFactory
	publisher executor.Publisher
	runner    executor.RunnerConfig
}

func runRecord(c *cli.Context) error {
	cfg := &RecordConfig{
		ConfigPath:     c.String("config"),
		FlowPath:       c.String("flow"),
		Local:          c.Bool("local"),
		AppiumURL:      c.String("appium-url"),
		Storage:        c.String("storage"),
		RecordingsDir:  c.String("recordings-dir"),
		ScreenshotsDir: c.String("screenshots-dir"),
		Retries:        c.Int("retries"),
		Timeout:        c.Duration("timeout"),
		SkipAPKCheck:   c.Bool("skip-apk-check"),
		Verbose:        c.Bool("verbose"),
		Debug:          c.Bool("debug"),
		NoANSI:         c.Bool("no-ansi"),
		Out:            c.App.Writer,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := executeRecord(ctx, cfg); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

func newRunID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// resolveStorage picks the backend: flag, then USE_FS, then config.yaml.
func resolveStorage(flagValue string, env *config.Env, ws *config.Config) (string, error) {
	storage := strings.ToLower(strings.TrimSpace(flagValue))
	if storage == "" && env.UseFS {
		storage = publish.BackendLocal
	}
	if storage == "" {
		storage = strings.ToLower(ws.Storage)
	}
	if storage == "" {
		storage = publish.BackendR2
	}
	if storage != publish.BackendLocal && storage != publish.BackendR2 {
		return "", core.ErrConfiguration.WithMessagef("unknown storage backend %q (want local or r2)", storage)
	}
	return storage, nil
}

func loadWorkspaceConfig(path string) (*config.Config, error) {
	var (
		ws  *config.Config
		err error
	)
	if path == "" {
		path = "."
		ws, err = config.LoadFromDir(path)
	} else {
		ws, err = config.Load(path)
	}
	if err != nil {
		return nil, core.ErrConfiguration.WithMessagef("failed to load config %s", path).WithCause(err)
	}
	return ws, nil
}

// applyWorkspace fills settings the command line left at their defaults from config.yaml.
func applyWorkspace(cfg *RecordConfig, ws *config.Config) {
	if ws.AppiumURL != "" && (cfg.AppiumURL == "" || cfg.AppiumURL == appium.DefaultServerURL) {
		cfg.AppiumURL = ws.AppiumURL
	}
	if cfg.Retries == 0 && ws.Retries > 0 {
		cfg.Retries = ws.Retries
	}
}

// buildFlow returns the flow file when one is configured, the built-in scenario otherwise.
func buildFlow(cfg *RecordConfig, ws *config.Config, env *config.Env) (*flow.Flow, error) {
	flowPath := cfg.FlowPath
	if flowPath == "" {
		flowPath = ws.Flow
	}
	if flowPath == "" {
		return scenario.Build(ws.Policy, scenario.Options{
			Email:     env.Email,
			Password:  env.Password,
			Dwell:     env.RecordingDuration,
			Recording: ws.Recording,
		})
	}

	f, err := flow.ParseFile(flowPath)
	if err != nil {
		return nil, core.ErrConfiguration.WithMessagef("invalid flow file %s", flowPath).WithCause(err)
	}
	lookup := cfg.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	flow.ExpandEnv(f, func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := ws.Env[key]
		return v, ok
	})
	return f, nil
}

func buildPublisher(cfg *RecordConfig, storage string, env *config.Env, log *zap.Logger) executor.Publisher {
	if cfg.publisher != nil {
		return cfg.publisher
	}
	if storage == publish.BackendLocal {
		return publish.NewLocal(cfg.RecordingsDir, log)
	}
	store := publish.NewS3Store(publish.S3Config{
		Endpoint:        env.R2.Endpoint,
		Bucket:          env.R2.Bucket,
		AccessKeyID:     env.R2.AccessKeyID,
		SecretAccessKey: env.R2.SecretAccessKey,
	})
	return publish.NewObjectStore(store, log)
}

func buildFactory(cfg *RecordConfig, env *config.Env, log *zap.Logger) core.SessionFactory {
	if cfg.factory != nil {
		return cfg.factory
	}
	sessionCfg := appium.DefaultConfig()
	sessionCfg.ServerURL = cfg.AppiumURL
	sessionCfg.Capabilities = appium.Capabilities(appium.CapabilityOptions{Local: cfg.Local})
	sessionCfg.Orientation = env.Orientation
	return appium.NewFactory(sessionCfg, log.Named("appium"))
}

func executeRecord(ctx context.Context, cfg *RecordConfig) (err error) {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	p := newPrinter(out, cfg.NoANSI)

	runID := newRunID()
	started := time.Now()

	// 1. Initialize logging
	log, logErr := logger.Init(logger.Options{
		Dir:     cfg.LogDir,
		RunID:   runID,
		Verbose: cfg.Verbose,
		Debug:   cfg.Debug,
	})
	if logErr != nil {
		p.printf("Warning: Failed to initialize logger: %v\n", logErr)
		log = zap.NewNop()
	}
	logPath := logger.Path()
	defer func() {
		log.Info("Run finished", zap.Bool("success", err == nil), zap.Duration("total", time.Since(started)))
		logger.Close()
		p.logAvailable(logPath)
	}()

	p.banner(runID, started)
	log.Info("Run started", zap.String("version", Version))

	// 2. Validate configuration before any side effect
	p.section("Configuration")
	lookup := cfg.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := config.FromEnv(lookup)
	ws, err := loadWorkspaceConfig(cfg.ConfigPath)
	if err != nil {
		p.fail(err.Error())
		return err
	}
	applyWorkspace(cfg, ws)
	storage, err := resolveStorage(cfg.Storage, env, ws)
	if err != nil {
		p.fail(err.Error())
		return err
	}
	if err := env.Validate(config.CheckOptions{
		LocalStorage: storage == publish.BackendLocal,
		SplitAPKDir:  config.DefaultSplitAPKDir,
		SkipAPKCheck: cfg.SkipAPKCheck,
	}); err != nil {
		p.fail("Environment validation failed")
		printValidationError(p, err)
		return err
	}
	log.Info("Configuration", env.Fields()...)
	p.success(fmt.Sprintf("Environment valid (storage: %s)", storage))

	f, err := buildFlow(cfg, ws, env)
	if err != nil {
		p.fail(err.Error())
		return err
	}
	p.success(fmt.Sprintf("Flow %s: %d steps", f.Config.Name, len(f.Steps)))

	// 3. Run the flow
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	runnerCfg := cfg.runner
	runnerCfg.Logger = log.Named("executor")
	if runnerCfg.ScreenshotDir == "" {
		runnerCfg.ScreenshotDir = cfg.ScreenshotsDir
	}
	runnerCfg.OnStepComplete = p.onStepComplete
	runnerCfg.OnPhase = p.onPhase

	runner := executor.New(buildFactory(cfg, env, log), buildPublisher(cfg, storage, env, log.Named("publish")), runnerCfg)

	p.section("Recording")
	result, err := runner.RunAttempts(ctx, f, cfg.Retries)
	if result == nil {
		if err == nil {
			err = errors.New("runner returned no result")
		}
		p.fail(err.Error())
		return err
	}

	// 4. Report
	rep := report.Build(result, report.BuilderConfig{
		Device:  report.Device{Name: deviceName(cfg.Local), Platform: "android", Server: cfg.AppiumURL},
		App:     report.App{ID: f.Config.AppID},
		LogFile: logPath,
	})
	reportDir := cfg.LogDir
	if reportDir == "" {
		reportDir = logger.DefaultDir
	}
	reportPath, werr := report.Write(reportDir, rep)
	if werr != nil {
		log.Warn("Failed to write report", zap.Error(werr))
		reportPath = ""
	}

	p.section("Summary")
	p.printReport(rep, reportPath)
	p.finish(rep)
	return err
}

func deviceName(local bool) string {
	caps := appium.Capabilities(appium.CapabilityOptions{Local: local})
	name, _ := caps["appium:deviceName"].(string)
	return name
}

// printValidationError lists aggregated configuration problems one per line.
func printValidationError(p *printer, err error) {
	var list core.Errors
	if ee, ok := core.AsExecutionError(err); ok && ee.Cause != nil {
		if errs, ok := ee.Cause.(core.Errors); ok {
			list = errs
		}
	}
	if len(list) == 0 {
		p.printf("    %s\n", err)
		return
	}
	for _, e := range list {
		p.printf("    - %s\n", e)
	}
}

