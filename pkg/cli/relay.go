package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/moumouls/aero-4g-cam/pkg/config"
	"github.com/moumouls/aero-4g-cam/pkg/logger"
	"github.com/moumouls/aero-4g-cam/pkg/relay"
)

var relayCommand = &cli.Command{
	Name:  "relay",
	Usage: "Serve the workflow trigger endpoint and the hourly schedule",
	Description: `POST / or /trigger dispatches the generate-video workflow on GitHub.
When API_SECRET is set, requests must send "Authorization: Bearer <secret>".
The scheduler ticks hourly and dispatches on Europe/Paris recording slots.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "Listen address",
			Value:   ":8080",
			EnvVars: []string{"RELAY_ADDR"},
		},
		&cli.BoolFlag{
			Name:  "no-schedule",
			Usage: "Only serve HTTP triggers",
		},
		&cli.DurationFlag{
			Name:  "cooldown",
			Usage: "Ignore triggers for this long after a successful dispatch",
			Value: relay.DefaultCooldown,
		},
		&cli.StringFlag{
			Name:    "github-api",
			Usage:   "GitHub API endpoint",
			Value:   relay.DefaultAPIEndpoint,
			EnvVars: []string{"GITHUB_API_URL"},
		},
	},
	Action: runRelay,
}

var triggerCommand = &cli.Command{
	Name:  "trigger",
	Usage: "Dispatch the generate-video workflow once",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "github-api",
			Usage:   "GitHub API endpoint",
			Value:   relay.DefaultAPIEndpoint,
			EnvVars: []string{"GITHUB_API_URL"},
		},
	},
	Action: runTrigger,
}

// relayLogger logs to the console only; the relay is long-lived and has no run file.
func relayLogger(c *cli.Context) *zap.Logger {
	opts := logger.Options{Verbose: true, Debug: c.Bool("debug")}
	return logger.New(io.Discard, c.App.ErrWriter, logger.ConsoleLevel(opts))
}

func runRelay(c *cli.Context) error {
	log := relayLogger(c)
	defer func() { _ = log.Sync() }()

	env := config.FromEnv(os.LookupEnv)
	if err := env.ValidateRelay(); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	gh := relay.NewGitHub(relay.GitHubConfig{Token: env.GitHubToken, Endpoint: c.String("github-api")}, log.Named("github"))
	trigger := relay.NewTrigger(gh, c.Duration("cooldown"), log.Named("trigger"))

	var scheduler *relay.Scheduler
	if !c.Bool("no-schedule") {
		var err error
		scheduler, err = relay.NewScheduler(trigger, log)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
	}
	if env.APISecret == "" {
		log.Warn("API_SECRET is not set, the trigger endpoint is open")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := relay.NewServer(trigger, env.APISecret, scheduler, log.Named("http"))
	if err := srv.Run(ctx, c.String("addr")); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	return nil
}

func runTrigger(c *cli.Context) error {
	p := newPrinter(c.App.Writer, c.Bool("no-ansi"))
	log := relayLogger(c)
	defer func() { _ = log.Sync() }()

	env := config.FromEnv(os.LookupEnv)
	if err := env.ValidateRelay(); err != nil {
		p.fail(err.Error())
		return cli.Exit("", 1)
	}

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	gh := relay.NewGitHub(relay.GitHubConfig{Token: env.GitHubToken, Endpoint: c.String("github-api")}, log)
	res, err := relay.NewTrigger(gh, 0, log).Fire(ctx, "cli")
	if err != nil {
		p.fail(fmt.Sprintf("Failed to trigger workflow: %v", err))
		return cli.Exit("", 1)
	}
	p.success(fmt.Sprintf("%s (%s on %s/%s at %s)", res.Message, res.Workflow, res.Repository, res.Branch, res.Timestamp))
	return nil
}
