package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/caseflow/caseflow/config"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/upload"
)

const AppName = "caseflow"

type App struct {
	logger zerolog.Logger
	cli    *cli.App

	fs          afero.Fs
	stdin       io.Reader
	stdout      io.Writer
	newUploader func(logger zerolog.Logger, endpoint string) upload.Uploader
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		fs:     afero.NewOsFs(),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		newUploader: func(logger zerolog.Logger, endpoint string) upload.Uploader {
			return upload.New(logger, endpoint)
		},
		cli: &cli.App{
			Name:  AppName,
			Usage: "Record test results in parallel workers and upload them once",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "YAML file with the options, flags take precedence",
					EnvVars: []string{config.EnvVar("CONFIG")},
				},
				&cli.StringFlag{
					Name:    "target",
					Usage:   "Target token of the results project, nothing is recorded without it",
					EnvVars: []string{config.EnvVar("TARGET")},
				},
				&cli.StringFlag{
					Name:    "files",
					Usage:   "Root directory of case attachments, laid out as <suite>/<name>/",
					EnvVars: []string{config.EnvVar("FILES")},
				},
				&cli.StringFlag{
					Name:    "temp-dir",
					Usage:   "Directory shared by the workers and the aggregator",
					EnvVars: []string{config.EnvVar("TEMP_DIR")},
				},
				&cli.StringFlag{
					Name:    "endpoint",
					Usage:   "Results upload endpoint",
					EnvVars: []string{config.EnvVar("ENDPOINT")},
				},
				&cli.StringFlag{
					Name:    "build-name",
					Usage:   "Name of the build case, no build case is uploaded without it",
					EnvVars: []string{config.EnvVar("BUILD_NAME")},
				},
				&cli.StringFlag{
					Name:    "build-result",
					Usage:   "Result of the build case (pass, fail or anything else for unknown)",
					EnvVars: []string{config.EnvVar("BUILD_RESULT")},
				},
				&cli.StringFlag{
					Name:    "build-desc",
					Usage:   "Description of the build case",
					EnvVars: []string{config.EnvVar("BUILD_DESC")},
				},
				&cli.StringFlag{
					Name:    "build-reason",
					Usage:   "Failure reason of the build case",
					EnvVars: []string{config.EnvVar("BUILD_REASON")},
				},
				&cli.BoolFlag{
					Name:    "build-git",
					Usage:   "Add the git commit and branch to the build case",
					EnvVars: []string{config.EnvVar("BUILD_GIT")},
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "prepare",
		Usage:  "Empty the shared temp directory before the workers start",
		Action: app.prepare,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "record",
		Usage:  "Record hook events read from stdin as one worker session",
		Action: app.record,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Session id of events that carry none (default: a random id)",
				EnvVars: []string{config.EnvVar("SESSION_ID")},
			},
		},
		Description: `Reads one JSON hook event per line from stdin, for example:

  {"hook":"beforeTest","session":{"id":"s1"},"test":{"title":"logs in","parent":"Login"}}
  {"hook":"description","session":{"id":"s1"},"text":"Checks the login form"}
  {"hook":"afterTest","session":{"id":"s1"},"test":{"title":"logs in","parent":"Login"},"outcome":{"passed":true,"duration":120}}

Hooks: beforeTest, afterTest, beforeScenario, afterScenario, description,
custom, step, file, afterSession, after. Every session seen is flushed to
its own artifact at the end of the input.`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "aggregate",
		Usage:  "Merge the session artifacts and upload the results",
		Action: app.aggregate,
		Flags:  aggregateFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run worker processes in parallel and aggregate their results",
		ArgsUsage: "-- <worker command> [args...]",
		Action:    app.run,
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "parallel",
				Aliases: []string{"p"},
				Usage:   "Number of worker processes",
				Value:   1,
			},
		}, aggregateFlags()...),
		Description: `Prepares the temp directory, starts the worker command the given number of
times and aggregates once every worker has exited. Each worker gets its own
CASEFLOW_SESSION_ID and the shared CASEFLOW_TEMP_DIR in its environment.

Examples:
  caseflow --target $TOKEN run -p 4 -- npx wdio run wdio.conf.js`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List the session artifacts in the temp directory",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View the test cases of a session artifact",
		ArgsUsage:       "[SESSION|INDEX] [-json]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View the test cases recorded by one session.

Arguments:
  0           View the newest artifact (default)
  -1          View the 2nd newest artifact
  <session>   View the artifact whose session id starts with <session>

Options:
  -json       Print the cases as JSON instead of a table

Examples:
  caseflow view            # View the newest artifact
  caseflow view -1         # View the 2nd newest artifact
  caseflow view 3f2a -json # Print session 3f2a... as JSON`,
	})
	return app
}

func aggregateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print the payload instead of uploading it",
		},
		&cli.StringFlag{
			Name:    "metrics-file",
			Usage:   "Write Prometheus metrics of the run to this file",
			EnvVars: []string{config.EnvVar("METRICS_FILE")},
		},
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		if len(commit) > 8 {
			commit = commit[:8]
		}
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	}
}

// options loads the config file, if any, and applies the flags set on the
// command line or through the environment on top of it.
func (a *App) options(ctx *cli.Context) (config.Options, error) {
	var opts config.Options
	if path := ctx.String("config"); path != "" {
		var err error
		if opts, err = config.Load(path); err != nil {
			return config.Options{}, err
		}
		a.logger.Debug().Str("path", path).Msg("Loaded config file")
	}

	for flag, dst := range map[string]*string{
		"target":   &opts.Target,
		"files":    &opts.Files,
		"temp-dir": &opts.TempDir,
		"endpoint": &opts.Endpoint,
	} {
		if ctx.IsSet(flag) {
			*dst = ctx.String(flag)
		}
	}

	if ctx.IsSet("build-name") {
		if opts.Build == nil {
			opts.Build = &model.Build{}
		}
		opts.Build.Name = ctx.String("build-name")
	}
	if opts.Build != nil {
		for flag, dst := range map[string]*string{
			"build-result": &opts.Build.Result,
			"build-desc":   &opts.Build.Desc,
			"build-reason": &opts.Build.Reason,
		} {
			if ctx.IsSet(flag) {
				*dst = ctx.String(flag)
			}
		}
		if opts.Build.Name == "" {
			opts.Build = nil
		}
	}
	if opts.Build != nil && ctx.Bool("build-git") {
		a.addGitInfo(opts.Build)
	}

	return opts.WithDefaults(), nil
}
