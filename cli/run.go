package cli

// This file contains the run command, which starts the worker processes and
// aggregates their results once all of them have exited.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"al.essio.dev/pkg/shellescape"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/caseflow/caseflow/config"
)

func (a *App) run(ctx *cli.Context) error {
	args := removeFirstDashDash(ctx.Args().Slice())
	if len(args) == 0 {
		return fmt.Errorf("no worker command specified: please provide it after --")
	}
	parallel := ctx.Int("parallel")
	if parallel < 1 {
		return fmt.Errorf("invalid parallel value %d: at least one worker is required", parallel)
	}

	opts, err := a.options(ctx)
	if err != nil {
		return err
	}

	a.aggregator(opts, nil, nil).Prepare()

	a.logger.Info().
		Int("workers", parallel).
		Str("command", shellescape.QuoteCommand(args)).
		Msg("Starting workers")

	// Workers are not cancelled when one of them fails, failing tests are
	// the normal case.
	var g errgroup.Group
	for i := 0; i < parallel; i++ {
		worker := i
		sessionID := uuid.NewString()
		g.Go(func() error {
			return a.runWorker(ctx.Context, worker, sessionID, opts, args)
		})
	}
	workerErr := g.Wait()
	if workerErr != nil {
		a.logger.Warn().Err(workerErr).Msg("At least one worker failed")
	}

	aggErr := a.aggregateResults(ctx.Context, opts, ctx.Bool("dry-run"), ctx.String("metrics-file"))
	return errors.Join(aggErr, workerErr)
}

func (a *App) runWorker(ctx context.Context, worker int, sessionID string, opts config.Options, args []string) error {
	logger := a.logger.With().Int("worker", worker).Str("session", sessionID).Logger()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), workerEnv(worker, sessionID, opts)...)

	logger.Debug().Msg("Starting worker")
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Info().
				Int("exit_code", exitErr.ExitCode()).
				Msg("Worker completed with failures")
			return fmt.Errorf("worker %d failed with exit code %d", worker, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to execute worker %d: %w", worker, err)
	}

	logger.Debug().Msg("Worker completed successfully")
	return nil
}

// workerEnv passes the resolved options on, so a worker running
// `caseflow record` writes into the same temp directory.
func workerEnv(worker int, sessionID string, opts config.Options) []string {
	env := []string{
		config.EnvVar("SESSION_ID") + "=" + sessionID,
		config.EnvVar("TEMP_DIR") + "=" + opts.TempDir,
		config.EnvVar("WORKER") + "=" + fmt.Sprint(worker),
	}
	if opts.Target != "" {
		env = append(env, config.EnvVar("TARGET")+"="+opts.Target)
	}
	if opts.Files != "" {
		env = append(env, config.EnvVar("FILES")+"="+opts.Files)
	}
	return env
}

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}
