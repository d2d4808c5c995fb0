package cli

// This file contains the record command, the worker side of a run.

import (
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/caseflow/caseflow/recorder"
	"github.com/caseflow/caseflow/supplemental"
)

func (a *App) record(ctx *cli.Context) error {
	opts, err := a.options(ctx)
	if err != nil {
		return err
	}
	if !opts.Enabled() {
		a.logger.Info().Msg("No target configured, results will not be recorded")
	}

	sessionID := ctx.String("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := a.logger.With().Str("session", sessionID).Logger()

	rec := recorder.New(logger, a.fs, opts, supplemental.NewStore())
	if err := rec.Consume(a.stdin, sessionID); err != nil {
		return err
	}

	logger.Debug().Int("cases", len(rec.Cases())).Msg("Recording finished")
	return nil
}
