package cli

// This file contains the list command for displaying the session artifacts
// of the temp directory.

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/caseflow/caseflow/artifact"
	"github.com/caseflow/caseflow/config"
	"github.com/caseflow/caseflow/report"
)

// loadArtifacts returns the entries of the temp directory, newest first.
func (a *App) loadArtifacts(opts config.Options) ([]artifact.Entry, error) {
	entries, err := artifact.LoadEntries(a.logger, a.fs, opts.TempDir)
	if err != nil {
		if artifact.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

func (a *App) list(ctx *cli.Context) error {
	limit := ctx.Int("limit")

	opts, err := a.options(ctx)
	if err != nil {
		return err
	}

	entries, err := a.loadArtifacts(opts)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintf(a.stdout, "No artifacts found in %s\n", opts.TempDir)
		return nil
	}

	displayEntries := entries
	if limit > 0 && limit < len(displayEntries) {
		displayEntries = displayEntries[:limit]
	}

	report.WriteArtifacts(a.stdout, fmt.Sprintf("%s (%d total)", opts.TempDir, len(entries)), displayEntries)
	fmt.Fprintln(a.stdout, "\nView cases: caseflow view <INDEX|SESSION>")

	return nil
}
