package cli

// This file contains the prepare and aggregate commands that run before and
// after the workers.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/caseflow/caseflow/aggregate"
	"github.com/caseflow/caseflow/config"
	"github.com/caseflow/caseflow/metrics"
	"github.com/caseflow/caseflow/report"
	"github.com/caseflow/caseflow/upload"
)

func (a *App) aggregator(opts config.Options, uploader upload.Uploader, m *metrics.Metrics) *aggregate.Aggregator {
	return aggregate.New(a.logger, a.fs, opts, uploader, aggregate.WithMetrics(m))
}

func (a *App) prepare(ctx *cli.Context) error {
	opts, err := a.options(ctx)
	if err != nil {
		return err
	}
	a.aggregator(opts, nil, nil).Prepare()
	a.logger.Debug().Str("dir", opts.TempDir).Msg("Temp directory prepared")
	return nil
}

func (a *App) aggregate(ctx *cli.Context) error {
	opts, err := a.options(ctx)
	if err != nil {
		return err
	}
	return a.aggregateResults(ctx.Context, opts, ctx.Bool("dry-run"), ctx.String("metrics-file"))
}

// aggregateResults uploads the merged results, or prints the payload on a
// dry run, then prints the result table and writes the metrics file.
func (a *App) aggregateResults(ctx context.Context, opts config.Options, dryRun bool, metricsFile string) error {
	m := metrics.New()

	if dryRun {
		agg := a.aggregator(opts, nil, m)
		payload, summary := agg.Payload()
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		a.logger.Info().
			Int("cases", len(summary.Cases)).
			Int("retries", summary.Retries).
			Msg("Dry run, results not uploaded")
		return nil
	}

	agg := a.aggregator(opts, a.newUploader(a.logger, opts.Endpoint), m)
	summary, runErr := agg.Run(ctx)
	if summary != nil {
		report.WriteCases(a.stdout, fmt.Sprintf("Test Results (%d artifacts)", summary.ArtifactsRead), summary.Cases)
	}

	if metricsFile != "" {
		if err := m.WriteTextfile(metricsFile); err != nil {
			a.logger.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics file")
		}
	}
	return runErr
}
