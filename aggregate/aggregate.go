// Package aggregate merges the session artifacts written by the workers into
// one canonical case list and uploads it.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/caseflow/caseflow/artifact"
	"github.com/caseflow/caseflow/attachments"
	"github.com/caseflow/caseflow/config"
	"github.com/caseflow/caseflow/identity"
	"github.com/caseflow/caseflow/metrics"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/upload"
)

// ErrUploadFailed is returned by Run when the results could not be uploaded.
var ErrUploadFailed = errors.New("upload failed")

// Summary describes one aggregation run.
type Summary struct {
	ArtifactsRead    int
	ArtifactsSkipped int
	Retries          int
	Cases            []model.TestCase
	Response         *model.Response
}

type Aggregator struct {
	logger   zerolog.Logger
	fs       afero.Fs
	opts     config.Options
	uploader upload.Uploader
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMetrics records the run on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New creates an aggregator. uploader may be nil when only Prepare, Collect
// or Payload are used.
func New(logger zerolog.Logger, fs afero.Fs, opts config.Options, uploader upload.Uploader, options ...Option) *Aggregator {
	a := &Aggregator{
		logger:   logger,
		fs:       fs,
		opts:     opts.WithDefaults(),
		uploader: uploader,
		now:      time.Now,
	}
	for _, o := range options {
		o(a)
	}
	return a
}

// Enabled reports whether a target is configured.
func (a *Aggregator) Enabled() bool {
	return a.opts.Enabled()
}

// Prepare empties the shared temp directory before the workers start.
func (a *Aggregator) Prepare() {
	if !a.Enabled() {
		a.logger.Info().Msg("No target configured, results will not be recorded")
		return
	}
	artifact.Reset(a.logger, a.fs, a.opts.TempDir)
}

// Collect returns every artifact of the temp directory in file name order.
// Unreadable files and files that do not hold a case list are skipped.
func (a *Aggregator) Collect() (entries []artifact.Entry, skipped int) {
	all, err := artifact.LoadEntries(a.logger, a.fs, a.opts.TempDir)
	if err != nil {
		if artifact.IsNotExist(err) {
			a.logger.Debug().Str("dir", a.opts.TempDir).Msg("Temp directory does not exist")
		} else {
			a.logger.Warn().Err(err).Str("dir", a.opts.TempDir).Msg("Failed to list temp directory")
		}
		return nil, 0
	}
	for _, e := range all {
		a.metrics.RecordArtifact(e.Err == nil)
		if e.Err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped
}

// Payload collects and merges the artifacts and appends the build case.
func (a *Aggregator) Payload() (*model.Payload, *Summary) {
	entries, skipped := a.Collect()

	var all []model.TestCase
	for _, e := range entries {
		all = append(all, e.Cases...)
	}
	cases, retries := Merge(all)
	if build := a.BuildCase(a.opts.Build); build != nil {
		cases = append(cases, *build)
	}

	summary := &Summary{
		ArtifactsRead:    len(entries),
		ArtifactsSkipped: skipped,
		Retries:          retries,
		Cases:            cases,
	}
	payload := &model.Payload{
		Target:  a.opts.Target,
		Results: model.Results{Cases: cases},
	}
	if payload.Results.Cases == nil {
		payload.Results.Cases = []model.TestCase{}
	}
	return payload, summary
}

// Run builds the payload and uploads it once. A disabled aggregator does
// nothing and returns a nil summary. The upload error is the only error
// returned; it wraps ErrUploadFailed.
func (a *Aggregator) Run(ctx context.Context) (*Summary, error) {
	if !a.Enabled() {
		a.logger.Info().Msg("No target configured, results will not be uploaded")
		return nil, nil
	}

	payload, summary := a.Payload()
	a.metrics.RecordCases(summary.Cases, summary.Retries)
	a.logger.Debug().
		Int("artifacts", summary.ArtifactsRead).
		Int("skipped", summary.ArtifactsSkipped).
		Int("cases", len(summary.Cases)).
		Int("retries", summary.Retries).
		Msg("Merged test cases")

	if a.uploader == nil {
		return summary, fmt.Errorf("%w: no uploader configured", ErrUploadFailed)
	}
	response, err := a.uploader.Upload(ctx, payload)
	if err != nil {
		a.metrics.RecordUpload(metrics.OutcomeError, a.now())
		return summary, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	summary.Response = response

	outcome := metrics.OutcomeSuccess
	if !response.Success {
		outcome = metrics.OutcomeRejected
	}
	a.metrics.RecordUpload(outcome, a.now())

	a.logger.Info().
		Bool("success", response.Success).
		Str("message", response.Message).
		Int("warnings", len(response.Warnings)).
		Int("errors", len(response.Errors)).
		Msg("Uploaded results")
	return summary, nil
}

type mergeState struct {
	retries int
	index   int
}

// Merge folds retries of the same case into one canonical case, keeping the
// order of first appearance. The attempt with the strictly latest end wins;
// an attempt without end never replaces one. Every canonical case carries
// the number of retries seen for it. The total number of retries is
// returned alongside.
func Merge(cases []model.TestCase) ([]model.TestCase, int) {
	var (
		merged []model.TestCase
		seen   = make(map[string]*mergeState)
		total  int
	)
	for _, tc := range cases {
		hash := identity.Hash(tc)
		state, ok := seen[hash]
		if !ok {
			tc.Retries = retryCount(0)
			seen[hash] = &mergeState{index: len(merged)}
			merged = append(merged, tc)
			continue
		}

		state.retries++
		total++
		tc.Retries = retryCount(state.retries)
		if endsLater(tc, merged[state.index]) {
			merged[state.index] = tc
		} else {
			merged[state.index].Retries = retryCount(state.retries)
		}
	}
	return merged, total
}

func endsLater(incoming, canonical model.TestCase) bool {
	if incoming.End == nil || canonical.End == nil {
		return false
	}
	return *incoming.End > *canonical.End
}

func retryCount(n int) *int {
	return &n
}

// BuildCase turns the configured build into the synthetic build case. It
// returns nil when there is no build or it has no name.
func (a *Aggregator) BuildCase(build *model.Build) *model.TestCase {
	if build == nil || build.Name == "" {
		return nil
	}

	tc := model.TestCase{
		Suite:     model.BuildSuite,
		Name:      build.Name,
		Result:    model.ParseResult(build.Result),
		RawResult: build.Result,
		Start:     build.Start,
		End:       build.End,
		Duration:  build.Duration,
		Params:    build.Params,
		Desc:      build.Desc,
		Files:     build.Files,
	}
	if build.Reason != "" {
		tc.Reason = build.Reason
	}
	if build.Description != "" {
		tc.Desc = build.Description
	}
	if tc.Files == nil {
		resolver := attachments.New(a.logger, a.fs, a.opts.Files)
		if files := resolver.Resolve(tc.Suite, tc.Name); len(files) > 0 {
			tc.Files = files
		}
	}
	for k, v := range build.Custom {
		tc.SetCustom(k, v)
	}
	return &tc
}
