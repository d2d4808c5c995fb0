// Package recorder turns test framework lifecycle hooks into test case
// records. One Recorder runs per worker process; at the end of a session it
// writes everything it recorded as that session's artifact.
package recorder

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/caseflow/caseflow/artifact"
	"github.com/caseflow/caseflow/attachments"
	"github.com/caseflow/caseflow/config"
	"github.com/caseflow/caseflow/identity"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/supplemental"
)

const (
	paramDeviceBrowser   = "Device/Browser"
	paramExampleID       = "Example Id"
	fieldBrowserVersion  = "_Device/Browser Version"
	statusCucumberPassed = "PASSED"
	statusCucumberFailed = "FAILED"
)

type Recorder struct {
	logger zerolog.Logger
	fs     afero.Fs
	opts   config.Options
	store  *supplemental.Store
	files  *attachments.Resolver
	now    func() time.Time

	cases      []recorded
	startTimes map[string]time.Time
}

// recorded is a finished case and the session that ran it.
type recorded struct {
	session string
	tc      model.TestCase
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New creates the recorder of one worker process. store holds the
// supplemental data of the process and is shared with the test code.
func New(logger zerolog.Logger, fs afero.Fs, opts config.Options, store *supplemental.Store, options ...Option) *Recorder {
	opts = opts.WithDefaults()
	r := &Recorder{
		logger:     logger,
		fs:         fs,
		opts:       opts,
		store:      store,
		files:      attachments.New(logger, fs, opts.Files),
		now:        time.Now,
		startTimes: make(map[string]time.Time),
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Enabled reports whether a target is configured. A disabled recorder
// ignores every hook.
func (r *Recorder) Enabled() bool {
	return r.opts.Enabled()
}

// Cases returns a copy of the cases recorded so far, in every session.
func (r *Recorder) Cases() []model.TestCase {
	cases := make([]model.TestCase, 0, len(r.cases))
	for _, rc := range r.cases {
		cases = append(cases, rc.tc)
	}
	return cases
}

// SessionCases returns a copy of the cases recorded in the session.
func (r *Recorder) SessionCases(sessionID string) []model.TestCase {
	var cases []model.TestCase
	for _, rc := range r.cases {
		if rc.session == sessionID {
			cases = append(cases, rc.tc)
		}
	}
	return cases
}

// Supplemental returns the helper handle test code uses to attach a
// description, custom fields, steps and files to the running test.
func (r *Recorder) Supplemental(sess Session) *supplemental.Session {
	return r.store.Session(sess.ID)
}

// BeforeTest runs before a Mocha or Jasmine test.
func (r *Recorder) BeforeTest(sess Session, test TestEvent) {
	if !r.Enabled() {
		return
	}
	ft := test.Framework()
	r.begin(sess, identity.Of(ft.Suite(), ft.Name(), testParams(sess, nil)))
}

// BeforeScenario runs before a Cucumber scenario.
func (r *Recorder) BeforeScenario(sess Session, world World) {
	if !r.Enabled() {
		return
	}
	sc := world.Scenario()
	r.begin(sess, identity.Of(sc.Suite(), sc.Name(), testParams(sess, &sc)))
}

func (r *Recorder) begin(sess Session, hash string) {
	r.store.MarkCurrent(sess.ID, hash)
	r.startTimes[hash] = r.now()
}

// AfterTest records a finished Mocha or Jasmine test.
func (r *Recorder) AfterTest(sess Session, test TestEvent, out TestOutcome) {
	if !r.Enabled() {
		return
	}
	now := r.now()
	ft := test.Framework()

	tc := model.TestCase{
		Suite:  ft.Suite(),
		Name:   ft.Name(),
		Result: model.ResultFail,
		End:    model.UnixMillis(now),
		Params: testParams(sess, nil),
	}
	if out.Passed {
		tc.Result = model.ResultPass
	}
	hash := identity.Hash(tc)
	r.setTiming(&tc, hash, now, out.Duration)

	var reason any
	if !out.Passed && out.Error != nil {
		reason = *out.Error
	}
	if j, ok := ft.(JasmineTest); ok && len(j.FailedExpectations) > 0 {
		tc.Result = model.ResultFail
		reason = j.FailedExpectations[0]
	}
	if tc.Result != model.ResultPass {
		tc.Reason = reason
	}

	if test.CID != "" {
		tc.SetCustom("_cid", test.CID)
	}
	if test.UID != "" {
		tc.SetCustom("_uid", test.UID)
	}
	if test.Type != "" {
		tc.SetCustom("_type", test.Type)
	}
	if out.Result != nil {
		tc.SetCustom("_returned", out.Result)
	}
	if test.Data != nil {
		tc.SetCustom("_wdio_data", test.Data)
	}

	r.finish(sess, hash, &tc)
}

// AfterScenario records a finished Cucumber scenario.
func (r *Recorder) AfterScenario(sess Session, world World, out ScenarioOutcome) {
	if !r.Enabled() {
		return
	}
	now := r.now()
	sc := world.Scenario()

	tc := model.TestCase{
		Suite:     sc.Suite(),
		Name:      sc.Name(),
		Result:    model.ResultUnknown,
		RawResult: sc.Status,
		End:       model.UnixMillis(now),
		Params:    testParams(sess, &sc),
	}
	switch sc.Status {
	case statusCucumberPassed:
		tc.Result = model.ResultPass
	case statusCucumberFailed:
		tc.Result = model.ResultFail
	}
	hash := identity.Hash(tc)
	r.setTiming(&tc, hash, now, nil)
	if tc.Duration == nil {
		r.setTiming(&tc, hash, now, out.Duration)
	}

	for i, step := range sc.Steps {
		name := step.Keyword
		if name == "" {
			name = step.Text
		}
		result := model.ResultPass
		if i == len(sc.Steps)-1 {
			result = tc.Result
		}
		tc.Steps = append(tc.Steps, model.Step{
			Name:   name,
			Desc:   step.Text,
			Result: result,
		})
	}

	if !out.Passed && out.Error != "" {
		tc.Reason = out.Error
	}

	r.finish(sess, hash, &tc)
}

// finish adds the attachments, the browser version and the supplemental data
// and appends the case.
func (r *Recorder) finish(sess Session, hash string, tc *model.TestCase) {
	if v := browserVersion(sess.Capabilities); v != "" {
		tc.SetCustom(fieldBrowserVersion, v)
	}
	if files := r.files.Resolve(tc.Suite, tc.Name); len(files) > 0 {
		tc.Files = files
	}
	if sess.ID != "" {
		if entry, ok := r.store.Consume(sess.ID, hash); ok {
			entry.Apply(tc)
		}
	}

	r.logger.Debug().
		Str("suite", tc.Suite).
		Str("name", tc.Name).
		Str("result", string(tc.Result)).
		Str("session", sess.ID).
		Msg("Recorded test case")
	r.cases = append(r.cases, recorded{session: sess.ID, tc: *tc})
}

// setTiming sets start and duration from the framework duration, or from the
// start time recorded by the before hook. Both stay unset when neither is
// known.
func (r *Recorder) setTiming(tc *model.TestCase, hash string, now time.Time, duration *float64) {
	var d float64
	switch started, ok := r.startTimes[hash]; {
	case duration != nil:
		d = *duration
	case ok:
		d = float64(now.Sub(started).Milliseconds())
	default:
		return
	}
	delete(r.startTimes, hash)
	tc.Start = model.Millis(float64(now.UnixMilli()) - d)
	tc.Duration = model.Millis(d)
}

// Flush writes the cases recorded in the session as its artifact. Nothing
// is written when recording is disabled, the session recorded nothing or
// the session id is unknown. Write failures are logged.
func (r *Recorder) Flush(sess Session) {
	if !r.Enabled() {
		return
	}
	if sess.ID == "" {
		if n := len(r.SessionCases("")); n > 0 {
			r.logger.Debug().Int("cases", n).Msg("No session id, test cases not saved")
		}
		return
	}
	cases := r.SessionCases(sess.ID)
	if len(cases) == 0 {
		return
	}
	if err := artifact.Write(r.fs, r.opts.TempDir, sess.ID, cases); err != nil {
		r.logger.Warn().Err(err).Str("session", sess.ID).Msg("Failed to save test cases")
		return
	}
	r.logger.Debug().
		Str("session", sess.ID).
		Int("cases", len(cases)).
		Str("dir", r.opts.TempDir).
		Msg("Saved test cases")
}

// AfterSession runs when the driver session ends.
func (r *Recorder) AfterSession(sess Session) {
	r.Flush(sess)
}

// After runs when the worker has finished all its tests.
func (r *Recorder) After(sess Session) {
	r.Flush(sess)
}

// testParams returns the parameters of a case: the browser or platform of
// the session and, for scenarios, the pickle id.
func testParams(sess Session, sc *CucumberScenario) map[string]any {
	params := make(map[string]any)
	if caps := sess.Capabilities; caps != nil {
		name := caps.BrowserName
		if name == "" {
			name = caps.PlatformName
		}
		if name != "" {
			params[paramDeviceBrowser] = name
		}
	}
	if sc != nil && sc.HasPickle && sc.ID != "" {
		params[paramExampleID] = sc.ID
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func browserVersion(caps *Capabilities) string {
	if caps == nil {
		return ""
	}
	switch {
	case caps.BrowserVersion != "":
		return caps.BrowserVersion
	case caps.PlatformVersion != "":
		return caps.PlatformVersion
	}
	return caps.AppiumPlatformVersion
}
