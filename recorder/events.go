package recorder

// This file contains the hook payload shapes handed over by the framework
// adapters and the identity each of them resolves to.

import (
	"strings"

	"github.com/caseflow/caseflow/model"
)

// Capabilities of the driver session, as reported by the framework.
type Capabilities struct {
	BrowserName           string `json:"browserName,omitempty"`
	PlatformName          string `json:"platformName,omitempty"`
	BrowserVersion        string `json:"browserVersion,omitempty"`
	PlatformVersion       string `json:"platformVersion,omitempty"`
	AppiumPlatformVersion string `json:"appium:platformVersion,omitempty"`
}

// Session identifies the driver session a hook fired in. Every hook and
// every supplemental helper is addressed through it.
type Session struct {
	ID           string        `json:"id,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
}

// TestEvent is the test object of a Mocha or Jasmine before/after hook.
// Mocha fills Title and Parent, Jasmine fills Description and FullName.
type TestEvent struct {
	Title              string `json:"title,omitempty"`
	Parent             string `json:"parent,omitempty"`
	Description        string `json:"description,omitempty"`
	FullName           string `json:"fullName,omitempty"`
	FailedExpectations []any  `json:"failedExpectations,omitempty"`
	CID                string `json:"cid,omitempty"`
	UID                string `json:"uid,omitempty"`
	Type               string `json:"type,omitempty"`
	Data               any    `json:"data,omitempty"`
}

// TestOutcome is the result object of an after-test hook. Duration is in
// milliseconds.
type TestOutcome struct {
	Error    *model.ErrorDetail `json:"error,omitempty"`
	Result   any                `json:"result,omitempty"`
	Duration *float64           `json:"duration,omitempty"`
	Passed   bool               `json:"passed"`
}

// FrameworkTest is the identity of a test, resolved from the framework
// specific hook payload.
type FrameworkTest interface {
	Suite() string
	Name() string
}

type MochaTest struct {
	Title  string
	Parent string
}

func (m MochaTest) Suite() string { return m.Parent }
func (m MochaTest) Name() string  { return m.Title }

type JasmineTest struct {
	Description        string
	FullName           string
	FailedExpectations []any
}

// Suite is the full name with the test description removed.
func (j JasmineTest) Suite() string {
	return strings.TrimSpace(strings.Replace(j.FullName, j.Description, "", 1))
}

func (j JasmineTest) Name() string { return j.Description }

// Framework tells the payload shapes apart: without title and parent but
// with description and full name it is a Jasmine spec, otherwise Mocha.
func (e TestEvent) Framework() FrameworkTest {
	if e.Title == "" && e.Parent == "" && e.Description != "" && e.FullName != "" {
		return JasmineTest{
			Description:        e.Description,
			FullName:           e.FullName,
			FailedExpectations: e.FailedExpectations,
		}
	}
	return MochaTest{Title: e.Title, Parent: e.Parent}
}

// World is the Cucumber hook parameter of a scenario.
type World struct {
	GherkinDocument *GherkinDocument `json:"gherkinDocument,omitempty"`
	Pickle          *Pickle          `json:"pickle,omitempty"`
	Result          *ScenarioStatus  `json:"result,omitempty"`
}

type GherkinDocument struct {
	Feature *Feature `json:"feature,omitempty"`
}

type Feature struct {
	Name string `json:"name"`
}

type Pickle struct {
	ID    string       `json:"id,omitempty"`
	Name  string       `json:"name"`
	Steps []PickleStep `json:"steps,omitempty"`
}

type PickleStep struct {
	Keyword string `json:"keyword,omitempty"`
	Text    string `json:"text,omitempty"`
}

type ScenarioStatus struct {
	Status string `json:"status"`
}

// ScenarioOutcome is the result object of an after-scenario hook.
type ScenarioOutcome struct {
	Passed   bool     `json:"passed"`
	Error    string   `json:"error,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
}

// CucumberScenario is the identity and step data of a scenario.
type CucumberScenario struct {
	Feature string
	Title   string
	ID      string
	Steps   []PickleStep
	Status  string
	// HasPickle is false when the world carried no pickle at all
	HasPickle bool
}

func (c CucumberScenario) Suite() string { return c.Feature }
func (c CucumberScenario) Name() string  { return c.Title }

// Scenario flattens the world into a CucumberScenario. Missing parts leave
// the matching fields empty.
func (w World) Scenario() CucumberScenario {
	var sc CucumberScenario
	if w.GherkinDocument != nil && w.GherkinDocument.Feature != nil {
		sc.Feature = w.GherkinDocument.Feature.Name
	}
	if w.Pickle != nil {
		sc.HasPickle = true
		sc.Title = w.Pickle.Name
		sc.ID = w.Pickle.ID
		sc.Steps = w.Pickle.Steps
	}
	if w.Result != nil {
		sc.Status = w.Result.Status
	}
	return sc
}
