package recorder

// This file contains the JSON-lines hook protocol spoken by framework
// adapters running in another process.

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/caseflow/caseflow/model"
)

// Hook names accepted on the event stream.
const (
	HookBeforeTest     = "beforeTest"
	HookAfterTest      = "afterTest"
	HookBeforeScenario = "beforeScenario"
	HookAfterScenario  = "afterScenario"
	HookDescription    = "description"
	HookCustom         = "custom"
	HookStep           = "step"
	HookFile           = "file"
	HookAfterSession   = "afterSession"
	HookAfter          = "after"
)

const maxEventSize = 16 * 1024 * 1024

// HookEvent is one line of the event stream. Only the fields used by the
// named hook are read.
type HookEvent struct {
	Hook    string  `json:"hook"`
	Session Session `json:"session"`

	Test     *TestEvent       `json:"test,omitempty"`
	Outcome  *TestOutcome     `json:"outcome,omitempty"`
	World    *World           `json:"world,omitempty"`
	Scenario *ScenarioOutcome `json:"scenario,omitempty"`

	Text  string      `json:"text,omitempty"`
	Key   string      `json:"key,omitempty"`
	Value any         `json:"value,omitempty"`
	Step  *model.Step `json:"step,omitempty"`
	File  string      `json:"file,omitempty"`
}

// Handle dispatches one event to the matching hook.
func (r *Recorder) Handle(ev HookEvent) error {
	sess := ev.Session
	switch ev.Hook {
	case HookBeforeTest:
		if ev.Test == nil {
			return fmt.Errorf("%s event without test", ev.Hook)
		}
		r.BeforeTest(sess, *ev.Test)
	case HookAfterTest:
		if ev.Test == nil {
			return fmt.Errorf("%s event without test", ev.Hook)
		}
		var out TestOutcome
		if ev.Outcome != nil {
			out = *ev.Outcome
		}
		r.AfterTest(sess, *ev.Test, out)
	case HookBeforeScenario:
		var world World
		if ev.World != nil {
			world = *ev.World
		}
		r.BeforeScenario(sess, world)
	case HookAfterScenario:
		var world World
		if ev.World != nil {
			world = *ev.World
		}
		var out ScenarioOutcome
		if ev.Scenario != nil {
			out = *ev.Scenario
		}
		r.AfterScenario(sess, world, out)
	case HookDescription:
		r.Supplemental(sess).SetDescription(ev.Text)
	case HookCustom:
		r.Supplemental(sess).SetCustomField(ev.Key, ev.Value)
	case HookStep:
		if ev.Step != nil {
			r.Supplemental(sess).AddStep(*ev.Step)
		}
	case HookFile:
		r.Supplemental(sess).AddFile(ev.File)
	case HookAfterSession:
		r.AfterSession(sess)
	case HookAfter:
		r.After(sess)
	default:
		return fmt.Errorf("unknown hook %q", ev.Hook)
	}
	return nil
}

// Consume reads events from in until EOF and then flushes every session
// seen, in order of first appearance. Events without a session id are
// attributed to defaultSession. Malformed lines and invalid events are
// logged and skipped.
func (r *Recorder) Consume(in io.Reader, defaultSession string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	sessions := make(map[string]Session)
	var (
		order []string
		line  int
	)
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var ev HookEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			r.logger.Warn().Err(err).Int("line", line).Msg("Failed to parse hook event")
			continue
		}
		if ev.Session.ID == "" {
			ev.Session.ID = defaultSession
		}
		if err := r.Handle(ev); err != nil {
			r.logger.Warn().Err(err).Int("line", line).Msg("Skipping hook event")
			continue
		}
		if _, ok := sessions[ev.Session.ID]; !ok {
			order = append(order, ev.Session.ID)
		}
		sessions[ev.Session.ID] = ev.Session
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read hook events: %w", err)
	}

	if len(order) == 0 {
		r.After(Session{ID: defaultSession})
		return nil
	}
	for _, id := range order {
		r.After(sessions[id])
	}
	return nil
}
