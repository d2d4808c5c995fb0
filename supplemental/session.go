package supplemental

import (
	"github.com/caseflow/caseflow/model"
)

// Session addresses whatever test is currently running in one session. Test
// code receives it from the framework adapter and uses it to attach data to
// the running case.
type Session struct {
	store *Store
	id    string
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Get returns a copy of the current test's entry.
func (s *Session) Get() (*Entry, bool) {
	return s.store.get(s.id)
}

// Set replaces the current test's entry. It reports false when the session
// has no current test.
func (s *Session) Set(entry *Entry) bool {
	if entry == nil {
		return false
	}
	return s.store.set(s.id, entry)
}

// SetDescription sets the description of the current test.
func (s *Session) SetDescription(desc string) {
	if desc == "" {
		return
	}
	s.store.update(s.id, func(e *Entry) {
		e.Desc = desc
	})
}

// SetCustomField sets a custom field on the current test. The key is stored
// with a leading underscore.
func (s *Session) SetCustomField(key string, value any) {
	if key == "" || value == nil {
		return
	}
	s.store.update(s.id, func(e *Entry) {
		if e.Custom == nil {
			e.Custom = make(map[string]any)
		}
		e.Custom["_"+key] = value
	})
}

// AddStep appends a step to the current test. Steps are not deduplicated:
// a retried test that logs the same step again shows it twice.
func (s *Session) AddStep(step model.Step) {
	if step.Name == "" {
		return
	}
	if step.Result == "" {
		step.Result = model.ResultUnknown
	}
	s.store.update(s.id, func(e *Entry) {
		e.Steps = append(e.Steps, step)
	})
}

// AddFile attaches a file to the current test. The file list never contains
// the same path twice.
func (s *Session) AddFile(path string) {
	if path == "" {
		return
	}
	s.store.update(s.id, func(e *Entry) {
		e.Files = dedupe(append(e.Files, path))
	})
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
