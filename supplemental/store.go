// Package supplemental holds metadata attached to the currently running test
// case of a session (description, custom fields, steps and files) until the
// recorder merges it into the finished case.
//
// A Store lives for the lifetime of one worker process. Each session has a
// "current" pointer naming the identity hash of the running test; entries for
// earlier hashes are kept so that a retry of the same test sees them again.
package supplemental

import (
	"strings"
	"sync"

	"github.com/caseflow/caseflow/model"
)

// Entry is the supplemental data collected for one test identity.
type Entry struct {
	Desc   string
	Steps  []model.Step
	Files  []string
	Custom map[string]any
}

func (e *Entry) clone() *Entry {
	c := &Entry{Desc: e.Desc}
	if e.Steps != nil {
		c.Steps = append([]model.Step(nil), e.Steps...)
	}
	if e.Files != nil {
		c.Files = append([]string(nil), e.Files...)
	}
	if e.Custom != nil {
		c.Custom = make(map[string]any, len(e.Custom))
		for k, v := range e.Custom {
			c.Custom[k] = v
		}
	}
	return c
}

// Apply merges the entry onto tc: description, steps and files replace the
// recorded values when set, custom fields are copied over.
func (e *Entry) Apply(tc *model.TestCase) {
	if e == nil {
		return
	}
	if e.Desc != "" {
		tc.Desc = e.Desc
	}
	if e.Steps != nil {
		tc.Steps = append([]model.Step(nil), e.Steps...)
	}
	if e.Files != nil {
		tc.Files = append([]string(nil), e.Files...)
	}
	for k, v := range e.Custom {
		if strings.HasPrefix(k, "_") {
			tc.SetCustom(k, v)
		}
	}
}

type sessionData struct {
	current string
	entries map[string]*Entry
}

// Store maps session ids to their supplemental data.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*sessionData
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*sessionData)}
}

// MarkCurrent points the session at hash, creating the session if needed.
func (s *Store) MarkCurrent(sessionID, hash string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok {
		data = &sessionData{entries: make(map[string]*Entry)}
		s.sessions[sessionID] = data
	}
	data.current = hash
}

// Current returns the hash the session currently points at.
func (s *Store) Current(sessionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok || data.current == "" {
		return "", false
	}
	return data.current, true
}

// Consume returns a copy of the entry recorded for hash and clears the
// session's current pointer. The entry itself is kept.
func (s *Store) Consume(sessionID, hash string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	data.current = ""
	entry, ok := data.entries[hash]
	if !ok {
		return nil, false
	}
	return entry.clone(), true
}

// Session returns the helper handle for sessionID.
func (s *Store) Session(sessionID string) *Session {
	return &Session{store: s, id: sessionID}
}

// update runs fn on the entry of the session's current test, creating the
// entry on first write. It is a no-op when the session has no current test.
func (s *Store) update(sessionID string, fn func(e *Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok || data.current == "" {
		return false
	}
	entry, ok := data.entries[data.current]
	if !ok {
		entry = &Entry{}
		data.entries[data.current] = entry
	}
	fn(entry)
	return true
}

func (s *Store) get(sessionID string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok || data.current == "" {
		return nil, false
	}
	entry, ok := data.entries[data.current]
	if !ok {
		return nil, false
	}
	return entry.clone(), true
}

func (s *Store) set(sessionID string, entry *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sessions[sessionID]
	if !ok || data.current == "" {
		return false
	}
	data.entries[data.current] = entry.clone()
	return true
}
