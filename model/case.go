package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Result is the canonical outcome of a test case or step.
type Result string

const (
	ResultPass    Result = "pass"
	ResultFail    Result = "fail"
	ResultUnknown Result = "unknown"
)

// ParseResult maps a raw status onto the canonical enum. Anything other than
// "pass" or "fail" becomes unknown.
func ParseResult(raw string) Result {
	switch Result(raw) {
	case ResultPass, ResultFail:
		return Result(raw)
	}
	return ResultUnknown
}

// TestCase is one recorded execution of a test. It is serialized as a flat
// JSON object: custom fields are stored in Custom and written inline, keyed
// with their leading underscore.
type TestCase struct {
	// Suite name, may be empty
	Suite string `json:"suite,omitempty"`
	// Test name
	Name string `json:"name"`
	// Canonical result
	Result Result `json:"result"`
	// Status string reported by the framework, before mapping
	RawResult string `json:"rawResult,omitempty"`
	// Start, end and duration are milliseconds, fractions kept; nil when
	// unknown
	Start    *float64 `json:"start,omitempty"`
	End      *float64 `json:"end,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	// Failure detail, a string or a structured error. Only set when not passed.
	Reason any `json:"reason,omitempty"`
	// Parameters, part of the case identity
	Params map[string]any `json:"params,omitempty"`
	// Description
	Desc string `json:"desc,omitempty"`
	// Step log
	Steps []Step `json:"steps,omitempty"`
	// Absolute paths of attached files
	Files []string `json:"files,omitempty"`
	// Number of retries observed, only set during aggregation
	Retries *int `json:"_Retries,omitempty"`

	// Custom fields keyed with a leading underscore (e.g. "_cid")
	Custom map[string]any `json:"-"`
}

// Step is one entry of a test case step log.
type Step struct {
	Name   string `json:"name"`
	Desc   string `json:"desc,omitempty"`
	Result Result `json:"result"`
	Reason any    `json:"reason,omitempty"`
}

// ErrorDetail is the structured form of a framework error.
type ErrorDetail struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// RetriesKey is the custom field carrying the retry count.
const RetriesKey = "_Retries"

var knownCaseKeys = map[string]bool{
	"suite": true, "name": true, "result": true, "rawResult": true,
	"start": true, "end": true, "duration": true, "reason": true,
	"params": true, "desc": true, "steps": true, "files": true,
	RetriesKey: true,
}

type testCaseAlias TestCase

// MarshalJSON writes the fixed fields followed by the custom fields.
func (tc TestCase) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(testCaseAlias(tc))
	if err != nil {
		return nil, err
	}
	if len(tc.Custom) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(tc.Custom))
	for k := range tc.Custom {
		if knownCaseKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return base, nil
	}
	sort.Strings(keys)

	var b strings.Builder
	b.Write(base[:len(base)-1])
	for _, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(tc.Custom[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal custom field %s: %w", k, err)
		}
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON keeps every key it does not know about in Custom.
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	var alias testCaseAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*tc = TestCase(alias)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if knownCaseKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("invalid custom field %s: %w", k, err)
		}
		if tc.Custom == nil {
			tc.Custom = make(map[string]any)
		}
		tc.Custom[k] = val
	}
	return nil
}

type stepWire struct {
	Name        string `json:"name"`
	Desc        string `json:"desc,omitempty"`
	Description string `json:"description,omitempty"`
	Result      Result `json:"result"`
	Reason      any    `json:"reason,omitempty"`
}

// UnmarshalJSON accepts "description" as an alias of "desc".
func (s *Step) UnmarshalJSON(data []byte) error {
	var wire stepWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.Name = wire.Name
	s.Desc = wire.Desc
	if s.Desc == "" {
		s.Desc = wire.Description
	}
	s.Result = wire.Result
	s.Reason = wire.Reason
	return nil
}

// Millis returns a pointer to v, for the optional timestamp fields.
func Millis(v float64) *float64 {
	return &v
}

// UnixMillis returns t as milliseconds since the epoch.
func UnixMillis(t time.Time) *float64 {
	return Millis(float64(t.UnixMilli()))
}

// SetCustom stores a custom field, adding the leading underscore if missing.
func (tc *TestCase) SetCustom(key string, value any) {
	if !strings.HasPrefix(key, "_") {
		key = "_" + key
	}
	if tc.Custom == nil {
		tc.Custom = make(map[string]any)
	}
	tc.Custom[key] = value
}

// RetryCount returns the retry count, or -1 if none was recorded.
func (tc TestCase) RetryCount() int {
	if tc.Retries == nil {
		return -1
	}
	return *tc.Retries
}
