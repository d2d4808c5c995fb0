package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/artifact"
	"github.com/caseflow/caseflow/model"
)

func retries(n int) *int { return &n }

func TestCount(t *testing.T) {
	totals := Count([]model.TestCase{
		{Name: "a", Result: model.ResultPass, Retries: retries(0)},
		{Name: "b", Result: model.ResultFail, Retries: retries(2)},
		{Name: "c", Result: "skipped"},
		{Name: "d", Result: model.ResultPass, Retries: retries(1)},
	})

	require.Equal(t, Totals{Pass: 2, Fail: 1, Unknown: 1, Retries: 3}, totals)
}

func TestFormatReason(t *testing.T) {
	tests := []struct {
		name   string
		reason any
		want   string
	}{
		{name: "nil", reason: nil, want: ""},
		{name: "string", reason: "boom", want: "boom"},
		{name: "error detail", reason: model.ErrorDetail{Name: "Error", Message: "bad"}, want: "bad"},
		{name: "decoded error", reason: map[string]any{"message": "from json"}, want: "from json"},
		{name: "other", reason: 42.0, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, formatReason(tt.reason))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "-", formatDuration(nil))
	require.Equal(t, "1.5s", formatDuration(model.Millis(1500)))
}

func TestWriteCases(t *testing.T) {
	var buf bytes.Buffer
	WriteCases(&buf, "Results", []model.TestCase{
		{Suite: "Login", Name: "logs in", Result: model.ResultPass, Duration: model.Millis(200), Retries: retries(0)},
		{Suite: "Login", Name: "logs out", Result: model.ResultFail, Reason: "timeout", Retries: retries(1)},
	})

	out := buf.String()
	require.Contains(t, out, "Results")
	require.Contains(t, out, "logs in")
	require.Contains(t, out, "logs out")
	require.Contains(t, out, "timeout")
	// Footers are upper-cased by the default style.
	require.Contains(t, out, "1 PASS / 1 FAIL / 0 UNKNOWN")
}

func TestWriteArtifacts(t *testing.T) {
	var buf bytes.Buffer
	WriteArtifacts(&buf, "/tmp/caseflow", []artifact.Entry{
		{Session: "s1", Path: "/tmp/caseflow/s1.json", Cases: []model.TestCase{{Name: "a"}}},
		{Session: "notes", Path: "/tmp/caseflow/notes.txt", Err: errors.New("invalid character")},
		{Session: "s2", Path: "/tmp/caseflow/s2.json", Cases: []model.TestCase{{Name: "b"}}, Invalid: 1},
	})

	out := buf.String()
	require.Contains(t, out, "/tmp/caseflow/s1.json")
	require.Contains(t, out, "skipped: invalid character")
	require.Contains(t, out, "ok, 1 invalid records dropped")
}
