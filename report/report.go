// Package report renders aggregation results and artifact listings as
// console tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/caseflow/caseflow/artifact"
	"github.com/caseflow/caseflow/model"
)

const maxReasonWidth = 60

// Totals counts canonical cases by result.
type Totals struct {
	Pass    int
	Fail    int
	Unknown int
	Retries int
}

// Count tallies cases by result and sums their retries.
func Count(cases []model.TestCase) Totals {
	var t Totals
	for _, tc := range cases {
		switch model.ParseResult(string(tc.Result)) {
		case model.ResultPass:
			t.Pass++
		case model.ResultFail:
			t.Fail++
		default:
			t.Unknown++
		}
		if n := tc.RetryCount(); n > 0 {
			t.Retries += n
		}
	}
	return t
}

// WriteCases renders one row per case with a totals footer.
func WriteCases(w io.Writer, title string, cases []model.TestCase) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Suite", "Name", "Result", "Duration", "Retries", "Files", "Reason"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Suite", AutoMerge: true},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Retries", Align: text.AlignRight},
		{Name: "Files", Align: text.AlignRight},
		{Name: "Reason", WidthMax: maxReasonWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, tc := range cases {
		retries := "-"
		if n := tc.RetryCount(); n >= 0 {
			retries = fmt.Sprint(n)
		}
		t.AppendRow(table.Row{
			tc.Suite,
			tc.Name,
			resultString(tc.Result),
			formatDuration(tc.Duration),
			retries,
			len(tc.Files),
			formatReason(tc.Reason),
		})
	}

	totals := Count(cases)
	t.AppendFooter(table.Row{
		"TOTAL",
		len(cases),
		fmt.Sprintf("%d pass / %d fail / %d unknown", totals.Pass, totals.Fail, totals.Unknown),
		"",
		totals.Retries,
		"",
		"",
	})

	t.Render()
}

// WriteArtifacts renders the files found in the temp directory. Rows are
// numbered 0, -1, -2... in the order given, matching the view selector.
func WriteArtifacts(w io.Writer, dir string, entries []artifact.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(dir)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "File", "Session", "Modified", "Cases", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Cases", Align: text.AlignRight},
		{Name: "Status", WidthMax: maxReasonWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, e := range entries {
		status := "ok"
		cases := fmt.Sprint(len(e.Cases))
		if e.Invalid > 0 {
			status = fmt.Sprintf("ok, %d invalid records dropped", e.Invalid)
		}
		if e.Err != nil {
			status = "skipped: " + e.Err.Error()
			cases = "-"
		}
		t.AppendRow(table.Row{-i, e.Path, e.Session, e.ModTime.Format(time.DateTime), cases, status})
	}

	t.Render()
}

func resultString(r model.Result) string {
	switch model.ParseResult(string(r)) {
	case model.ResultPass:
		return "✓ pass"
	case model.ResultFail:
		return "✗ fail"
	}
	return "? " + string(model.ResultUnknown)
}

func formatDuration(ms *float64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms * float64(time.Millisecond))
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatReason flattens a string or structured reason to one line.
func formatReason(reason any) string {
	switch r := reason.(type) {
	case nil:
		return ""
	case string:
		return r
	case model.ErrorDetail:
		return r.Message
	case map[string]any:
		if msg, ok := r["message"].(string); ok {
			return msg
		}
	}
	return fmt.Sprint(reason)
}
