package cli

// This file contains the view command for displaying the cases of one
// session artifact.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/caseflow/caseflow/artifact"
	"github.com/caseflow/caseflow/report"
)

func parseViewArgs(in []string) (idArg string, viewArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are view args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by only digits (e.g. "-1", "-2"),
	// anything else starting with "-" is an option (e.g. "-json")
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

type viewOptions struct {
	json bool
}

func parseViewOptions(args []string) (viewOptions, error) {
	var opts viewOptions
	for _, arg := range args {
		switch strings.TrimLeft(arg, "-") {
		case "json":
			opts.json = true
		default:
			return viewOptions{}, fmt.Errorf("unknown view option: %s", arg)
		}
	}
	return opts, nil
}

// selectArtifact finds the entry addressed by arg: 0 or a negative index
// counting from the newest, or a session id prefix.
func selectArtifact(entries []artifact.Entry, arg string) (*artifact.Entry, error) {
	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for newest, -1 for second newest, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d artifacts)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].Session), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no artifact found matching session: %s", arg)
}

func (a *App) view(ctx *cli.Context) error {
	arg, viewArgs := parseViewArgs(ctx.Args().Slice())
	viewOpts, err := parseViewOptions(viewArgs)
	if err != nil {
		return err
	}

	opts, err := a.options(ctx)
	if err != nil {
		return err
	}

	entries, err := a.loadArtifacts(opts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no artifacts found in %s", opts.TempDir)
	}

	entry, err := selectArtifact(entries, arg)
	if err != nil {
		return err
	}
	if entry.Err != nil {
		return fmt.Errorf("artifact %s could not be read: %w", entry.Path, entry.Err)
	}

	if viewOpts.json {
		data, err := json.MarshalIndent(entry.Cases, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal test cases: %w", err)
		}
		fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	report.WriteCases(a.stdout, fmt.Sprintf("Session %s", entry.Session), entry.Cases)
	return nil
}
