package cli

// This file contains Git integration utilities for stamping the build case
// with repository information.

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/caseflow/caseflow/model"
)

const (
	fieldGitCommit = "Git Commit"
	fieldGitBranch = "Git Branch"
)

func (a *App) getGitInfo() (commit, branch string, err error) {
	// Get current commit hash
	cmd := exec.Command("git", "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to get git commit: %w", err)
	}
	commit = strings.TrimSpace(string(output))

	// Get current branch
	cmd = exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	output, err = cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to get git branch: %w", err)
	}
	branch = strings.TrimSpace(string(output))

	return commit, branch, nil
}

// addGitInfo sets the commit and branch custom fields of the build unless
// the config already carries them. Outside a repository nothing is added.
func (a *App) addGitInfo(build *model.Build) {
	commit, branch, err := a.getGitInfo()
	if err != nil {
		a.logger.Debug().Err(err).Msg("No git information for the build case")
		return
	}
	if build.Custom == nil {
		build.Custom = make(map[string]any)
	}
	for key, value := range map[string]string{
		fieldGitCommit: commit,
		fieldGitBranch: branch,
	} {
		if _, ok := build.Custom[key]; !ok && value != "" {
			build.Custom[key] = value
		}
	}
}
