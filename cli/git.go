package cli

// This file contains Git integration utilities for retrieving
// repository information.

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxUploadCommits bounds the commits offered to the remote service.
const maxUploadCommits = 1000

func gitOutput(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (a *App) getGitInfo(ctx context.Context) (commit, branch string, err error) {
	commit, err = gitOutput(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", "", fmt.Errorf("failed to get git commit: %w", err)
	}

	branch, err = gitOutput(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", "", fmt.Errorf("failed to get git branch: %w", err)
	}

	return commit, branch, nil
}

// getRepositoryURL returns the fetch URL of the origin remote.
func (a *App) getRepositoryURL(ctx context.Context) string {
	url, err := gitOutput(ctx, "config", "--get", "remote.origin.url")
	if err != nil {
		a.logger.Debug().Err(err).Msg("No origin remote configured")
		return ""
	}
	return url
}

func (a *App) getCommitMessage(ctx context.Context, commit string) string {
	msg, err := gitOutput(ctx, "log", "-1", "--format=%B", commit)
	if err != nil {
		return ""
	}
	return msg
}

// listCommits returns the most recent commits of the last month, newest
// first.
func (a *App) listCommits(ctx context.Context) ([]string, error) {
	out, err := gitOutput(ctx, "log", "--format=%H", fmt.Sprintf("-n%d", maxUploadCommits), "--since=1 month ago")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}
