package gocmd

// go.go provides utilities for executing Go commands.

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// List runs 'go list' on a package path and returns the list of packages.
// Returns the packages found (one per line from stdout) and any error.
// If an error occurs, it includes a user-friendly error message.
func List(ctx context.Context, path string) ([]string, error) {
	cmd := CommandContext(ctx, "list", path)

	// Capture stdout and stderr separately
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, listError(path, stderr.String(), err)
	}

	// Parse packages from stdout (one per line)
	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return []string{}, nil
	}

	return strings.Split(output, "\n"), nil
}

// listError simplifies common 'go list' failures.
func listError(path, stderr string, err error) error {
	errMsg := strings.TrimSpace(stderr)

	if strings.Contains(errMsg, "no Go files in") {
		return fmt.Errorf("invalid package path %q: directory contains no Go files", path)
	}
	if strings.Contains(errMsg, "is not in std") || strings.Contains(errMsg, "is not in GOROOT") {
		return fmt.Errorf("invalid package path %q: package not found", path)
	}
	if strings.Contains(errMsg, "cannot find package") {
		return fmt.Errorf("invalid package path %q: package not found", path)
	}

	// For other errors, show the first line of the error
	if first, _, _ := strings.Cut(errMsg, "\n"); first != "" {
		return fmt.Errorf("invalid package path %q: %s", path, first)
	}

	return fmt.Errorf("invalid package path %q: %s", path, err.Error())
}

// CommandContext creates an exec.Cmd for running a Go command.
// The first argument is the Go subcommand (e.g., "build", "test"), followed by its arguments.
func CommandContext(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "go", args...)
}
