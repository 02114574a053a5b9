package cli

// This file contains test discovery: asking the compiled test binary which
// tests it would run.

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// discoverTests lists the top level tests of binary matching filter, in
// source order.
func (a *App) discoverTests(ctx context.Context, binary, dir, filter string) ([]string, error) {
	cmd := exec.CommandContext(ctx, binary, "-test.list", filter)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to list tests: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return parseTestList(stdout.String()), nil
}

// parseTestList keeps tests and examples. Benchmarks only run on request
// and fuzz targets are run through their seed corpus as tests.
func parseTestList(out string) []string {
	var tests []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || seen[name] {
			continue
		}
		if !strings.HasPrefix(name, "Test") && !strings.HasPrefix(name, "Example") && !strings.HasPrefix(name, "Fuzz") {
			continue
		}
		seen[name] = true
		tests = append(tests, name)
	}
	return tests
}
