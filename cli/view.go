package cli

// This file contains the view command for displaying session results from history.

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/testgate/history"
	"github.com/perfgo/testgate/model"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func isHexID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') && r != '-' {
			return false
		}
	}
	return true
}

// parseViewArgs splits the view arguments into the entry selector and the
// test patterns.
func parseViewArgs(in []string) (idArg string, patterns []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are patterns
	if in[0] == "--" {
		return "0", in[1:]
	}

	// An index is "0" or "-" followed by only digits (e.g., "-1", "-2")
	if _, err := strconv.ParseInt(in[0], 10, 64); err == nil {
		return in[0], removeFirstDashDash(in[1:])
	}
	if isHexID(in[0]) {
		return in[0], removeFirstDashDash(in[1:])
	}

	// Anything else is already a test pattern
	return "0", in
}

// matchTest reports whether suite/name matches any pattern. No patterns
// match everything.
func matchTest(patterns []string, t model.TestResult) bool {
	if len(patterns) == 0 {
		return true
	}
	name := path.Join(t.Suite, t.Name)
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(p, t.Name); err == nil && ok {
			return true
		}
	}
	return false
}

func (a *App) view(ctx *cli.Context) error {
	arg, patterns := parseViewArgs(ctx.Args().Slice())

	root, err := history.GetRoot()
	if err != nil {
		return err
	}

	entries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	entry, err := history.Find(entries, arg)
	if err != nil {
		return err
	}

	return a.displayHistoryEntry(entry, patterns)
}

func (a *App) displayHistoryEntry(entry *history.Entry, patterns []string) error {
	h := entry.History
	w := os.Stdout

	fmt.Fprintf(w, "=== Test Session: %s ===\n", short(h.ID))
	fmt.Fprintf(w, "Time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n", h.Duration)
	fmt.Fprintf(w, "Exit Code: %d\n", h.ExitCode)
	if h.WorkDir != "" {
		fmt.Fprintf(w, "Working Dir: %s\n", h.WorkDir)
	}
	if h.Git != nil && h.Git.Commit != "" {
		fmt.Fprintf(w, "Git Commit: %s", short(h.Git.Commit))
		if h.Git.Branch != "" {
			fmt.Fprintf(w, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(w)
	}
	if h.Test == nil {
		fmt.Fprintf(w, "No test results recorded\nHistory directory: %s\n", entry.FullPath)
		return nil
	}
	fmt.Fprintf(w, "Package: %s (%s)\n", h.Test.Module, h.Test.PackagePath)
	if len(h.Test.Features) > 0 {
		fmt.Fprintf(w, "Features: %s\n", strings.Join(h.Test.Features, ", "))
	}
	for k, v := range h.Test.Tags {
		colorFaint.Fprintf(w, "  %s=%s\n", k, v)
	}
	for k, v := range h.Test.Metrics {
		colorFaint.Fprintf(w, "  %s=%g\n", k, v)
	}
	fmt.Fprintln(w)

	shown := 0
	for _, t := range h.Test.Tests {
		if !matchTest(patterns, t) {
			continue
		}
		shown++
		printTestLine(w, t)
		for i, r := range t.Runs {
			printRun(w, i, r)
		}
	}
	if shown == 0 && len(patterns) > 0 {
		fmt.Fprintf(w, "No tests matching %s\n", strings.Join(patterns, " "))
	}

	printCounts(w, h.Test.Summary)
	for _, artifact := range h.Artifacts {
		fmt.Fprintf(w, "%s: %s (%.1f KB)\n", artifact.Type, entry.FullPath+"/"+artifact.File, float64(artifact.Size)/1024)
	}
	return nil
}

func short(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
