package cli

// This file contains the human readable rendering of a session.

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/perfgo/testgate/feature"
	"github.com/perfgo/testgate/model"
)

var (
	colorPass  = color.New(color.FgGreen)
	colorFail  = color.New(color.FgRed, color.Bold)
	colorSkip  = color.New(color.FgYellow)
	colorFlaky = color.New(color.FgMagenta)
	colorFaint = color.New(color.Faint)
)

// testLabel classifies a logical test for display.
func testLabel(t model.TestResult) (string, *color.Color) {
	switch t.Status {
	case "fail":
		return "FAIL", colorFail
	case "skip":
		return "SKIP", colorSkip
	}
	for _, r := range t.Runs {
		if r.Status == "fail" {
			return "FLAKY", colorFlaky
		}
	}
	return "PASS", colorPass
}

// notable reports whether a test is worth listing in the summary.
func notable(t model.TestResult) bool {
	if t.Status != "pass" || t.Retried() {
		return true
	}
	for _, r := range t.Runs {
		if r.Tags[feature.TagFailureSuppression] != "" {
			return true
		}
	}
	return false
}

func runStatuses(t model.TestResult) string {
	statuses := make([]string, len(t.Runs))
	for i, r := range t.Runs {
		statuses[i] = r.Status
	}
	return strings.Join(statuses, ", ")
}

// testDetail is the most relevant annotation of a test: why it was skipped,
// why its failure was hidden or why it ran more than once.
func testDetail(t model.TestResult) string {
	if len(t.Runs) == 0 {
		return ""
	}
	last := t.Runs[len(t.Runs)-1]
	var parts []string
	if reason := last.Tags[feature.TagSkipReason]; reason != "" {
		parts = append(parts, reason)
	}
	if t.Retried() {
		parts = append(parts, fmt.Sprintf("%d runs: %s", len(t.Runs), runStatuses(t)))
		if reason := last.Tags[feature.TagRetryReason]; reason != "" {
			parts = append(parts, "retried by "+reason)
		}
	}
	if reason := last.Tags[feature.TagFailureSuppression]; reason != "" {
		parts = append(parts, "failure suppressed: "+reason)
	}
	if last.Tags[feature.TagIsNew] == "true" {
		parts = append(parts, "new")
	}
	return strings.Join(parts, "; ")
}

func (a *App) printSummary(w io.Writer, h *model.History) {
	if h.Test == nil {
		return
	}
	fmt.Fprintln(w)
	if len(h.Test.Features) > 0 {
		colorFaint.Fprintf(w, "Features: %s\n", strings.Join(h.Test.Features, ", "))
	}
	for _, t := range h.Test.Tests {
		if notable(t) {
			printTestLine(w, t)
		}
	}
	printCounts(w, h.Test.Summary)
}

func printTestLine(w io.Writer, t model.TestResult) {
	label, c := testLabel(t)
	c.Fprintf(w, "%-6s", label)
	fmt.Fprintf(w, " %s/%s", t.Suite, t.Name)
	if detail := testDetail(t); detail != "" {
		colorFaint.Fprintf(w, "  (%s)", detail)
	}
	fmt.Fprintln(w)
}

func printCounts(w io.Writer, s model.Summary) {
	fmt.Fprintf(w, "\nTests: %d  ", s.Tests)
	colorPass.Fprintf(w, "passed: %d  ", s.Passed)
	if s.Failed > 0 {
		colorFail.Fprintf(w, "failed: %d  ", s.Failed)
	} else {
		fmt.Fprintf(w, "failed: 0  ")
	}
	colorSkip.Fprintf(w, "skipped: %d  ", s.Skipped)
	fmt.Fprintf(w, "retries: %d  ", s.Retries)
	colorFlaky.Fprintf(w, "flaky: %d", s.Flaky)
	if s.Interrupted {
		colorFail.Fprint(w, "  (interrupted)")
	}
	fmt.Fprintln(w)
}

// printRun lists one physical run with its errors and tags.
func printRun(w io.Writer, i int, r model.RunResult) {
	status := r.Status
	if r.ReportedStatus != r.Status {
		status += " (reported " + r.ReportedStatus + ")"
	}
	fmt.Fprintf(w, "    #%d %s  [%s]\n", i+1, status, r.Duration)
	for _, e := range r.Errors {
		colorFail.Fprintf(w, "       %s: %s\n", e.Type, strings.ReplaceAll(e.Message, "\n", "\n       "))
	}
	for _, k := range slices.Sorted(maps.Keys(r.Tags)) {
		colorFaint.Fprintf(w, "       %s=%s\n", k, r.Tags[k])
	}
}
