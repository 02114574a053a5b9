package model

import "time"

// TestRun contains the test session specific fields of a history entry.
type TestRun struct {
	// Package path that was tested (e.g., ".", "./pkg/foo")
	PackagePath string `json:"package_path,omitempty"`
	// Import path of the tested package, used as module name
	Module string `json:"module,omitempty"`
	// Features active during the session, in precedence order
	Features []string `json:"features,omitempty"`
	Summary  Summary  `json:"summary"`
	// Session level tags and metrics
	Tags    map[string]string  `json:"tags,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Tests   []TestResult       `json:"tests,omitempty"`
}

// Summary counts the logical outcomes of a session.
type Summary struct {
	Tests       int  `json:"tests"`
	Passed      int  `json:"passed"`
	Failed      int  `json:"failed"`
	Skipped     int  `json:"skipped"`
	Retries     int  `json:"retries"`
	Flaky       int  `json:"flaky"`
	Interrupted bool `json:"interrupted,omitempty"`
}

// TestResult is one logical test and its physical runs.
type TestResult struct {
	Module string      `json:"module"`
	Suite  string      `json:"suite"`
	Name   string      `json:"name"`
	Status string      `json:"status"`
	Runs   []RunResult `json:"runs"`
}

// RunResult is one physical execution.
type RunResult struct {
	ID string `json:"id"`
	// Status is the raw outcome, ReportedStatus the one after suppression.
	Status         string             `json:"status"`
	ReportedStatus string             `json:"reported_status"`
	Duration       time.Duration      `json:"duration"`
	Tags           map[string]string  `json:"tags,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	Errors         []Error            `json:"errors,omitempty"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Retried reports whether the test ran more than once.
func (t TestResult) Retried() bool { return len(t.Runs) > 1 }
