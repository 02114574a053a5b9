package settings

// This file contains the remote configuration types returned by the
// settings service and the registries the features are built from.

import (
	"slices"
)

// Settings is the remote library configuration for one service.
type Settings struct {
	ITREnabled          bool           `json:"itr_enabled"`
	CodeCoverage        bool           `json:"code_coverage"`
	TestsSkipping       bool           `json:"tests_skipping"`
	RequireGit          bool           `json:"require_git"`
	KnownTestsEnabled   bool           `json:"known_tests_enabled"`
	FlakyRetriesEnabled bool           `json:"flaky_test_retries_enabled"`
	EarlyFlakeDetection EarlyFlake     `json:"early_flake_detection"`
	TestManagement      TestManagement `json:"test_management"`
}

type EarlyFlake struct {
	Enabled bool `json:"enabled"`
	// SlowTestRetries maps a duration threshold to a repeat count.
	SlowTestRetries TimeTable `json:"slow_test_retries"`
	// FaultySessionThreshold is the share (in percent) and absolute number of
	// new tests above which early flake detection disables itself.
	FaultySessionThreshold float64 `json:"faulty_session_threshold"`
}

type TestManagement struct {
	Enabled             bool `json:"enabled"`
	AttemptToFixRetries uint `json:"attempt_to_fix_retries"`
}

// EarlyFlakeEnabled reports whether early flake detection may run. It needs
// known tests to tell new tests apart.
func (s Settings) EarlyFlakeEnabled() bool {
	return s.KnownTestsEnabled && s.EarlyFlakeDetection.Enabled
}

// KnownTests is the registry of previously seen tests:
// module -> suite -> test names.
type KnownTests map[string]map[string][]string

// Count is the total number of tests in the registry.
func (k KnownTests) Count() int {
	n := 0
	for _, suites := range k {
		for _, tests := range suites {
			n += len(tests)
		}
	}
	return n
}

// Merge returns the union of both registries with sorted, unique test names.
// Neither input is modified.
func (k KnownTests) Merge(other KnownTests) KnownTests {
	out := make(KnownTests, len(k))
	add := func(src KnownTests) {
		for module, suites := range src {
			if out[module] == nil {
				out[module] = make(map[string][]string, len(suites))
			}
			for suite, tests := range suites {
				out[module][suite] = append(out[module][suite], tests...)
			}
		}
	}
	add(k)
	add(other)
	for _, suites := range out {
		for suite, tests := range suites {
			slices.Sort(tests)
			suites[suite] = slices.Compact(tests)
		}
	}
	return out
}

// TestProperties are the management flags of one test.
type TestProperties struct {
	Disabled     bool `json:"disabled"`
	Quarantined  bool `json:"quarantined"`
	AttemptToFix bool `json:"attempt_to_fix"`
}

type ManagedTest struct {
	Properties TestProperties `json:"properties"`
}

type ManagedSuite struct {
	Tests map[string]ManagedTest `json:"tests"`
}

type ManagedModule struct {
	Suites map[string]ManagedSuite `json:"suites"`
}

// ManagedTests is the test management registry:
// module -> suite -> test -> properties.
type ManagedTests struct {
	Modules map[string]ManagedModule `json:"modules"`
}

// Properties looks up a test. ok is false for unmanaged tests.
func (m ManagedTests) Properties(module, suite, test string) (TestProperties, bool) {
	t, ok := m.Modules[module].Suites[suite].Tests[test]
	return t.Properties, ok
}

// SkippableTest is one test the impact analysis allows to skip.
type SkippableTest struct {
	Module         string            `json:"module"`
	Suite          string            `json:"suite"`
	Name           string            `json:"name"`
	Configurations map[string]string `json:"configurations,omitempty"`
}

type SkippableTests struct {
	CorrelationID string          `json:"correlation_id"`
	Tests         []SkippableTest `json:"tests"`
}
