package feature

// This file contains the Feature contract every test policy implements and
// the no-op Base implementation policies embed.

import (
	"time"

	"github.com/perfgo/testgate/identity"
)

// UnskippableChecker reports tests that must run even when skippable.
type UnskippableChecker interface {
	Unskippable(test string) bool
}

// Meta gives access to the static markers of a suite's tests. Key identifies
// the suite so checkers can be cached.
type Meta interface {
	Key() string
	Checker() UnskippableChecker
}

// RunInfo describes the group around one run. Execution counts never
// include the current run.
type RunInfo struct {
	// RetryReason is the feature whose retry produced this run, IDNone for
	// the first run of a group.
	RetryReason ID
	Skip        SkipStatus
	SkippedBy   ID
	SkipReason  string
	// Owner is the feature that stopped the configuration chain.
	Owner            ID
	Executions       int
	FailedExecutions int
	// FirstDuration is the measured duration of the group's first run, zero
	// while that run is still executing.
	FirstDuration time.Duration
	// Interrupted is set once the session was cancelled during this run. No
	// retry follows an interrupted run.
	Interrupted bool
}

// EndInfo is RunInfo plus the retry decision taken for the run.
type EndInfo struct {
	RunInfo
	Retry             RetryStatus
	RetriedBy         ID
	SuppressionReason string
	// Suppressed is set when ShouldSuppressError hid the run's failure.
	Suppressed bool
	// Final is the logical outcome of the group, set on its last run only.
	Final identity.Status
}

// Feature is one test policy. All hooks are called sequentially by the
// runner; shared state touched from elsewhere must be synchronized.
type Feature interface {
	ID() ID
	// SuiteWillStart is called once per suite before its first test.
	SuiteWillStart(suite identity.TestSuite, testsCount uint)
	// GroupWillStart is called once per logical test.
	GroupWillStart(test string, suite identity.TestSuite)
	// GroupConfiguration must return cfg.Next* to pass or cfg.Skip/cfg.Retry
	// to stop the chain.
	GroupConfiguration(test string, meta Meta, suite identity.TestSuite, cfg Configuration) Configuration
	WillStart(run identity.TestRun, info RunInfo)
	// ShouldSuppressError is called on a failed run; the first true wins.
	ShouldSuppressError(run identity.TestRun, info RunInfo) bool
	GroupRetry(run identity.TestRun, duration time.Duration, status identity.Status, info RunInfo, it RetryStatusIterator) RetryStatusIterator
	// WillFinish is called once the retry decision is known, before the run
	// is ended.
	WillFinish(run identity.TestRun, duration time.Duration, status identity.Status, info EndInfo)
	// Stop must be safe to call more than once.
	Stop()
}

// Base implements every Feature hook as a no-op.
type Base struct{}

func (Base) SuiteWillStart(identity.TestSuite, uint) {}

func (Base) GroupWillStart(string, identity.TestSuite) {}

func (Base) GroupConfiguration(_ string, _ Meta, _ identity.TestSuite, cfg Configuration) Configuration {
	return cfg.Next()
}

func (Base) WillStart(identity.TestRun, RunInfo) {}

func (Base) ShouldSuppressError(identity.TestRun, RunInfo) bool { return false }

func (Base) GroupRetry(_ identity.TestRun, _ time.Duration, _ identity.Status, _ RunInfo, it RetryStatusIterator) RetryStatusIterator {
	return it.Next()
}

func (Base) WillFinish(identity.TestRun, time.Duration, identity.Status, EndInfo) {}

func (Base) Stop() {}
