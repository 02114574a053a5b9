package feature

// This file contains test management: disabled tests are skipped,
// quarantined tests run without failing the session and attempt-to-fix tests
// are retried to confirm a fix.

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/settings"
)

type TestManagement struct {
	Base

	logger              zerolog.Logger
	tests               settings.ManagedTests
	attemptToFixRetries uint
}

func NewTestManagement(logger zerolog.Logger, tests settings.ManagedTests, attemptToFixRetries uint) *TestManagement {
	return &TestManagement{
		logger:              logger.With().Str("feature", string(IDTestManagement)).Logger(),
		tests:               tests,
		attemptToFixRetries: attemptToFixRetries,
	}
}

func (t *TestManagement) ID() ID { return IDTestManagement }

// AttemptToFixRetries is the number of runs an attempt-to-fix test gets.
func (t *TestManagement) AttemptToFixRetries() uint { return t.attemptToFixRetries }

func (t *TestManagement) properties(test string, suite identity.TestSuite) (settings.TestProperties, bool) {
	return t.tests.Properties(suite.Module().Name(), suite.Name(), test)
}

func (t *TestManagement) SuiteWillStart(suite identity.TestSuite, _ uint) {
	suite.Module().Session().SetTag(TagTestManagementEnabled, true)
}

func (t *TestManagement) GroupConfiguration(test string, _ Meta, suite identity.TestSuite, cfg Configuration) Configuration {
	p, ok := t.properties(test, suite)
	if !ok {
		return cfg.Next()
	}
	switch {
	case p.AttemptToFix:
		// a fix attempt must not fail the build for tests that could not
		// fail it before
		if p.Disabled || p.Quarantined {
			return cfg.Retry(t.ID(), AlwaysSucceeded)
		}
		return cfg.Retry(t.ID(), AllSucceeded)
	case p.Disabled:
		return cfg.Skip(t.ID(), SkipReasonDisabled, SkipStatus{CanBeSkipped: true}, AllSkipped)
	case p.Quarantined:
		return cfg.NextWithSuccess(AlwaysSucceeded)
	default:
		return cfg.Next()
	}
}

func (t *TestManagement) WillStart(run identity.TestRun, info RunInfo) {
	p, ok := t.properties(run.Name(), run.Suite())
	if !ok {
		return
	}
	if p.Quarantined {
		run.SetTag(TagIsQuarantined, true)
	}
	if p.Disabled {
		run.SetTag(TagIsDisabled, true)
	}
	if p.AttemptToFix {
		run.SetTag(TagIsAttemptToFix, true)
	}
	if info.RetryReason == t.ID() {
		run.SetTag(TagIsRetry, true)
		run.SetTag(TagRetryReason, RetryReasonAttemptToFix)
	}
}

func (t *TestManagement) ShouldSuppressError(run identity.TestRun, info RunInfo) bool {
	p, ok := t.properties(run.Name(), run.Suite())
	if !ok {
		return false
	}
	if p.Disabled || p.Quarantined {
		return true
	}
	return p.AttemptToFix && info.Executions < int(t.attemptToFixRetries)-1
}

func (t *TestManagement) GroupRetry(run identity.TestRun, _ time.Duration, _ identity.Status, info RunInfo, it RetryStatusIterator) RetryStatusIterator {
	p, ok := t.properties(run.Name(), run.Suite())
	if !ok {
		return it.Next()
	}
	if p.AttemptToFix && info.Owner == t.ID() {
		reason := suppressionReason(p)
		if info.Executions < int(t.attemptToFixRetries)-1 {
			return it.Retry(t.ID(), reason)
		}
		if p.Disabled || p.Quarantined {
			return it.Pass(t.ID(), reason)
		}
		return it.RecordErrors(t.ID())
	}
	switch {
	case p.Disabled:
		return it.Pass(t.ID(), SuppressedByDisabled)
	case p.Quarantined:
		// later features may still retry a quarantined test
		return it.NextIgnoringErrors(SuppressedByQuarantine)
	default:
		return it.Next()
	}
}

func (t *TestManagement) WillFinish(run identity.TestRun, _ time.Duration, status identity.Status, info EndInfo) {
	p, ok := t.properties(run.Name(), run.Suite())
	if !ok || !p.AttemptToFix || info.Retry.Retry {
		return
	}
	passed := info.FailedExecutions == 0 && status != identity.StatusFail
	run.SetTag(TagAttemptToFixPassed, passed)
	if info.Executions > 0 && info.FailedExecutions == info.Executions && status == identity.StatusFail {
		run.SetTag(TagHasFailedAllRetries, true)
	}
	t.logger.Debug().Str("test", run.Name()).Bool("passed", passed).Msg("Attempt to fix finished")
}

func suppressionReason(p settings.TestProperties) string {
	switch {
	case p.Disabled:
		return SuppressedByDisabled
	case p.Quarantined:
		return SuppressedByQuarantine
	default:
		return SuppressedByAttemptToFix
	}
}
