package feature

// This file contains automatic test retries: failed tests are retried up to
// a per-test limit while a session-wide budget lasts.

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/identity"
)

type AutomaticRetries struct {
	Base

	logger  zerolog.Logger
	perTest uint
	total    uint
	used     *Synced[uint]
	sessions sessionSet
}

func NewAutomaticRetries(logger zerolog.Logger, perTest, total uint) *AutomaticRetries {
	return &AutomaticRetries{
		logger:   logger.With().Str("feature", string(IDAutomaticRetries)).Logger(),
		perTest:  perTest,
		total:    total,
		used:     NewSynced[uint](0),
		sessions: newSessionSet(),
	}
}

func (a *AutomaticRetries) ID() ID { return IDAutomaticRetries }

// RetriesUsed is the number of retries taken from the session budget.
func (a *AutomaticRetries) RetriesUsed() uint { return a.used.Value() }

func (a *AutomaticRetries) SuiteWillStart(suite identity.TestSuite, _ uint) {
	a.sessions.add(suite)
}

func (a *AutomaticRetries) GroupConfiguration(_ string, _ Meta, _ identity.TestSuite, cfg Configuration) Configuration {
	return cfg.Retry(a.ID(), AtLeastOneSucceeded)
}

func (a *AutomaticRetries) WillStart(run identity.TestRun, info RunInfo) {
	if info.RetryReason == a.ID() {
		run.SetTag(TagIsRetry, true)
		run.SetTag(TagRetryReason, RetryReasonAutomatic)
	}
}

func (a *AutomaticRetries) ShouldSuppressError(_ identity.TestRun, info RunInfo) bool {
	return uint(info.Executions) < a.perTest && a.used.Value() < a.total
}

func (a *AutomaticRetries) GroupRetry(run identity.TestRun, _ time.Duration, status identity.Status, info RunInfo, it RetryStatusIterator) RetryStatusIterator {
	if status != identity.StatusFail {
		return it.Next()
	}
	if uint(info.Executions) < a.perTest && !info.Interrupted && a.take() {
		return it.Retry(a.ID(), SuppressedByATR)
	}
	a.logger.Debug().Str("test", run.Name()).Int("executions", info.Executions+1).Msg("No retries left")
	return it.RecordErrors(a.ID())
}

// take claims one retry from the session budget.
func (a *AutomaticRetries) take() bool {
	return a.used.CheckAndUpdate(func(used *uint) bool {
		if *used >= a.total {
			return false
		}
		*used++
		return true
	})
}

func (a *AutomaticRetries) Stop() {
	used := a.used.Value()
	a.sessions.each(func(session identity.TestSession) {
		session.SetMetric(MetricATRRetriesUsed, float64(used))
	})
	a.logger.Debug().Uint("used", a.used.Value()).Uint("total", a.total).Msg("Automatic retries stopped")
}
