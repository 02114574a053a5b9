package feature

// This file contains early flake detection: new tests are repeated a number
// of times depending on how long they take, to surface flakiness before it
// lands.

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/settings"
)

type efdCounters struct {
	newTests   uint
	knownTests uint
	faulty     bool
}

type EarlyFlakeDetection struct {
	Base

	logger    zerolog.Logger
	known     *KnownTests
	table     settings.TimeTable
	threshold float64
	counters  *Synced[efdCounters]
	sessions  sessionSet
}

func NewEarlyFlakeDetection(logger zerolog.Logger, known *KnownTests, table settings.TimeTable, faultySessionThreshold float64) *EarlyFlakeDetection {
	return &EarlyFlakeDetection{
		logger:    logger.With().Str("feature", string(IDEarlyFlake)).Logger(),
		known:     known,
		table:     table,
		threshold: faultySessionThreshold,
		counters:  NewSynced(efdCounters{}),
		sessions:  newSessionSet(),
	}
}

func (e *EarlyFlakeDetection) ID() ID { return IDEarlyFlake }

// IsFaulty reports whether too many new tests disabled the feature.
func (e *EarlyFlakeDetection) IsFaulty() bool { return e.counters.Value().faulty }

// Counters returns the number of new tests and discovered tests seen so far.
func (e *EarlyFlakeDetection) Counters() (newTests, knownTests uint) {
	c := e.counters.Value()
	return c.newTests, c.knownTests
}

func (e *EarlyFlakeDetection) SuiteWillStart(suite identity.TestSuite, testsCount uint) {
	e.counters.Update(func(c *efdCounters) {
		c.knownTests += testsCount
	})
	suite.Module().Session().SetTag(TagEarlyFlakeEnabled, true)
	e.sessions.add(suite)
}

func (e *EarlyFlakeDetection) GroupWillStart(test string, suite identity.TestSuite) {
	if !e.known.IsNew(test, suite.Name(), suite.Module().Name()) {
		return
	}
	e.counters.Update(func(c *efdCounters) {
		c.newTests++
	})
}

// checkStatus reports whether test should be repeated. It marks the session
// faulty once the share of new tests crosses the threshold.
func (e *EarlyFlakeDetection) checkStatus(test string, suite identity.TestSuite) bool {
	isNew := e.known.IsNew(test, suite.Name(), suite.Module().Name())
	becameFaulty := false
	ok := e.counters.CheckAndUpdate(func(c *efdCounters) bool {
		if c.faulty {
			return false
		}
		total := max(e.known.Count(), c.knownTests)
		ratio := 100.0
		if total > 0 {
			ratio = float64(c.newTests) / float64(total) * 100
		}
		if float64(c.newTests) > e.threshold && ratio >= e.threshold {
			c.faulty = true
			becameFaulty = true
			return false
		}
		return isNew
	})
	if becameFaulty {
		e.logger.Warn().Float64("threshold", e.threshold).Msg("Too many new tests, disabling early flake detection")
		suite.Module().Session().SetTag(TagEarlyFlakeAbortReason, "faulty")
	}
	return ok
}

func (e *EarlyFlakeDetection) GroupConfiguration(test string, _ Meta, suite identity.TestSuite, cfg Configuration) Configuration {
	if !e.checkStatus(test, suite) {
		return cfg.Next()
	}
	return cfg.Retry(e.ID(), AtLeastOneSucceeded)
}

func (e *EarlyFlakeDetection) WillStart(run identity.TestRun, info RunInfo) {
	if info.RetryReason == e.ID() {
		run.SetTag(TagIsRetry, true)
		run.SetTag(TagRetryReason, RetryReasonEarlyFlake)
	}
}

func (e *EarlyFlakeDetection) ShouldSuppressError(run identity.TestRun, info RunInfo) bool {
	return info.Owner == e.ID() && e.checkStatus(run.Name(), run.Suite())
}

// GroupRetry derives the repeat count from the first run's duration on every
// call.
func (e *EarlyFlakeDetection) GroupRetry(run identity.TestRun, duration time.Duration, status identity.Status, info RunInfo, it RetryStatusIterator) RetryStatusIterator {
	if info.Owner != e.ID() {
		return it.Next()
	}
	first := info.FirstDuration
	if info.Executions == 0 {
		first = duration
	}
	repeats := int(e.table.Repeats(first))
	if info.Executions < repeats-1 {
		return it.Retry(e.ID(), SuppressedByEFD)
	}
	if repeats == 0 {
		run.SetTag(TagEarlyFlakeAbortReason, EarlyFlakeAbortSlow)
	}
	if status == identity.StatusFail && info.FailedExecutions == info.Executions {
		return it.RecordErrors(e.ID())
	}
	return it.Pass(e.ID(), SuppressedByEFD)
}

func (e *EarlyFlakeDetection) Stop() {
	c := e.counters.Value()
	e.sessions.each(func(session identity.TestSession) {
		session.SetMetric(MetricEarlyFlakeNewTests, float64(c.newTests))
		session.SetMetric(MetricEarlyFlakeTestCount, float64(c.knownTests))
	})
	e.logger.Debug().Uint("new", c.newTests).Uint("discovered", c.knownTests).Bool("faulty", c.faulty).Msg("Early flake detection stopped")
}
