package feature

// This file contains the skip side of test impact analysis.

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/settings"
)

type ImpactAnalysis struct {
	Base

	logger        zerolog.Logger
	modules       map[string]map[string]map[string]struct{}
	correlationID string
	skipped       *xsync.Counter
	checkers      *xsync.MapOf[string, UnskippableChecker]
	sessions      sessionSet
}

func NewImpactAnalysis(logger zerolog.Logger, tests settings.SkippableTests) *ImpactAnalysis {
	modules := make(map[string]map[string]map[string]struct{})
	for _, test := range tests.Tests {
		if test.Module == "" {
			continue
		}
		if modules[test.Module] == nil {
			modules[test.Module] = make(map[string]map[string]struct{})
		}
		if modules[test.Module][test.Suite] == nil {
			modules[test.Module][test.Suite] = make(map[string]struct{})
		}
		modules[test.Module][test.Suite][test.Name] = struct{}{}
	}
	return &ImpactAnalysis{
		logger:        logger.With().Str("feature", string(IDImpactAnalysis)).Logger(),
		modules:       modules,
		correlationID: tests.CorrelationID,
		skipped:       xsync.NewCounter(),
		checkers:      xsync.NewMapOf[string, UnskippableChecker](),
		sessions:      newSessionSet(),
	}
}

func (t *ImpactAnalysis) ID() ID { return IDImpactAnalysis }

// SkippedCount is the number of tests skipped so far.
func (t *ImpactAnalysis) SkippedCount() uint { return uint(t.skipped.Value()) }

// Status computes the skip status of a test.
func (t *ImpactAnalysis) Status(meta Meta, test, suite, module string) SkipStatus {
	_, canSkip := t.modules[module][suite][test]
	unskippable := false
	if meta != nil {
		checker, _ := t.checkers.LoadOrCompute(meta.Key(), meta.Checker)
		unskippable = checker != nil && checker.Unskippable(test)
	}
	return SkipStatus{CanBeSkipped: canSkip, MarkedUnskippable: unskippable}
}

func (t *ImpactAnalysis) SuiteWillStart(suite identity.TestSuite, _ uint) {
	t.sessions.add(suite)
}

func (t *ImpactAnalysis) GroupConfiguration(test string, meta Meta, suite identity.TestSuite, cfg Configuration) Configuration {
	status := t.Status(meta, test, suite.Name(), suite.Module().Name())
	if status.MarkedUnskippable {
		suite.SetTag(TagITRUnskippable, true)
	}
	if !status.CanBeSkipped {
		return cfg.Next()
	}
	if status.IsSkipped() {
		return cfg.Skip(t.ID(), SkipReasonImpactAnalysis, status, AllSkipped)
	}
	return cfg.NextWithSkip(status, AtLeastOneSkipped)
}

func (t *ImpactAnalysis) WillStart(run identity.TestRun, info RunInfo) {
	if t.correlationID != "" {
		run.SetTag(TagITRCorrelationID, t.correlationID)
	}
	if info.Skip.MarkedUnskippable {
		run.SetTag(TagITRUnskippable, true)
	}
}

func (t *ImpactAnalysis) GroupRetry(_ identity.TestRun, _ time.Duration, _ identity.Status, info RunInfo, it RetryStatusIterator) RetryStatusIterator {
	// a skipped test is never retried by anyone
	if info.Skip.IsSkipped() {
		return it.RecordErrors(t.ID())
	}
	return it.Next()
}

func (t *ImpactAnalysis) WillFinish(run identity.TestRun, _ time.Duration, status identity.Status, info EndInfo) {
	switch status {
	case identity.StatusPass, identity.StatusFail:
		if info.Skip.IsForcedRun() {
			run.SetTag(TagITRForcedRun, true)
		}
	case identity.StatusSkip:
		if info.SkippedBy == t.ID() && info.Skip.IsSkipped() {
			run.SetTag(TagSkippedByITR, true)
			t.skipped.Inc()
		}
	}
}

func (t *ImpactAnalysis) Stop() {
	count := t.skipped.Value()
	t.sessions.each(func(session identity.TestSession) {
		session.SetTag(TagITRSkippingEnabled, true)
		session.SetTag(TagITRSkippingType, "test")
		session.SetMetric(MetricITRSkippingCount, float64(count))
	})
	t.logger.Debug().Int64("skipped", count).Msg("Test impact analysis stopped")
}
