package runner

// This file contains the retry group runner: the loop that executes one
// logical test as many times as the features negotiate and folds the
// physical runs into one outcome.

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/feature"
	"github.com/perfgo/testgate/identity"
)

// MetricTestIndex is the session-wide index of a physical run.
const MetricTestIndex = "test.index"

// Result is the outcome of one physical execution.
type Result struct {
	Status   identity.Status
	Duration time.Duration
	Errors   []identity.Error
}

// Executor runs one physical execution of a test. A started execution is
// never interrupted; the runner stops asking for new ones instead.
type Executor interface {
	Execute(run *identity.Run) Result
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(run *identity.Run) Result

func (f ExecutorFunc) Execute(run *identity.Run) Result { return f(run) }

type Runner struct {
	logger   zerolog.Logger
	features *feature.Set
	executor Executor
	now      func() time.Time
}

func New(logger zerolog.Logger, features *feature.Set, executor Executor) *Runner {
	return &Runner{
		logger:   logger,
		features: features,
		executor: executor,
		now:      time.Now,
	}
}

type state uint8

const (
	stateIdle state = iota
	stateRunning
	stateRetrying
	stateFinished
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateRetrying:
		return "retrying"
	case stateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// machine drives a single retry group. It is used once.
type machine struct {
	*Runner

	ctx   context.Context
	group *identity.Group
	cfg   feature.Configuration
	state state
}

// transition moves the machine forward. An unexpected current state means
// the runner itself is broken, so it panics.
func (m *machine) transition(from, to state) {
	if m.state != from {
		panic(goerrors.Errorf("retry group %q: invalid transition %s -> %s from state %s", m.group.Name(), from, to, m.state))
	}
	m.state = to
}

// RunTest executes one logical test of suite and returns its finished group.
// The first run always executes. Once ctx is done no retry is started and the
// group ends with the runs that did execute.
func (r *Runner) RunTest(ctx context.Context, suite *identity.Suite, test string, meta feature.Meta) *identity.Group {
	r.features.GroupWillStart(test, suite)
	cfg := r.features.Configuration(test, meta, suite)
	m := &machine{
		Runner: r,
		ctx:    ctx,
		group:  suite.NewGroup(test),
		cfg:    cfg,
	}
	m.run()
	return m.group
}

func (m *machine) run() {
	m.transition(stateIdle, stateRunning)

	skipStatus := m.cfg.SkipStatus()
	skippedBy := feature.IDNone
	if m.cfg.IsSkip() {
		skippedBy = m.cfg.Owner()
	}
	retryReason := feature.IDNone
	var firstDuration time.Duration

	for {
		info := feature.RunInfo{
			RetryReason:      retryReason,
			Skip:             skipStatus,
			SkippedBy:        skippedBy,
			SkipReason:       m.cfg.SkipReason(),
			Owner:            m.cfg.Owner(),
			Executions:       m.group.ExecutionCount(),
			FailedExecutions: m.group.FailedExecutionCount(),
			FirstDuration:    firstDuration,
		}

		run := m.group.NewRun(m.now())
		run.SetMetric(MetricTestIndex, float64(run.Session().NextTestIndex()))
		m.features.WillStart(run, info)

		var res Result
		if skipStatus.IsSkipped() {
			res = Result{Status: identity.StatusSkip}
		} else {
			res = m.executor.Execute(run)
		}
		for _, e := range res.Errors {
			run.AddError(e.Type, e.Message, e.Stack)
		}
		info.Interrupted = m.ctx.Err() != nil

		suppressed := false
		if res.Status == identity.StatusFail {
			_, suppressed = m.features.ShouldSuppressError(run, info)
		}

		it := m.features.GroupRetry(run, res.Duration, res.Status, info)
		if info.Interrupted && it.Status().Retry {
			m.logger.Warn().
				Str("test", m.group.Name()).
				Int("executions", info.Executions+1).
				Msg("Session interrupted, remaining retries were not run")
			it = it.Interrupt()
		}
		status := it.Status()
		run.SetErrorsSuppressed(suppressed && status.IgnoreErrors)

		end := feature.EndInfo{
			RunInfo:           info,
			Retry:             status,
			RetriedBy:         it.Owner(),
			SuppressionReason: it.SuppressionReason(),
			Suppressed:        suppressed,
		}
		if !status.Retry {
			statuses := append(m.group.Statuses(), res.Status)
			end.Final = feature.Outcome(statuses, m.cfg.SuccessStrategy(), m.cfg.SkipStrategy())
		}

		m.features.WillFinish(run, res.Duration, res.Status, end)
		run.End(res.Status, run.Start().Add(res.Duration))
		if info.Executions == 0 {
			firstDuration = res.Duration
		}

		m.logger.Debug().
			Str("test", m.group.Name()).
			Int("execution", info.Executions+1).
			Str("status", res.Status.String()).
			Bool("retry", status.Retry).
			Str("by", string(it.Owner())).
			Msg("Run finished")

		if status.Retry {
			m.transition(stateRunning, stateRetrying)
			retryReason = it.Owner()
			m.transition(stateRetrying, stateRunning)
			continue
		}

		m.transition(stateRunning, stateFinished)
		if !m.group.Finish(end.Final) {
			panic(goerrors.Errorf("retry group %q finished twice", m.group.Name()))
		}
		return
	}
}
