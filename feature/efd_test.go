package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/settings"
)

func newEarlyFlake(t *testing.T, table map[string]uint, threshold float64) *EarlyFlakeDetection {
	t.Helper()
	tt, err := settings.NewTimeTable(table)
	require.NoError(t, err)
	known := NewKnownTests(settings.KnownTests{
		testModule: {testSuite: {"TestKnown", "TestOther", "TestThird"}},
	})
	return NewEarlyFlakeDetection(nop, known, tt, threshold)
}

func TestEarlyFlakeConfiguration(t *testing.T) {
	_, suite := newSuite()
	e := newEarlyFlake(t, map[string]uint{"5s": 10}, 100)

	cfg := e.GroupConfiguration("TestNew", nil, suite, NewConfiguration())
	assert.True(t, cfg.IsRetry())
	assert.Equal(t, IDEarlyFlake, cfg.Owner())
	assert.Equal(t, AtLeastOneSucceeded, cfg.SuccessStrategy())

	cfg = e.GroupConfiguration("TestKnown", nil, suite, NewConfiguration())
	assert.False(t, cfg.Done())
}

func TestEarlyFlakeGroupRetry(t *testing.T) {
	owned := RunInfo{Owner: IDEarlyFlake}
	tests := []struct {
		name      string
		table     map[string]uint
		duration  time.Duration
		info      func(RunInfo) RunInfo
		status    identity.Status
		wantRetry bool
		wantStop  bool
		wantIgn   bool
		wantSlow  bool
	}{
		{
			name:      "first run retries",
			table:     map[string]uint{"5s": 10, "30s": 5},
			duration:  time.Second,
			info:      func(i RunInfo) RunInfo { return i },
			status:    identity.StatusPass,
			wantRetry: true, wantStop: true, wantIgn: true,
		},
		{
			name:     "last repeat passes after a pass",
			table:    map[string]uint{"5s": 10, "30s": 5},
			duration: time.Second,
			info: func(i RunInfo) RunInfo {
				i.Executions, i.FailedExecutions, i.FirstDuration = 9, 5, time.Second
				return i
			},
			status:   identity.StatusPass,
			wantStop: true, wantIgn: true,
		},
		{
			name:     "every run failed",
			table:    map[string]uint{"5s": 3},
			duration: time.Second,
			info: func(i RunInfo) RunInfo {
				i.Executions, i.FailedExecutions, i.FirstDuration = 2, 2, time.Second
				return i
			},
			status:   identity.StatusFail,
			wantStop: true,
		},
		{
			name:     "repeats follow the first duration",
			table:    map[string]uint{"5s": 10, "30s": 2},
			duration: time.Second,
			info: func(i RunInfo) RunInfo {
				i.Executions, i.FirstDuration = 1, 10*time.Second
				return i
			},
			status:   identity.StatusPass,
			wantStop: true, wantIgn: true,
		},
		{
			name:     "too slow to repeat",
			table:    map[string]uint{"5s": 0},
			duration: time.Minute,
			info:     func(i RunInfo) RunInfo { return i },
			status:   identity.StatusPass,
			wantStop: true, wantIgn: true, wantSlow: true,
		},
		{
			name:     "beyond every bucket uses the last",
			table:    map[string]uint{"5s": 10, "30s": 5, "60s": 2, "300s": 1},
			duration: 700 * time.Second,
			info:     func(i RunInfo) RunInfo { return i },
			status:   identity.StatusPass,
			wantStop: true, wantIgn: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, suite := newSuite()
			e := newEarlyFlake(t, tt.table, 100)
			run := newRun(suite, "TestNew")

			it := e.GroupRetry(run, tt.duration, tt.status, tt.info(owned), NewRetryStatusIterator())
			assert.Equal(t, tt.wantStop, it.Stopped())
			assert.Equal(t, tt.wantRetry, it.Status().Retry)
			assert.Equal(t, tt.wantIgn, it.Status().IgnoreErrors)
			if tt.wantIgn {
				assert.Equal(t, SuppressedByEFD, it.SuppressionReason())
			}
			slow, _ := run.Tag(TagEarlyFlakeAbortReason)
			assert.Equal(t, tt.wantSlow, slow == EarlyFlakeAbortSlow)
		})
	}
}

func TestEarlyFlakeIgnoresGroupsItDoesNotOwn(t *testing.T) {
	_, suite := newSuite()
	e := newEarlyFlake(t, map[string]uint{"5s": 10}, 100)
	run := newRun(suite, "TestNew")

	it := e.GroupRetry(run, time.Second, identity.StatusFail, RunInfo{Owner: IDAutomaticRetries}, NewRetryStatusIterator())
	assert.False(t, it.Stopped())
	assert.False(t, e.ShouldSuppressError(run, RunInfo{Owner: IDAutomaticRetries}))
	assert.True(t, e.ShouldSuppressError(run, RunInfo{Owner: IDEarlyFlake}))
}

func TestEarlyFlakeFaultySession(t *testing.T) {
	session, suite := newSuite()
	e := newEarlyFlake(t, map[string]uint{"5s": 10}, 1)

	e.SuiteWillStart(suite, 5)
	assert.Equal(t, "true", tag(session, TagEarlyFlakeEnabled))

	e.GroupWillStart("TestNewA", suite)
	e.GroupWillStart("TestKnown", suite)
	newTests, discovered := e.Counters()
	assert.Equal(t, uint(1), newTests)
	assert.Equal(t, uint(5), discovered)

	// one new test is not above the threshold yet
	assert.True(t, e.GroupConfiguration("TestNewA", nil, suite, NewConfiguration()).IsRetry())
	assert.False(t, e.IsFaulty())

	e.GroupWillStart("TestNewB", suite)
	cfg := e.GroupConfiguration("TestNewB", nil, suite, NewConfiguration())
	assert.False(t, cfg.Done())
	assert.True(t, e.IsFaulty())
	assert.Equal(t, "faulty", tag(session, TagEarlyFlakeAbortReason))

	// once faulty, no new test is repeated anymore
	e.GroupWillStart("TestNewC", suite)
	assert.False(t, e.GroupConfiguration("TestNewC", nil, suite, NewConfiguration()).Done())

	e.Stop()
	newCount, ok := session.Metric(MetricEarlyFlakeNewTests)
	assert.True(t, ok)
	assert.Equal(t, 3.0, newCount)
	discoveredCount, ok := session.Metric(MetricEarlyFlakeTestCount)
	assert.True(t, ok)
	assert.Equal(t, 5.0, discoveredCount)
}

func TestEarlyFlakeWillStart(t *testing.T) {
	_, suite := newSuite()
	e := newEarlyFlake(t, map[string]uint{"5s": 10}, 100)

	run := newRun(suite, "TestNew")
	e.WillStart(run, RunInfo{RetryReason: IDEarlyFlake, Executions: 1})
	assert.Equal(t, "true", tag(run, TagIsRetry))
	assert.Equal(t, RetryReasonEarlyFlake, tag(run, TagRetryReason))
}
