package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/perfgo/testgate/identity"
)

const (
	pass = identity.StatusPass
	fail = identity.StatusFail
	skip = identity.StatusSkip
)

func TestSkipStatus(t *testing.T) {
	assert.False(t, NormalRun.IsSkipped())
	assert.False(t, NormalRun.IsForcedRun())
	assert.True(t, SkipStatus{CanBeSkipped: true}.IsSkipped())
	assert.False(t, SkipStatus{CanBeSkipped: true, MarkedUnskippable: true}.IsSkipped())
	assert.True(t, SkipStatus{CanBeSkipped: true, MarkedUnskippable: true}.IsForcedRun())
	assert.False(t, SkipStatus{MarkedUnskippable: true}.IsForcedRun())
}

func TestSuccessStrategy(t *testing.T) {
	tests := []struct {
		name     string
		statuses []identity.Status
		want     map[SuccessStrategy]bool
	}{
		{
			name:     "no runs",
			statuses: nil,
			want: map[SuccessStrategy]bool{
				AlwaysSucceeded: true, AtLeastOneSucceeded: false, AtMostOneFailed: true, AllSucceeded: true,
			},
		},
		{
			name:     "single pass",
			statuses: []identity.Status{pass},
			want: map[SuccessStrategy]bool{
				AlwaysSucceeded: true, AtLeastOneSucceeded: true, AtMostOneFailed: true, AllSucceeded: true,
			},
		},
		{
			name:     "single fail",
			statuses: []identity.Status{fail},
			want: map[SuccessStrategy]bool{
				AlwaysSucceeded: true, AtLeastOneSucceeded: false, AtMostOneFailed: true, AllSucceeded: false,
			},
		},
		{
			name:     "flaky",
			statuses: []identity.Status{fail, fail, pass},
			want: map[SuccessStrategy]bool{
				AlwaysSucceeded: true, AtLeastOneSucceeded: true, AtMostOneFailed: false, AllSucceeded: false,
			},
		},
		{
			name:     "one failure among passes",
			statuses: []identity.Status{pass, fail, pass},
			want: map[SuccessStrategy]bool{
				AlwaysSucceeded: true, AtLeastOneSucceeded: true, AtMostOneFailed: true, AllSucceeded: false,
			},
		},
		{
			name:     "all fail",
			statuses: []identity.Status{fail, fail, fail},
			want: map[SuccessStrategy]bool{
				AlwaysSucceeded: true, AtLeastOneSucceeded: false, AtMostOneFailed: false, AllSucceeded: false,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for strategy, want := range tt.want {
				assert.Equal(t, want, strategy.IsSucceeded(tt.statuses), strategy.String())
			}
		})
	}
}

func TestSkipStrategy(t *testing.T) {
	assert.False(t, AllSkipped.IsSkipped(nil))
	assert.False(t, AtLeastOneSkipped.IsSkipped(nil))
	assert.True(t, AllSkipped.IsSkipped([]identity.Status{skip}))
	assert.False(t, AllSkipped.IsSkipped([]identity.Status{skip, pass}))
	assert.True(t, AtLeastOneSkipped.IsSkipped([]identity.Status{skip, pass}))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, skip, Outcome([]identity.Status{skip}, AllSucceeded, AllSkipped))
	assert.Equal(t, pass, Outcome([]identity.Status{fail, pass}, AtLeastOneSucceeded, AllSkipped))
	assert.Equal(t, fail, Outcome([]identity.Status{fail, pass}, AllSucceeded, AllSkipped))
	assert.Equal(t, pass, Outcome([]identity.Status{fail}, AlwaysSucceeded, AllSkipped))
	assert.Equal(t, skip, Outcome([]identity.Status{fail, skip}, AlwaysSucceeded, AtLeastOneSkipped))
}

func TestConfigurationChain(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := NewConfiguration()
		assert.False(t, c.Done())
		assert.Equal(t, NormalRun, c.SkipStatus())
		assert.Equal(t, AllSkipped, c.SkipStrategy())
		assert.Equal(t, AllSucceeded, c.SuccessStrategy())
		assert.Equal(t, IDNone, c.Owner())
	})

	t.Run("first success strategy wins", func(t *testing.T) {
		c := NewConfiguration().
			NextWithSuccess(AlwaysSucceeded).
			Retry(IDAutomaticRetries, AtLeastOneSucceeded)
		assert.True(t, c.IsRetry())
		assert.Equal(t, AlwaysSucceeded, c.SuccessStrategy())
		assert.Equal(t, IDAutomaticRetries, c.Owner())
	})

	t.Run("first skip strategy wins", func(t *testing.T) {
		forced := SkipStatus{CanBeSkipped: true, MarkedUnskippable: true}
		c := NewConfiguration().
			NextWithSkip(forced, AllSkipped).
			NextWithSkip(NormalRun, AtLeastOneSkipped)
		assert.Equal(t, forced, c.SkipStatus())
		assert.Equal(t, AllSkipped, c.SkipStrategy())
		assert.False(t, c.Done())
	})

	t.Run("skip overrides skip status", func(t *testing.T) {
		status := SkipStatus{CanBeSkipped: true}
		c := NewConfiguration().
			NextWithSkip(NormalRun, AtLeastOneSkipped).
			Skip(IDImpactAnalysis, SkipReasonImpactAnalysis, status, AllSkipped)
		assert.True(t, c.IsSkip())
		assert.Equal(t, status, c.SkipStatus())
		assert.Equal(t, AllSkipped, c.SkipStrategy())
		assert.Equal(t, SkipReasonImpactAnalysis, c.SkipReason())
		assert.Equal(t, IDImpactAnalysis, c.Owner())
	})
}

func TestRetryStatusIterator(t *testing.T) {
	t.Run("nobody stops", func(t *testing.T) {
		it := NewRetryStatusIterator().Next().Next()
		assert.False(t, it.Stopped())
		assert.Equal(t, RetryStatus{}, it.Status())
		assert.Equal(t, IDNone, it.Owner())
	})

	t.Run("ignored errors carry to the end", func(t *testing.T) {
		it := NewRetryStatusIterator().
			NextIgnoringErrors(SuppressedByQuarantine).
			NextIgnoringErrors(SuppressedByDisabled)
		assert.Equal(t, RetryStatus{IgnoreErrors: true}, it.Status())
		assert.Equal(t, SuppressedByQuarantine, it.SuppressionReason())
	})

	t.Run("retry stops and hides the failure", func(t *testing.T) {
		it := NewRetryStatusIterator().
			NextIgnoringErrors(SuppressedByQuarantine).
			Retry(IDAutomaticRetries, SuppressedByATR)
		assert.True(t, it.Stopped())
		assert.Equal(t, RetryStatus{Retry: true, IgnoreErrors: true}, it.Status())
		assert.Equal(t, IDAutomaticRetries, it.Owner())
		assert.Equal(t, SuppressedByATR, it.SuppressionReason())
	})

	t.Run("record errors restores failures", func(t *testing.T) {
		it := NewRetryStatusIterator().RecordErrors(IDAutomaticRetries)
		assert.Equal(t, RetryStatus{}, it.Status())
	})

	t.Run("record errors keeps an earlier ignore", func(t *testing.T) {
		it := NewRetryStatusIterator().
			NextIgnoringErrors(SuppressedByQuarantine).
			RecordErrors(IDAutomaticRetries)
		assert.Equal(t, RetryStatus{IgnoreErrors: true}, it.Status())
		assert.Equal(t, SuppressedByQuarantine, it.SuppressionReason())
	})

	t.Run("pass ends with errors ignored", func(t *testing.T) {
		it := NewRetryStatusIterator().Pass(IDTestManagement, SuppressedByDisabled)
		assert.Equal(t, RetryStatus{IgnoreErrors: true}, it.Status())
		assert.Equal(t, SuppressedByDisabled, it.SuppressionReason())
	})

	t.Run("interrupt ends a retry and restores failures", func(t *testing.T) {
		it := NewRetryStatusIterator().
			Retry(IDTestManagement, SuppressedByAttemptToFix).
			Interrupt()
		assert.Equal(t, RetryStatus{}, it.Status())
		assert.Equal(t, IDTestManagement, it.Owner())
		assert.Empty(t, it.SuppressionReason())
	})

	t.Run("interrupt keeps an earlier ignore", func(t *testing.T) {
		it := NewRetryStatusIterator().
			NextIgnoringErrors(SuppressedByQuarantine).
			Retry(IDAutomaticRetries, SuppressedByATR).
			Interrupt()
		assert.Equal(t, RetryStatus{IgnoreErrors: true}, it.Status())
		assert.Equal(t, SuppressedByQuarantine, it.SuppressionReason())
	})

	t.Run("interrupt leaves an ended chain alone", func(t *testing.T) {
		it := NewRetryStatusIterator().Pass(IDTestManagement, SuppressedByDisabled).Interrupt()
		assert.Equal(t, RetryStatus{IgnoreErrors: true}, it.Status())
		assert.Equal(t, SuppressedByDisabled, it.SuppressionReason())
	})
}
