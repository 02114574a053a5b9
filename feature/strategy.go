package feature

// This file contains the strategy algebra used to negotiate how the
// physical runs of one logical test fold into a single outcome.

import "github.com/perfgo/testgate/identity"

// SkipStatus describes whether a logical test may be skipped.
type SkipStatus struct {
	CanBeSkipped      bool
	MarkedUnskippable bool
}

// NormalRun is the skip status of a test nobody wants to skip.
var NormalRun = SkipStatus{}

// IsSkipped reports whether the test is skipped.
func (s SkipStatus) IsSkipped() bool {
	return s.CanBeSkipped && !s.MarkedUnskippable
}

// IsForcedRun reports whether a skippable test runs because it is marked
// unskippable.
func (s SkipStatus) IsForcedRun() bool {
	return s.CanBeSkipped && s.MarkedUnskippable
}

// SuccessStrategy decides if a group of runs succeeded. Values are ordered
// from softest to strongest.
type SuccessStrategy uint8

const (
	AlwaysSucceeded SuccessStrategy = iota
	AtLeastOneSucceeded
	AtMostOneFailed
	AllSucceeded
)

func (s SuccessStrategy) String() string {
	switch s {
	case AlwaysSucceeded:
		return "always-succeeded"
	case AtLeastOneSucceeded:
		return "at-least-one-succeeded"
	case AtMostOneFailed:
		return "at-most-one-failed"
	case AllSucceeded:
		return "all-succeeded"
	default:
		return "unknown"
	}
}

// IsSucceeded folds the physical statuses of a group.
func (s SuccessStrategy) IsSucceeded(statuses []identity.Status) bool {
	passed, failed := 0, 0
	for _, st := range statuses {
		switch st {
		case identity.StatusPass:
			passed++
		case identity.StatusFail:
			failed++
		}
	}
	switch s {
	case AlwaysSucceeded:
		return true
	case AtLeastOneSucceeded:
		return passed > 0
	case AtMostOneFailed:
		return failed <= 1
	default:
		return passed == len(statuses)
	}
}

// SkipStrategy decides if a group of runs counts as skipped.
type SkipStrategy uint8

const (
	AtLeastOneSkipped SkipStrategy = iota
	AllSkipped
)

func (s SkipStrategy) String() string {
	if s == AtLeastOneSkipped {
		return "at-least-one-skipped"
	}
	return "all-skipped"
}

func (s SkipStrategy) IsSkipped(statuses []identity.Status) bool {
	skipped := 0
	for _, st := range statuses {
		if st == identity.StatusSkip {
			skipped++
		}
	}
	if s == AtLeastOneSkipped {
		return skipped > 0
	}
	return len(statuses) > 0 && skipped == len(statuses)
}

// Outcome folds statuses into the logical status of a group: skip wins over
// the success strategy.
func Outcome(statuses []identity.Status, success SuccessStrategy, skip SkipStrategy) identity.Status {
	switch {
	case skip.IsSkipped(statuses):
		return identity.StatusSkip
	case success.IsSucceeded(statuses):
		return identity.StatusPass
	default:
		return identity.StatusFail
	}
}
