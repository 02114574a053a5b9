package feature

// This file contains the ordered feature set and the first-match-wins folds
// over it.

import (
	"sync"
	"time"

	"github.com/perfgo/testgate/identity"
)

// Set is the ordered list of enabled features for one session. Order is
// decided by whoever assembles the set.
type Set struct {
	features []Feature
	stopOnce sync.Once
}

// NewSet keeps the given order and drops nil features.
func NewSet(features ...Feature) *Set {
	s := &Set{}
	for _, f := range features {
		if f != nil {
			s.features = append(s.features, f)
		}
	}
	return s
}

func (s *Set) Features() []Feature {
	return append([]Feature(nil), s.features...)
}

// Get returns the feature with the given id or nil.
func (s *Set) Get(id ID) Feature {
	for _, f := range s.features {
		if f.ID() == id {
			return f
		}
	}
	return nil
}

func (s *Set) IDs() []ID {
	ids := make([]ID, 0, len(s.features))
	for _, f := range s.features {
		ids = append(ids, f.ID())
	}
	return ids
}

func (s *Set) SuiteWillStart(suite identity.TestSuite, testsCount uint) {
	for _, f := range s.features {
		f.SuiteWillStart(suite, testsCount)
	}
}

func (s *Set) GroupWillStart(test string, suite identity.TestSuite) {
	for _, f := range s.features {
		f.GroupWillStart(test, suite)
	}
}

// Configuration folds GroupConfiguration left to right and stops at the
// first feature that skips or retries.
func (s *Set) Configuration(test string, meta Meta, suite identity.TestSuite) Configuration {
	cfg := NewConfiguration()
	for _, f := range s.features {
		cfg = f.GroupConfiguration(test, meta, suite, cfg)
		if cfg.Done() {
			break
		}
	}
	return cfg
}

func (s *Set) WillStart(run identity.TestRun, info RunInfo) {
	for _, f := range s.features {
		f.WillStart(run, info)
	}
}

// ShouldSuppressError returns the first feature asking to hide the failure.
func (s *Set) ShouldSuppressError(run identity.TestRun, info RunInfo) (ID, bool) {
	for _, f := range s.features {
		if f.ShouldSuppressError(run, info) {
			return f.ID(), true
		}
	}
	return IDNone, false
}

// GroupRetry folds GroupRetry left to right and stops at the first feature
// that ends the chain.
func (s *Set) GroupRetry(run identity.TestRun, duration time.Duration, status identity.Status, info RunInfo) RetryStatusIterator {
	it := NewRetryStatusIterator()
	for _, f := range s.features {
		it = f.GroupRetry(run, duration, status, info, it)
		if it.Stopped() {
			break
		}
	}
	return it
}

func (s *Set) WillFinish(run identity.TestRun, duration time.Duration, status identity.Status, info EndInfo) {
	for _, f := range s.features {
		f.WillFinish(run, duration, status, info)
	}
}

// Stop stops every feature once.
func (s *Set) Stop() {
	s.stopOnce.Do(func() {
		for _, f := range s.features {
			f.Stop()
		}
	})
}
