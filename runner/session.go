package runner

// This file contains the session loop driving every discovered test through
// the retry group runner.

import (
	"context"

	"github.com/perfgo/testgate/feature"
	"github.com/perfgo/testgate/identity"
)

// Suite lists the tests of one suite in execution order.
type Suite struct {
	Name  string
	Tests []string
	Meta  feature.Meta
}

// Module groups suites under one module name.
type Module struct {
	Name   string
	Suites []Suite
}

// Summary counts logical outcomes of a session.
type Summary struct {
	Tests   int
	Passed  int
	Failed  int
	Skipped int
	// Retries is the number of physical runs beyond the first of each test.
	Retries int
	// Flaky counts tests that both failed and passed within their group.
	Flaky int
	// Interrupted is set when the context ended during the session. Tests
	// or retries may have been left out.
	Interrupted bool
}

func (s *Summary) add(g *identity.Group) {
	s.Tests++
	switch g.Status() {
	case identity.StatusPass:
		s.Passed++
	case identity.StatusFail:
		s.Failed++
	case identity.StatusSkip:
		s.Skipped++
	}
	statuses := g.Statuses()
	if len(statuses) > 1 {
		s.Retries += len(statuses) - 1
	}
	passed, failed := false, false
	for _, st := range statuses {
		passed = passed || st == identity.StatusPass
		failed = failed || st == identity.StatusFail
	}
	if passed && failed {
		s.Flaky++
	}
}

// RunSession runs every test of modules in order. Cancelling ctx stops the
// loop: the running physical execution completes, its group ends without
// further retries and no other test starts. The feature set is
// stopped before returning.
func (r *Runner) RunSession(ctx context.Context, session *identity.Session, modules []Module) Summary {
	defer r.features.Stop()

	var summary Summary
	for _, mod := range modules {
		module := session.NewModule(mod.Name)
		moduleSkipped := true
		for _, spec := range mod.Suites {
			suite := module.NewSuite(spec.Name)
			r.features.SuiteWillStart(suite, uint(len(spec.Tests)))

			suiteSkipped := true
			for _, test := range spec.Tests {
				if ctx.Err() != nil {
					summary.Interrupted = true
					break
				}
				group := r.RunTest(ctx, suite, test, spec.Meta)
				summary.add(group)
				switch group.Status() {
				case identity.StatusFail:
					suite.SetFailed("test " + test + " failed")
					suiteSkipped = false
				case identity.StatusPass:
					suiteSkipped = false
				}
			}
			if suiteSkipped && len(spec.Tests) > 0 {
				suite.SetSkipped()
			} else {
				moduleSkipped = false
			}
			if suite.Status() == identity.StatusFail {
				module.SetFailed("suite " + spec.Name + " failed")
			}
			if summary.Interrupted {
				break
			}
		}
		if moduleSkipped && len(mod.Suites) > 0 {
			module.SetSkipped()
		}
		if module.Status() == identity.StatusFail {
			session.SetFailed("module " + mod.Name + " failed")
		}
		if summary.Interrupted {
			r.logger.Warn().Msg("Session interrupted, remaining tests were not run")
			break
		}
	}
	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	if summary.Tests > 0 && summary.Skipped == summary.Tests {
		session.SetSkipped()
	}
	return summary
}
