package feature

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/identity"
)

var (
	nop = zerolog.Nop()
	t0  = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

const (
	testModule = "github.com/acme/pkg"
	testSuite  = "pkg"
)

func newSuite() (*identity.Session, *identity.Suite) {
	session := identity.NewSession("session", t0)
	return session, session.NewModule(testModule).NewSuite(testSuite)
}

func newRun(suite *identity.Suite, test string) *identity.Run {
	return suite.NewGroup(test).NewRun(t0)
}

func tag(r interface{ Tag(string) (string, bool) }, key string) string {
	v, _ := r.Tag(key)
	return v
}

// recorder is a scripted feature used to observe the set's folds.
type recorder struct {
	Base
	id       ID
	cfg      func(Configuration) Configuration
	retry    func(RetryStatusIterator) RetryStatusIterator
	suppress bool
	stops    int
	calls    []string
}

func (r *recorder) ID() ID { return r.id }

func (r *recorder) GroupConfiguration(_ string, _ Meta, _ identity.TestSuite, cfg Configuration) Configuration {
	r.calls = append(r.calls, "configuration")
	if r.cfg == nil {
		return cfg.Next()
	}
	return r.cfg(cfg)
}

func (r *recorder) ShouldSuppressError(identity.TestRun, RunInfo) bool {
	r.calls = append(r.calls, "suppress")
	return r.suppress
}

func (r *recorder) GroupRetry(_ identity.TestRun, _ time.Duration, _ identity.Status, _ RunInfo, it RetryStatusIterator) RetryStatusIterator {
	r.calls = append(r.calls, "retry")
	if r.retry == nil {
		return it.Next()
	}
	return r.retry(it)
}

func (r *recorder) Stop() { r.stops++ }
