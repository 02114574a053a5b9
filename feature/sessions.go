package feature

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/perfgo/testgate/identity"
)

// sessionSet remembers the sessions a feature saw suites of, so Stop can
// write its session-level tags and metrics.
type sessionSet struct {
	m *xsync.MapOf[string, identity.TestSession]
}

func newSessionSet() sessionSet {
	return sessionSet{m: xsync.NewMapOf[string, identity.TestSession]()}
}

func (s sessionSet) add(suite identity.TestSuite) {
	session := suite.Module().Session()
	s.m.Store(session.ID(), session)
}

func (s sessionSet) each(fn func(identity.TestSession)) {
	s.m.Range(func(_ string, session identity.TestSession) bool {
		fn(session)
		return true
	})
}
