package identity

// This file contains the session, module and suite levels of the test
// hierarchy.

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TestSession is the session capability consumed by the decision engine.
type TestSession interface {
	Tagger
	ID() string
	Name() string
	SetFailed(reason string)
	SetSkipped()
	NextTestIndex() uint64
}

// TestModule is the module capability consumed by the decision engine.
type TestModule interface {
	Tagger
	ID() string
	Name() string
	Session() TestSession
	SetFailed(reason string)
	SetSkipped()
}

// TestSuite is the suite capability consumed by the decision engine.
type TestSuite interface {
	Tagger
	ID() string
	Name() string
	Module() TestModule
	SetFailed(reason string)
	SetSkipped()
}

// outcome tracks the failed/skipped state of a container level.
type outcome struct {
	mu         sync.Mutex
	failed     bool
	failReason string
	skipped    bool
}

func (o *outcome) SetFailed(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.failed {
		o.failReason = reason
	}
	o.failed = true
}

func (o *outcome) SetSkipped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = true
}

// Status is fail once SetFailed was called, skip if only SetSkipped was, and
// pass otherwise.
func (o *outcome) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.failed:
		return StatusFail
	case o.skipped:
		return StatusSkip
	default:
		return StatusPass
	}
}

func (o *outcome) FailReason() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failReason
}

type Session struct {
	Tags
	outcome

	id        string
	name      string
	start     time.Time
	end       time.Time
	testIndex atomic.Uint64

	mu      sync.Mutex
	modules []*Module
}

func NewSession(name string, start time.Time) *Session {
	return &Session{
		id:    uuid.NewString(),
		name:  name,
		start: start,
	}
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Name() string { return s.name }

// NextTestIndex returns a session-unique, monotonically increasing index
// starting at 1.
func (s *Session) NextTestIndex() uint64 {
	return s.testIndex.Add(1)
}

func (s *Session) NewModule(name string) *Module {
	m := &Module{
		id:      uuid.NewString(),
		name:    name,
		session: s,
	}
	s.mu.Lock()
	s.modules = append(s.modules, m)
	s.mu.Unlock()
	return m
}

func (s *Session) Modules() []*Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Module(nil), s.modules...)
}

func (s *Session) End(at time.Time) { s.end = at }

func (s *Session) Duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

type Module struct {
	Tags
	outcome

	id      string
	name    string
	session *Session

	mu     sync.Mutex
	suites []*Suite
}

func (m *Module) ID() string           { return m.id }
func (m *Module) Name() string         { return m.name }
func (m *Module) Session() TestSession { return m.session }

func (m *Module) NewSuite(name string) *Suite {
	s := &Suite{
		id:     uuid.NewString(),
		name:   name,
		module: m,
	}
	m.mu.Lock()
	m.suites = append(m.suites, s)
	m.mu.Unlock()
	return s
}

func (m *Module) Suites() []*Suite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Suite(nil), m.suites...)
}

type Suite struct {
	Tags
	outcome

	id     string
	name   string
	module *Module

	mu     sync.Mutex
	groups []*Group
}

func (s *Suite) ID() string         { return s.id }
func (s *Suite) Name() string       { return s.name }
func (s *Suite) Module() TestModule { return s.module }

// NewGroup opens the retry group for one logical test of the suite.
func (s *Suite) NewGroup(name string) *Group {
	g := &Group{
		name:  name,
		suite: s,
	}
	s.mu.Lock()
	s.groups = append(s.groups, g)
	s.mu.Unlock()
	return g
}

func (s *Suite) Groups() []*Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Group(nil), s.groups...)
}
