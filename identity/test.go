package identity

// This file contains the logical test (Group) and its physical executions
// (Run).

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TestRun is the run capability consumed by the decision engine.
type TestRun interface {
	Tagger
	ID() string
	Name() string
	Suite() TestSuite
	Module() TestModule
	Session() TestSession
	AddError(typ, message, stack string)
	End(status Status, at time.Time)
}

// Error is one error recorded against a run.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Group is one logical test. It owns the ordered runs it produced so far.
type Group struct {
	name  string
	suite *Suite

	mu     sync.Mutex
	runs   []*Run
	status Status
	done   bool
}

func (g *Group) Name() string  { return g.name }
func (g *Group) Suite() *Suite { return g.suite }

// NewRun starts the next physical execution of the group.
func (g *Group) NewRun(start time.Time) *Run {
	r := &Run{
		id:    uuid.NewString(),
		name:  g.name,
		suite: g.suite,
		start: start,
	}
	g.mu.Lock()
	g.runs = append(g.runs, r)
	g.mu.Unlock()
	return r
}

func (g *Group) Runs() []*Run {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Run(nil), g.runs...)
}

// ExecutionCount is the number of runs that already ended.
func (g *Group) ExecutionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.runs {
		if r.Ended() {
			n++
		}
	}
	return n
}

// FailedExecutionCount is the number of ended runs whose physical status is
// fail, suppressed or not.
func (g *Group) FailedExecutionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, r := range g.runs {
		if r.Ended() && r.Status() == StatusFail {
			n++
		}
	}
	return n
}

// Statuses returns the physical status of every ended run in order.
func (g *Group) Statuses() []Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	statuses := make([]Status, 0, len(g.runs))
	for _, r := range g.runs {
		if r.Ended() {
			statuses = append(statuses, r.Status())
		}
	}
	return statuses
}

// Finish records the logical outcome. It reports false when the group was
// already finished.
func (g *Group) Finish(status Status) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	g.status = status
	return true
}

// Status is the logical outcome, empty until Finish.
func (g *Group) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Run is one physical execution of a logical test.
type Run struct {
	Tags

	id    string
	name  string
	suite *Suite
	start time.Time

	mu         sync.Mutex
	end        time.Time
	status     Status
	ended      bool
	suppressed bool
	errors     []Error
}

func (r *Run) ID() string           { return r.id }
func (r *Run) Name() string         { return r.name }
func (r *Run) Suite() TestSuite     { return r.suite }
func (r *Run) Module() TestModule   { return r.suite.module }
func (r *Run) Session() TestSession { return r.suite.module.session }
func (r *Run) Start() time.Time     { return r.start }

func (r *Run) AddError(typ, message, stack string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, Error{Type: typ, Message: message, Stack: stack})
}

func (r *Run) Errors() []Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Error(nil), r.errors...)
}

// End finalizes the run with its physical status. A zero time means now.
func (r *Run) End(status Status, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.end = at
	r.ended = true
}

func (r *Run) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.ended {
		return 0
	}
	return r.end.Sub(r.start)
}

// SetErrorsSuppressed marks the failure of this run as hidden from the
// reported outcome.
func (r *Run) SetErrorsSuppressed(suppressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed = suppressed
}

func (r *Run) ErrorsSuppressed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed
}

// ReportedStatus is the status seen by the outside world: a suppressed
// failure reports as pass.
func (r *Run) ReportedStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.Final(r.suppressed)
}
