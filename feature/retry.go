package feature

// RetryStatus is the outcome of the retry negotiation after one run.
type RetryStatus struct {
	// Retry runs the test again.
	Retry bool
	// IgnoreErrors keeps a suppressed failure of this run hidden. When false
	// a suppressed failure is restored.
	IgnoreErrors bool
}

// RetryStatusIterator accumulates the features' retry opinions after a run.
// A feature either passes (Next, NextIgnoringErrors) or stops the chain
// (Retry, RecordErrors, Pass); the first stop wins.
type RetryStatusIterator struct {
	stopped      bool
	status       RetryStatus
	owner        ID
	ignoreErrors bool
	ignoreReason string
	reason       string
}

func NewRetryStatusIterator() RetryStatusIterator {
	return RetryStatusIterator{}
}

func (it RetryStatusIterator) Next() RetryStatusIterator {
	return it
}

// NextIgnoringErrors asks to ignore the run's errors without ending the
// chain. The first reason given is kept.
func (it RetryStatusIterator) NextIgnoringErrors(reason string) RetryStatusIterator {
	if !it.ignoreErrors {
		it.ignoreErrors = true
		it.ignoreReason = reason
		it.reason = reason
	}
	return it
}

// Retry stops the chain and runs the test again, keeping the current
// failure hidden under reason.
func (it RetryStatusIterator) Retry(by ID, reason string) RetryStatusIterator {
	it.stopped = true
	it.owner = by
	it.status = RetryStatus{Retry: true, IgnoreErrors: true}
	it.reason = reason
	return it
}

// RecordErrors stops the chain and ends the group. Hidden failures are
// restored unless an earlier feature asked to ignore them.
func (it RetryStatusIterator) RecordErrors(by ID) RetryStatusIterator {
	it.stopped = true
	it.owner = by
	it.status = RetryStatus{IgnoreErrors: it.ignoreErrors}
	return it
}

// Pass stops the chain and ends the group, keeping failures hidden.
func (it RetryStatusIterator) Pass(by ID, reason string) RetryStatusIterator {
	it.stopped = true
	it.owner = by
	it.status = RetryStatus{IgnoreErrors: true}
	if !it.ignoreErrors {
		it.ignoreErrors = true
		it.ignoreReason = reason
		it.reason = reason
	}
	return it
}

// Interrupt turns a retry into the end of the group. The run's failure stays
// hidden only if a feature asked to ignore it before the retry was requested.
func (it RetryStatusIterator) Interrupt() RetryStatusIterator {
	if !it.status.Retry {
		return it
	}
	it.status = RetryStatus{IgnoreErrors: it.ignoreErrors}
	it.reason = it.ignoreReason
	return it
}

func (it RetryStatusIterator) Stopped() bool { return it.stopped }

// Status is the negotiated status. When no feature stopped the chain the
// group ends with the accumulated ignore flag.
func (it RetryStatusIterator) Status() RetryStatus {
	if it.stopped {
		return it.status
	}
	return RetryStatus{IgnoreErrors: it.ignoreErrors}
}

// Owner is the feature that stopped the chain, IDNone if nobody did.
func (it RetryStatusIterator) Owner() ID { return it.owner }

// SuppressionReason explains why the run's failure stays hidden. It is only
// meaningful when Status().IgnoreErrors is true.
func (it RetryStatusIterator) SuppressionReason() string { return it.reason }
