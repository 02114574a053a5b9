package feature

// ID identifies a feature. Retry reasons and skip owners are expressed as IDs.
type ID string

const (
	IDNone             ID = ""
	IDTestManagement   ID = "test-management"
	IDImpactAnalysis   ID = "test-impact-analysis"
	IDEarlyFlake       ID = "early-flake-detection"
	IDAutomaticRetries ID = "automatic-retry"
	IDKnownTests       ID = "known-tests"
	IDRetryAndSkipTags ID = "retry-and-skip-tags"
)

type decision uint8

const (
	decisionNext decision = iota
	decisionSkip
	decisionRetry
)

// Configuration is the pre-run negotiation state of a retry group. It is
// threaded through every feature's GroupConfiguration in order; the chain
// stops at the first feature that calls Skip or Retry.
//
// The first feature to set a strategy owns it: later features cannot
// override a strategy an earlier one chose.
type Configuration struct {
	skipStatus      SkipStatus
	skipStrategy    SkipStrategy
	successStrategy SuccessStrategy
	skipReason      string
	owner           ID

	decision   decision
	skipSet    bool
	successSet bool
}

// NewConfiguration returns the defaults used when no feature has an opinion:
// a normal run, AllSkipped and AllSucceeded.
func NewConfiguration() Configuration {
	return Configuration{
		skipStatus:      NormalRun,
		skipStrategy:    AllSkipped,
		successStrategy: AllSucceeded,
	}
}

// Next passes the configuration on unchanged.
func (c Configuration) Next() Configuration {
	return c
}

// NextWithSkip records skip information and passes the configuration on.
func (c Configuration) NextWithSkip(status SkipStatus, strategy SkipStrategy) Configuration {
	if !c.skipSet {
		c.skipStatus = status
		c.skipStrategy = strategy
		c.skipSet = true
	}
	return c
}

// NextWithSuccess records a success strategy and passes the configuration on.
func (c Configuration) NextWithSuccess(strategy SuccessStrategy) Configuration {
	if !c.successSet {
		c.successStrategy = strategy
		c.successSet = true
	}
	return c
}

// Skip stops the chain: the group runs once as a synthetic skipped run.
func (c Configuration) Skip(by ID, reason string, status SkipStatus, strategy SkipStrategy) Configuration {
	c.skipStatus = status
	c.skipStrategy = strategy
	c.skipSet = true
	c.skipReason = reason
	c.owner = by
	c.decision = decisionSkip
	return c
}

// Retry stops the chain: the group may run more than once and by owns the
// retry decisions.
func (c Configuration) Retry(by ID, success SuccessStrategy) Configuration {
	c = c.NextWithSuccess(success)
	c.owner = by
	c.decision = decisionRetry
	return c
}

// Done reports whether a feature stopped the chain.
func (c Configuration) Done() bool { return c.decision != decisionNext }

func (c Configuration) IsSkip() bool                     { return c.decision == decisionSkip }
func (c Configuration) IsRetry() bool                    { return c.decision == decisionRetry }
func (c Configuration) SkipStatus() SkipStatus           { return c.skipStatus }
func (c Configuration) SkipStrategy() SkipStrategy       { return c.skipStrategy }
func (c Configuration) SuccessStrategy() SuccessStrategy { return c.successStrategy }
func (c Configuration) SkipReason() string               { return c.skipReason }

// Owner is the feature that stopped the chain, IDNone if nobody did.
func (c Configuration) Owner() ID { return c.owner }
