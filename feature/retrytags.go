package feature

import (
	"time"

	"github.com/perfgo/testgate/identity"
)

// RetryAndSkipTags writes the outcome tags shared by all features. It goes
// last in the set and never takes decisions.
type RetryAndSkipTags struct {
	Base
}

func NewRetryAndSkipTags() *RetryAndSkipTags {
	return &RetryAndSkipTags{}
}

func (*RetryAndSkipTags) ID() ID { return IDRetryAndSkipTags }

func (*RetryAndSkipTags) WillFinish(run identity.TestRun, _ time.Duration, status identity.Status, info EndInfo) {
	if status == identity.StatusSkip && info.SkippedBy != IDNone {
		run.SetTag(TagSkipReason, info.SkipReason)
	}
	if !info.Retry.Retry && info.Executions > 0 &&
		info.FailedExecutions >= info.Executions && status == identity.StatusFail {
		run.SetTag(TagHasFailedAllRetries, true)
	}
	if status == identity.StatusFail && info.Suppressed && info.Retry.IgnoreErrors && info.SuppressionReason != "" {
		run.SetTag(TagFailureSuppression, info.SuppressionReason)
	}
	if info.Final != "" {
		run.SetTag(TagFinalStatus, info.Final)
	}
}
