package feature

// Tag keys written by the features.
const (
	TagIsRetry                = "test.is_retry"
	TagRetryReason            = "test.retry_reason"
	TagIsNew                  = "test.is_new"
	TagHasFailedAllRetries    = "test.has_failed_all_retries"
	TagSkipReason             = "test.skip_reason"
	TagFailureSuppression     = "test.failure_suppression_reason"
	TagFinalStatus            = "test.final_status"
	TagEarlyFlakeEnabled      = "test.early_flake.enabled"
	TagEarlyFlakeAbortReason  = "test.early_flake.abort_reason"
	TagAttemptToFixPassed     = "test.test_management.attempt_to_fix_passed"
	TagIsQuarantined          = "test.test_management.is_quarantined"
	TagIsDisabled             = "test.test_management.is_test_disabled"
	TagIsAttemptToFix         = "test.test_management.is_attempt_to_fix"
	TagTestManagementEnabled  = "test.test_management.enabled"
	TagITRCorrelationID       = "itr_correlation_id"
	TagITRUnskippable         = "test.itr.unskippable"
	TagITRForcedRun           = "test.itr.forced_run"
	TagSkippedByITR           = "test.skipped_by_itr"
	TagITRSkippingEnabled     = "test.itr.tests_skipping.enabled"
	TagITRSkippingType        = "test.itr.tests_skipping.type"
	MetricITRSkippingCount    = "test.itr.tests_skipping.count"
	MetricATRRetriesUsed      = "test.automatic_retries.used"
	MetricEarlyFlakeNewTests  = "test.early_flake.new_tests"
	MetricEarlyFlakeTestCount = "test.early_flake.known_tests"
)

// Retry reasons.
const (
	RetryReasonAutomatic    = "automatic-retry"
	RetryReasonEarlyFlake   = "early-flake-detection"
	RetryReasonAttemptToFix = "attempt-to-fix"
)

// Failure suppression reasons.
const (
	SuppressedByATR          = "atr"
	SuppressedByEFD          = "efd"
	SuppressedByQuarantine   = "quarantine"
	SuppressedByDisabled     = "disabled"
	SuppressedByAttemptToFix = "attempt_to_fix"
)

// EarlyFlakeAbortSlow marks a new test too slow to be repeated.
const EarlyFlakeAbortSlow = "slow"

// SkipReasonImpactAnalysis and SkipReasonDisabled explain synthetic skips.
const (
	SkipReasonImpactAnalysis = "Skipped by Test Impact Analysis"
	SkipReasonDisabled       = "Disabled by Test Management"
)
