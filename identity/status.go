package identity

// Status is the outcome of one physical run or one logical test.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

func (s Status) String() string {
	return string(s)
}

// Final returns the status reported outward once errors may have been
// ignored: an ignored failure is reported as a pass.
func (s Status) Final(ignoreErrors bool) Status {
	if s == StatusFail && ignoreErrors {
		return StatusPass
	}
	return s
}
