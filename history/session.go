package history

import (
	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/model"
)

// Results flattens a finished session into per-test records.
func Results(session *identity.Session) []model.TestResult {
	var out []model.TestResult
	for _, module := range session.Modules() {
		for _, suite := range module.Suites() {
			for _, group := range suite.Groups() {
				result := model.TestResult{
					Module: module.Name(),
					Suite:  suite.Name(),
					Name:   group.Name(),
					Status: group.Status().String(),
				}
				for _, run := range group.Runs() {
					result.Runs = append(result.Runs, runResult(run))
				}
				out = append(out, result)
			}
		}
	}
	return out
}

func runResult(run *identity.Run) model.RunResult {
	r := model.RunResult{
		ID:             run.ID(),
		Status:         run.Status().String(),
		ReportedStatus: run.ReportedStatus().String(),
		Duration:       run.Duration(),
		Tags:           run.TagMap(),
		Metrics:        run.MetricMap(),
	}
	for _, e := range run.Errors() {
		r.Errors = append(r.Errors, model.Error{Type: e.Type, Message: e.Message})
	}
	return r
}
