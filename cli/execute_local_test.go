package cli

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/testgate/identity"
)

// exitError produces a real *exec.ExitError with the given exit code.
func exitError(t *testing.T, code string) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+code).Run()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	return err
}

func TestClassify(t *testing.T) {
	failed := exitError(t, "1")

	tests := []struct {
		name       string
		stdout     string
		stderr     string
		err        error
		wantStatus identity.Status
		wantType   string
		wantMsg    string
	}{
		{
			name:       "pass",
			stdout:     "=== RUN   TestA\n--- PASS: TestA (0.00s)\nPASS\n",
			wantStatus: identity.StatusPass,
		},
		{
			name:       "skip",
			stdout:     "=== RUN   TestA\n    a_test.go:5: not today\n--- SKIP: TestA (0.00s)\nPASS\n",
			wantStatus: identity.StatusSkip,
		},
		{
			name:       "subtest skip is not a skip",
			stdout:     "=== RUN   TestA\n--- SKIP: TestA/sub (0.00s)\n--- PASS: TestA (0.00s)\n",
			wantStatus: identity.StatusPass,
		},
		{
			name:       "assertion",
			stdout:     "=== RUN   TestA\n    a_test.go:12: want 1, got 2\n    a_test.go:13: again\n--- FAIL: TestA (0.00s)\nFAIL\n",
			err:        failed,
			wantStatus: identity.StatusFail,
			wantType:   errorTypeAssertion,
			wantMsg:    "a_test.go:12: want 1, got 2\na_test.go:13: again",
		},
		{
			name:       "panic",
			stdout:     "=== RUN   TestA\n--- FAIL: TestA (0.00s)\n",
			stderr:     "panic: runtime error: index out of range\n\ngoroutine 7 [running]:\n",
			err:        failed,
			wantStatus: identity.StatusFail,
			wantType:   errorTypePanic,
			wantMsg:    "runtime error: index out of range",
		},
		{
			name:       "exit without output",
			err:        failed,
			wantStatus: identity.StatusFail,
			wantType:   errorTypeExit,
			wantMsg:    "test binary exited with code 1",
		},
		{
			name:       "exec failure",
			err:        errors.New("fork/exec ./x: permission denied"),
			wantStatus: identity.StatusFail,
			wantType:   errorTypeExec,
			wantMsg:    "fork/exec ./x: permission denied",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := classify("TestA", tt.stdout, tt.stderr, time.Second, tt.err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, time.Second, res.Duration)
			if tt.wantType == "" {
				assert.Empty(t, res.Errors)
				return
			}
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tt.wantType, res.Errors[0].Type)
			assert.Equal(t, tt.wantMsg, res.Errors[0].Message)
		})
	}
}

func TestParseTestList(t *testing.T) {
	out := "TestA\nBenchmarkB\nExampleC\nFuzzD\n\nTestA\nok  \tgithub.com/acme/pkg\t0.01s\n"
	assert.Equal(t, []string{"TestA", "ExampleC", "FuzzD"}, parseTestList(out))
}
