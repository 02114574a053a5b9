package cli

// This file contains local test execution: every physical run of a test is
// one invocation of the test binary restricted to that test.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/runner"
)

const (
	errorTypeAssertion = "testing.T"
	errorTypePanic     = "panic"
	errorTypeExit      = "exit"
	errorTypeExec      = "exec"
)

// failureLine matches the file:line prefix testing.T puts on logged errors.
var failureLine = regexp.MustCompile(`^\s+\S+\.go:\d+:`)

type localExecutor struct {
	logger zerolog.Logger
	binary string
	dir    string
	args   []string
	stream io.Writer

	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

var _ runner.Executor = (*localExecutor)(nil)

// Execute runs one test once and waits for the process. Interruption is
// handled by the runner, which stops asking for new executions.
func (e *localExecutor) Execute(run *identity.Run) runner.Result {
	args := append([]string{
		"-test.run", "^" + regexp.QuoteMeta(run.Name()) + "$",
		"-test.count", "1",
		"-test.v",
	}, e.args...)

	cmd := exec.Command(e.binary, args...)
	cmd.Dir = e.dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	if e.stream != nil {
		cmd.Stdout = io.MultiWriter(e.stream, &stdoutBuf)
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderrBuf)
	}

	e.logger.Debug().
		Str("test", run.Name()).
		Str("command", shellescape.QuoteCommand(cmd.Args)).
		Msg("Executing test")

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	e.capture(run, stdoutBuf.Bytes(), stderrBuf.Bytes())
	return classify(run.Name(), stdoutBuf.String(), stderrBuf.String(), duration, err)
}

func (e *localExecutor) capture(run *identity.Run, stdout, stderr []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(&e.stdout, "### %s (run %s)\n", run.Name(), run.ID())
	e.stdout.Write(stdout)
	if len(stderr) > 0 {
		fmt.Fprintf(&e.stderr, "### %s (run %s)\n", run.Name(), run.ID())
		e.stderr.Write(stderr)
	}
}

// Output returns everything the executions wrote so far.
func (e *localExecutor) Output() (stdout, stderr string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stdout.String(), e.stderr.String()
}

// classify turns the verbose output and exit state of one execution into a
// result.
func classify(test, stdout, stderr string, duration time.Duration, err error) runner.Result {
	res := runner.Result{Duration: duration}

	if err == nil {
		res.Status = identity.StatusPass
		if strings.Contains(stdout, "--- SKIP: "+test+" ") {
			res.Status = identity.StatusSkip
		}
		return res
	}

	res.Status = identity.StatusFail
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		res.Errors = []identity.Error{{Type: errorTypeExec, Message: err.Error()}}
		return res
	}

	// the runtime writes panics to stderr
	if i := strings.Index(stderr, "panic: "); i >= 0 {
		msg, stack, _ := strings.Cut(stderr[i:], "\n")
		res.Errors = []identity.Error{{Type: errorTypePanic, Message: strings.TrimPrefix(msg, "panic: "), Stack: stack}}
		return res
	}

	var messages []string
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		if line := scanner.Text(); failureLine.MatchString(line) {
			messages = append(messages, strings.TrimSpace(line))
		}
	}
	if len(messages) > 0 {
		res.Errors = []identity.Error{{Type: errorTypeAssertion, Message: strings.Join(messages, "\n")}}
		return res
	}

	msg := fmt.Sprintf("test binary exited with code %d", exitErr.ExitCode())
	if s := strings.TrimSpace(stderr); s != "" {
		msg += ": " + s
	}
	res.Errors = []identity.Error{{Type: errorTypeExit, Message: msg}}
	return res
}
