package cli

// This file contains test binary building functionality for
// compiling the Go test binary of the package under test.

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"al.essio.dev/pkg/shellescape"

	gocmd "github.com/perfgo/testgate/cli/go"
)

func (a *App) buildTestBinary(ctx context.Context, buildArgs []string) (string, error) {
	binaryName := "testgate.test"
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	binaryPath, err := filepath.Abs(binaryName)
	if err != nil {
		return "", err
	}

	args := []string{"test", "-c", "-o", binaryPath}
	if len(buildArgs) > 0 {
		args = append(args, buildArgs...)
		a.logger.Debug().Strs("extra_args", buildArgs).Msg("Adding extra arguments to go test")
	}

	cmd := gocmd.CommandContext(ctx, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.logger.Debug().
		Str("command", shellescape.QuoteCommand(cmd.Args)).
		Msg("Executing go test -c")

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to build test binary: %w (stderr: %s)", err, stderr.String())
	}

	// go test -c writes nothing for packages without test files
	if _, err := os.Stat(binaryPath); err != nil {
		return "", fmt.Errorf("test binary not found after build, does the package have tests? %w", err)
	}

	return binaryPath, nil
}
