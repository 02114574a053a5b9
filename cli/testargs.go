package cli

// This file contains argument processing utilities for separating
// build-time and runtime test arguments.

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/perfgo/testgate/cli/go"
)

// validateTestPath resolves path to the import path of exactly one package.
func (a *App) validateTestPath(ctx context.Context, path string) (string, error) {
	packages, err := gocmd.List(ctx, path)
	if err != nil {
		return "", err
	}
	if len(packages) != 1 {
		return "", fmt.Errorf("test path %q resolves to %d packages, expected exactly one", path, len(packages))
	}
	return packages[0], nil
}

// managedFlags are chosen per execution and dropped from the user's
// runtime arguments.
var managedFlags = map[string]bool{
	"-test.run":   true,
	"-test.count": true,
	"-test.v":     true,
	"-test.list":  true,
}

// extractRunFilter removes the flags controlled by the executor from
// transformed runtime args. The -test.run value is returned as the filter
// for test discovery.
func extractRunFilter(args []string) (filter string, rest []string) {
	filter = "."
	rest = make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		if !managedFlags[name] {
			rest = append(rest, arg)
			continue
		}
		if !hasValue && name != "-test.v" && i+1 < len(args) {
			i++
			value = args[i]
			hasValue = true
		}
		if name == "-test.run" && hasValue {
			filter = value
		}
	}
	return filter, rest
}

func (a *App) separateTestArgs(args []string) (buildArgs, runtimeArgs []string) {
	// Build-only flags (used during go test -c)
	buildOnlyFlags := map[string]bool{
		"-tags":       true,
		"-race":       true,
		"-msan":       true,
		"-asan":       true,
		"-cover":      true,
		"-covermode":  true,
		"-coverpkg":   true,
		"-gcflags":    true,
		"-ldflags":    true,
		"-asmflags":   true,
		"-gccgoflags": true,
		"-mod":        true,
		"-modfile":    true,
		"-overlay":    true,
		"-pkgdir":     true,
		"-toolexec":   true,
		"-work":       true,
	}

	buildArgs = []string{}
	runtimeArgs = []string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Skip package paths (they're only for build, not execution)
		if strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") ||
			arg == "..." || strings.Contains(arg, "/...") {
			buildArgs = append(buildArgs, arg)
			continue
		}

		// Check if it's a build-only flag
		if buildOnlyFlags[arg] {
			buildArgs = append(buildArgs, arg)
			// Some flags take a value, include it
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				buildArgs = append(buildArgs, args[i])
			}
			continue
		}

		// Check if it's a build-only flag with = syntax (e.g., -tags=foo)
		flagName := arg
		if idx := strings.Index(arg, "="); idx > 0 {
			flagName = arg[:idx]
		}
		if buildOnlyFlags[flagName] {
			buildArgs = append(buildArgs, arg)
			continue
		}

		// Everything else is a runtime arg
		runtimeArgs = append(runtimeArgs, arg)
	}

	return buildArgs, runtimeArgs
}

func (a *App) transformTestFlags(args []string) []string {
	transformed := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// Skip if already has -test. prefix
		if strings.HasPrefix(arg, "-test.") {
			transformed = append(transformed, arg)
			continue
		}

		// Transform short flags to -test. prefix
		if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") {
			// Handle -flag=value format
			if idx := strings.Index(arg, "="); idx > 0 {
				flagName := arg[1:idx] // Remove leading - and get flag name
				value := arg[idx:]     // Keep =value part
				transformed = append(transformed, fmt.Sprintf("-test.%s%s", flagName, value))
			} else {
				// Handle -flag format (might have separate value)
				flagName := arg[1:] // Remove leading -
				transformed = append(transformed, fmt.Sprintf("-test.%s", flagName))
			}
		} else {
			// Not a flag, keep as-is (could be a flag value)
			transformed = append(transformed, arg)
		}
	}

	return transformed
}
