package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "testgate"

const envPrefix = "TESTGATE_"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func env(name string) []string { return []string{envPrefix + name} }

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run Go tests with retries, flake detection, test management and test skipping",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "verbose",
					Usage:   "Enable verbose (debug) logging",
					EnvVars: env("VERBOSE"),
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "Configuration file (default: .testgate.yaml at the repository root)",
					EnvVars: env("CONFIG"),
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "test",
		Usage:     "Run the tests of one package through the test policies",
		ArgsUsage: "PACKAGE [-- go test flags]",
		Action:    app.runTest,
		Flags:     testFlags(),
		Description: `Build the test binary of PACKAGE and run every test in its own
process. Each test is retried, repeated, skipped or has its failure
suppressed according to the active features.

Examples:
  testgate test ./pkg/foo
  testgate test --test-retries-per-test 3 ./pkg/foo -- -race -run 'TestParse'`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous test sessions",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Filter by relative path (e.g., pkg/foo)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View test results from history",
		ArgsUsage:       "[ID|INDEX] [TEST-PATTERN...]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View test results from history.

Arguments:
  0           View last session (default)
  -1          View 2nd last session
  -2          View 3rd last session
  <hex-id>    View session matching the hex ID prefix

Test patterns are globs matched against "suite/test".

Examples:
  testgate view                 # View last session
  testgate view -1              # View 2nd last session
  testgate view abc123          # View session with ID starting with abc123
  testgate view 0 'foo/TestX*'  # Only tests of suite foo starting with TestX`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the cached remote test data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "cache-dir",
				Usage:   "Cache directory (default: .testgate/cache at the repository root)",
				EnvVars: env("CACHE_DIR"),
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List cached entries",
				Action: app.cacheList,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached entry",
				Action: app.cacheClear,
			},
		},
		Action: app.cacheList,
	})
	return app
}

func testFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "api-key", Usage: "API key of the remote service, offline mode when empty", EnvVars: env("API_KEY")},
		&cli.StringFlag{Name: "site", Usage: "Base URL of the remote service", EnvVars: env("SITE")},
		&cli.StringFlag{Name: "service", Usage: "Service name reported to the remote service", EnvVars: env("SERVICE")},
		&cli.StringFlag{Name: "env", Usage: "Environment reported to the remote service", EnvVars: env("ENV")},
		&cli.StringFlag{Name: "branch", Usage: "Git branch (default: detected)", EnvVars: env("BRANCH")},
		&cli.StringFlag{Name: "commit", Usage: "Git commit (default: detected)", EnvVars: env("COMMIT")},
		&cli.BoolFlag{Name: "test-retries", Usage: "Enable automatic test retries", EnvVars: env("TEST_RETRIES")},
		&cli.UintFlag{Name: "test-retries-per-test", Usage: "Maximum automatic retries of one test", EnvVars: env("TEST_RETRIES_PER_TEST")},
		&cli.UintFlag{Name: "test-retries-total", Usage: "Maximum automatic retries of the session", EnvVars: env("TEST_RETRIES_TOTAL")},
		&cli.BoolFlag{Name: "early-flake-detection", Usage: "Enable early flake detection of new tests", EnvVars: env("EARLY_FLAKE_DETECTION")},
		&cli.BoolFlag{Name: "known-tests", Usage: "Enable new test tagging", EnvVars: env("KNOWN_TESTS")},
		&cli.BoolFlag{Name: "test-management", Usage: "Enable quarantined, disabled and attempt-to-fix tests", EnvVars: env("TEST_MANAGEMENT")},
		&cli.UintFlag{Name: "attempt-to-fix-retries", Usage: "Executions of an attempt-to-fix test (default: remote setting)", EnvVars: env("ATTEMPT_TO_FIX_RETRIES")},
		&cli.BoolFlag{Name: "itr", Usage: "Enable test impact analysis skipping", EnvVars: env("ITR")},
		&cli.StringSliceFlag{Name: "excluded-branch", Usage: "Branch pattern on which no test is skipped", EnvVars: env("EXCLUDED_BRANCHES")},
		&cli.StringSliceFlag{Name: "unskippable", Usage: "suite/test glob that is never skipped", EnvVars: env("UNSKIPPABLE")},
		&cli.BoolFlag{Name: "git-upload", Usage: "Send local commits to the remote service when it asks for them", EnvVars: env("GIT_UPLOAD")},
		&cli.StringFlag{Name: "cache-dir", Usage: "Directory of cached remote test data", EnvVars: env("CACHE_DIR")},
		&cli.DurationFlag{Name: "setup-timeout", Usage: "Upper bound for fetching remote settings and test lists", EnvVars: env("SETUP_TIMEOUT")},
		&cli.IntFlag{Name: "setup-workers", Usage: "Parallel setup tasks", EnvVars: env("SETUP_WORKERS")},
		&cli.BoolFlag{Name: "stream", Usage: "Print the output of every test execution as it runs"},
		&cli.BoolFlag{Name: "keep-binary", Usage: "Archive the test binary in the session history"},
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}
