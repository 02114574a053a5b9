package cli

// This file contains the test command: build the package's test binary,
// set up the features and run every discovered test through them.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/testgate/cache"
	"github.com/perfgo/testgate/config"
	"github.com/perfgo/testgate/feature"
	"github.com/perfgo/testgate/history"
	"github.com/perfgo/testgate/identity"
	"github.com/perfgo/testgate/model"
	"github.com/perfgo/testgate/runner"
	"github.com/perfgo/testgate/settings"
	"github.com/perfgo/testgate/setup"
)

func (a *App) runTest(ctx *cli.Context) error {
	startTime := time.Now()

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stop()

	testArgs := ctx.Args().Slice()
	if len(testArgs) < 1 {
		return fmt.Errorf("no package path specified: please provide a test path that resolves into a single package (e.g., '.' or './pkg/example')")
	}
	packagePath := testArgs[0]
	testArgs = testArgs[1:]
	// remove -- if given as separator
	if len(testArgs) > 0 && testArgs[0] == "--" {
		testArgs = testArgs[1:]
	}

	repoRoot, err := history.RepoRoot()
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(ctx, repoRoot)
	if err != nil {
		return err
	}

	importPath, err := a.validateTestPath(sigCtx, packagePath)
	if err != nil {
		return err
	}

	a.fillGitInfo(sigCtx, &cfg)

	session := identity.NewSession(fmt.Sprintf("%s test %s", AppName, importPath), startTime)
	h := &model.History{
		ID:        session.ID(),
		Type:      model.HistoryTypeTest,
		Timestamp: startTime,
		Args:      os.Args,
		Git: &model.Git{
			Commit: cfg.Commit,
			Branch: cfg.Branch,
			Repo:   filepath.Base(repoRoot),
			URL:    cfg.RepositoryURL,
		},
		Target: &model.Target{OS: runtime.GOOS, Arch: runtime.GOARCH},
		Test:   &model.TestRun{PackagePath: packagePath, Module: importPath},
	}
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(repoRoot, cwd); err == nil {
			h.WorkDir = rel
		}
	}
	runDir := history.RunDir(filepath.Join(repoRoot, history.DirName), h)

	buildArgs, runtimeArgs := a.separateTestArgs(testArgs)
	buildArgs = append(buildArgs, packagePath)
	filter, runtimeArgs := extractRunFilter(a.transformTestFlags(runtimeArgs))

	binary, err := a.buildTestBinary(sigCtx, buildArgs)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(binary); err != nil {
			a.logger.Debug().Err(err).Str("binary", binary).Msg("Failed to clean up test binary")
		}
	}()
	a.logger.Info().Str("binary", binary).Msg("Test binary built successfully")

	pkgDir, err := filepath.Abs(packagePath)
	if err != nil {
		return err
	}
	tests, err := a.discoverTests(sigCtx, binary, pkgDir, filter)
	if err != nil {
		return err
	}
	a.logger.Info().Int("tests", len(tests)).Str("module", importPath).Msg("Discovered tests")

	features := setup.Run(sigCtx, a.logger, a.setupOptions(cfg, importPath))
	set := features.Set()
	h.Test.Features = featureNames(set)

	executor := &localExecutor{
		logger: a.logger,
		binary: binary,
		dir:    pkgDir,
		args:   runtimeArgs,
	}
	if ctx.Bool("stream") {
		executor.stream = os.Stdout
	}

	suiteName := filepath.Base(importPath)
	modules := []runner.Module{{
		Name: importPath,
		Suites: []runner.Suite{{
			Name:  suiteName,
			Tests: tests,
			Meta:  feature.NewPatternMeta(suiteName, cfg.Unskippable),
		}},
	}}

	summary := runner.New(a.logger, set, executor).RunSession(sigCtx, session, modules)
	session.End(time.Now())

	h.Duration = session.Duration()
	h.Test.Summary = model.Summary(summary)
	h.Test.Tags = session.TagMap()
	h.Test.Metrics = session.MetricMap()
	h.Test.Tests = history.Results(session)

	var finalErr error
	switch {
	case summary.Interrupted:
		finalErr = fmt.Errorf("session interrupted after %d tests", summary.Tests)
	case session.Status() == identity.StatusFail:
		finalErr = fmt.Errorf("%d of %d tests failed", summary.Failed, summary.Tests)
	}
	if finalErr != nil {
		h.ExitCode = 1
	}

	a.printSummary(os.Stdout, h)

	stdout, stderr := executor.Output()
	keep := ""
	if ctx.Bool("keep-binary") {
		keep = binary
	}
	if err := a.recordHistory(h, runDir, keep, stdout, stderr); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record history")
	}

	return finalErr
}

// fillGitInfo completes the repository fields the configuration left empty.
func (a *App) fillGitInfo(ctx context.Context, cfg *config.Config) {
	if cfg.Commit == "" || cfg.Branch == "" {
		commit, branch, err := a.getGitInfo(ctx)
		if err != nil {
			a.logger.Debug().Err(err).Msg("Failed to read git information")
		}
		if cfg.Commit == "" {
			cfg.Commit = commit
		}
		if cfg.Branch == "" {
			cfg.Branch = branch
		}
	}
	if cfg.RepositoryURL == "" {
		cfg.RepositoryURL = a.getRepositoryURL(ctx)
	}
	if cfg.CommitMessage == "" && cfg.Commit != "" {
		cfg.CommitMessage = a.getCommitMessage(ctx, cfg.Commit)
	}
}

func (a *App) setupOptions(cfg config.Config, importPath string) setup.Options {
	opts := setup.Options{
		Config:  cfg,
		Module:  importPath + "@" + cfg.Commit,
		Commits: a.listCommits,
	}
	if cfg.CacheDir != "" {
		opts.Cache = cache.New(a.logger, cfg.CacheDir)
	}
	if cfg.Remote() {
		opts.Service = settings.NewClient(a.logger, cfg.Site, cfg.APIKey, settings.Target{
			Service:       cfg.Service,
			Environment:   cfg.Environment,
			RepositoryURL: cfg.RepositoryURL,
			Branch:        cfg.Branch,
			Commit:        cfg.Commit,
			CommitMessage: cfg.CommitMessage,
		})
	} else {
		a.logger.Info().Msg("No API key configured, running with local settings only")
	}
	return opts
}

func featureNames(set *feature.Set) []string {
	var names []string
	for _, id := range set.IDs() {
		names = append(names, string(id))
	}
	return names
}
