package setup

// This file contains the feature factories and the task graph wiring them.
// Settings are fetched first and may be refetched by the git upload; every
// factory waits for both. Early flake detection also waits for known tests.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/perfgo/testgate/cache"
	"github.com/perfgo/testgate/config"
	"github.com/perfgo/testgate/feature"
	"github.com/perfgo/testgate/settings"
)

// ErrSetupTimeout is reported when setup did not finish within the session
// timeout.
var ErrSetupTimeout = errors.New("feature setup timed out")

const (
	taskSettings         = "settings"
	taskGitUpload        = "git-upload"
	taskKnownTests       = "known-tests"
	taskEarlyFlake       = "early-flake-detection"
	taskTestManagement   = "test-management"
	taskImpactAnalysis   = "test-impact-analysis"
	taskAutomaticRetries = "automatic-retries"
)

// CommitLister returns the local commits offered to the git upload.
type CommitLister func(ctx context.Context) ([]string, error)

type Options struct {
	Config config.Config
	// Service is nil when no remote service is configured. Only features
	// that need no remote data are built then.
	Service settings.Service
	Cache   *cache.Directory
	// Module names the cache entries of this session.
	Module  string
	Commits CommitLister
}

// Features holds the outcome of setup. A feature that is disabled or whose
// setup failed stays nil.
type Features struct {
	Settings         settings.Settings
	KnownTests       *feature.KnownTests
	EarlyFlake       *feature.EarlyFlakeDetection
	AutomaticRetries *feature.AutomaticRetries
	TestManagement   *feature.TestManagement
	ImpactAnalysis   *feature.ImpactAnalysis
}

// Set returns the enabled features in precedence order, followed by the
// tag-only feature.
func (f *Features) Set() *feature.Set {
	var list []feature.Feature
	if f.TestManagement != nil {
		list = append(list, f.TestManagement)
	}
	if f.ImpactAnalysis != nil {
		list = append(list, f.ImpactAnalysis)
	}
	if f.EarlyFlake != nil {
		list = append(list, f.EarlyFlake)
	}
	if f.AutomaticRetries != nil {
		list = append(list, f.AutomaticRetries)
	}
	if f.KnownTests != nil {
		list = append(list, f.KnownTests)
	}
	list = append(list, feature.NewRetryAndSkipTags())
	return feature.NewSet(list...)
}

type builder struct {
	logger zerolog.Logger
	opts   Options
	out    *Features
}

// Run builds the features. It never fails: problems are logged and leave
// the affected feature disabled.
func Run(ctx context.Context, logger zerolog.Logger, opts Options) *Features {
	if opts.Config.SetupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Config.SetupTimeout)
		defer cancel()
	}

	b := &builder{logger: logger, opts: opts, out: &Features{}}
	graph := NewGraph(logger, opts.Config.SetupWorkers)
	graph.Add(Task{Name: taskSettings, Run: b.settings})
	graph.Add(Task{Name: taskGitUpload, After: []string{taskSettings}, Run: b.gitUpload})
	graph.Add(Task{Name: taskKnownTests, After: []string{taskGitUpload}, Run: b.knownTests})
	graph.Add(Task{Name: taskEarlyFlake, After: []string{taskKnownTests}, Run: b.earlyFlake})
	graph.Add(Task{Name: taskTestManagement, After: []string{taskGitUpload}, Run: b.testManagement})
	graph.Add(Task{Name: taskImpactAnalysis, After: []string{taskGitUpload}, Run: b.impactAnalysis})
	graph.Add(Task{Name: taskAutomaticRetries, After: []string{taskGitUpload}, Run: b.automaticRetries})

	err := graph.Run(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = errors.Join(err, ErrSetupTimeout)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Some features could not be set up and are disabled")
	}
	return b.out
}

func (b *builder) settings(ctx context.Context) error {
	if b.opts.Service == nil {
		// without a remote service only automatic retries can run
		b.out.Settings = settings.Settings{FlakyRetriesEnabled: true}
		b.logger.Debug().Msg("No remote service configured, using local settings")
		return nil
	}
	s, err := b.opts.Service.Settings(ctx)
	if err != nil {
		return err
	}
	b.out.Settings = s
	b.logger.Debug().Interface("settings", s).Msg("Remote settings fetched")
	return nil
}

// gitUpload never fails the graph: the features waiting on it still run
// with the settings fetched before the upload.
func (b *builder) gitUpload(ctx context.Context) error {
	if b.opts.Service == nil || !b.out.Settings.RequireGit || !b.opts.Config.GitUploadEnabled() || b.opts.Commits == nil {
		return nil
	}
	commits, err := b.opts.Commits(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to list local commits")
		return nil
	}
	known, err := b.opts.Service.SearchCommits(ctx, commits)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Failed to search commits")
		return nil
	}
	b.logger.Debug().Int("local", len(commits)).Int("known", len(known)).Msg("Git commits searched")

	// the backend recomputes settings once it has seen the repository
	s, err := b.opts.Service.Settings(ctx)
	if err != nil {
		b.logger.Warn().Err(fmt.Errorf("failed to refetch settings: %w", err)).Msg("Keeping settings fetched before the git upload")
		return nil
	}
	b.out.Settings = s
	return nil
}

func (b *builder) knownTests(ctx context.Context) error {
	if !b.opts.Config.KnownTestsEnabled() || !b.out.Settings.KnownTestsEnabled || b.opts.Service == nil {
		b.logger.Debug().Msg("Known tests disabled")
		return nil
	}
	tests, err := loadOrFetch(ctx, b, cache.KnownTestsDir, cache.KnownTestsFile, b.opts.Service.KnownTests)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			// an empty registry would make every test new
			b.logger.Debug().Msg("No known tests returned, known tests disabled")
			return nil
		}
		return err
	}
	if tests.Count() == 0 {
		b.logger.Debug().Msg("No known tests cached, known tests disabled")
		return nil
	}
	b.out.KnownTests = feature.NewKnownTests(tests)
	b.logger.Debug().Uint("count", b.out.KnownTests.Count()).Msg("Known tests enabled")
	return nil
}

func (b *builder) earlyFlake(context.Context) error {
	s := b.out.Settings
	if !b.opts.Config.EarlyFlakeDetectionEnabled() || !s.EarlyFlakeEnabled() {
		b.logger.Debug().Msg("Early flake detection disabled")
		return nil
	}
	if b.out.KnownTests == nil {
		b.logger.Debug().Msg("Early flake detection disabled, known tests unavailable")
		return nil
	}
	efd := s.EarlyFlakeDetection
	b.out.EarlyFlake = feature.NewEarlyFlakeDetection(b.logger, b.out.KnownTests, efd.SlowTestRetries, efd.FaultySessionThreshold)
	b.logger.Debug().Interface("slow_test_retries", efd.SlowTestRetries.Map()).Msg("Early flake detection enabled")
	return nil
}

func (b *builder) testManagement(ctx context.Context) error {
	s := b.out.Settings
	if !b.opts.Config.TestManagementEnabled() || !s.TestManagement.Enabled || b.opts.Service == nil {
		b.logger.Debug().Msg("Test management disabled")
		return nil
	}
	tests, err := loadOrFetch(ctx, b, cache.TestManagementDir, cache.TestManagementFile, b.opts.Service.ManagedTests)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			b.logger.Debug().Msg("No managed tests returned, test management disabled")
			return nil
		}
		return err
	}
	retries := s.TestManagement.AttemptToFixRetries
	if b.opts.Config.AttemptToFixRetries > 0 {
		retries = b.opts.Config.AttemptToFixRetries
	}
	b.out.TestManagement = feature.NewTestManagement(b.logger, tests, retries)
	b.logger.Debug().Uint("attempt_to_fix_retries", retries).Msg("Test management enabled")
	return nil
}

func (b *builder) impactAnalysis(ctx context.Context) error {
	s := b.out.Settings
	if !b.opts.Config.ITREnabled() || !s.ITREnabled || !s.TestsSkipping || b.opts.Service == nil {
		b.logger.Debug().Msg("Test impact analysis disabled")
		return nil
	}
	if pattern, excluded := ExcludedBranch(b.opts.Config.ExcludedBranches, b.opts.Config.Branch); excluded {
		b.logger.Debug().Str("branch", b.opts.Config.Branch).Str("pattern", pattern).Msg("Test impact analysis disabled on excluded branch")
		return nil
	}
	tests, err := loadOrFetch(ctx, b, cache.ImpactAnalysisDir, cache.SkippableTestsFile, b.opts.Service.SkippableTests)
	if err != nil {
		return err
	}
	b.out.ImpactAnalysis = feature.NewImpactAnalysis(b.logger, tests)
	b.logger.Debug().Int("skippable", len(tests.Tests)).Msg("Test impact analysis enabled")
	return nil
}

func (b *builder) automaticRetries(context.Context) error {
	if !b.opts.Config.TestRetriesEnabled() || !b.out.Settings.FlakyRetriesEnabled {
		b.logger.Debug().Msg("Automatic test retries disabled")
		return nil
	}
	cfg := b.opts.Config
	b.out.AutomaticRetries = feature.NewAutomaticRetries(b.logger, cfg.TestRetriesPerTest, cfg.TestRetriesTotal)
	b.logger.Debug().Uint("per_test", cfg.TestRetriesPerTest).Uint("total", cfg.TestRetriesTotal).Msg("Automatic test retries enabled")
	return nil
}

// loadOrFetch reads a feature's cache file and falls back to the remote
// service, persisting what it fetched. A broken cache is logged and
// bypassed.
func loadOrFetch[T any](ctx context.Context, b *builder, dir, file string, fetch func(context.Context) (T, error)) (T, error) {
	if b.opts.Cache != nil {
		v, err := cache.Load[T](b.opts.Cache, dir, b.opts.Module, file)
		if err == nil {
			b.logger.Debug().Str("feature", dir).Msg("Loaded from cache")
			return v, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			b.logger.Warn().Err(err).Str("feature", dir).Msg("Ignoring unreadable cache entry")
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if b.opts.Cache != nil {
		if err := cache.Save(b.opts.Cache, dir, b.opts.Module, file, v); err != nil {
			b.logger.Warn().Err(err).Str("feature", dir).Msg("Failed to write cache entry")
		}
	}
	return v, nil
}

// ExcludedBranch reports whether branch matches one of the patterns, and
// which. Patterns are globs; a trailing "*" also matches across "/".
func ExcludedBranch(patterns []string, branch string) (string, bool) {
	if branch == "" {
		return "", false
	}
	for _, p := range patterns {
		if p == branch {
			return p, true
		}
		if ok, err := doublestar.Match(p, branch); err == nil && ok {
			return p, true
		}
		if prefix, ok := strings.CutSuffix(p, "*"); ok && strings.HasPrefix(branch, prefix) {
			return p, true
		}
	}
	return "", false
}
