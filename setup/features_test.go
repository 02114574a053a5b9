package setup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfgo/testgate/cache"
	"github.com/perfgo/testgate/config"
	"github.com/perfgo/testgate/feature"
	"github.com/perfgo/testgate/settings"
)

type fakeService struct {
	mu        sync.Mutex
	settings  []settings.Settings
	known     settings.KnownTests
	knownErr  error
	managed   settings.ManagedTests
	skippable settings.SkippableTests
	commits   []string
	calls     map[string]int
}

var _ settings.Service = (*fakeService)(nil)

func (f *fakeService) call(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	return f.calls[name]
}

func (f *fakeService) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeService) Settings(context.Context) (settings.Settings, error) {
	n := f.call("settings")
	if n > len(f.settings) {
		n = len(f.settings)
	}
	return f.settings[n-1], nil
}

func (f *fakeService) KnownTests(context.Context) (settings.KnownTests, error) {
	f.call("known")
	return f.known, f.knownErr
}

func (f *fakeService) ManagedTests(context.Context) (settings.ManagedTests, error) {
	f.call("managed")
	return f.managed, nil
}

func (f *fakeService) SkippableTests(context.Context) (settings.SkippableTests, error) {
	f.call("skippable")
	return f.skippable, nil
}

func (f *fakeService) SearchCommits(_ context.Context, commits []string) ([]string, error) {
	f.call("search")
	f.mu.Lock()
	f.commits = commits
	f.mu.Unlock()
	return commits[:1], nil
}

const module = "github.com/acme/pkg"

func allEnabled() settings.Settings {
	table, _ := settings.NewTimeTable(map[string]uint{"5s": 10, "30s": 5})
	return settings.Settings{
		ITREnabled:          true,
		TestsSkipping:       true,
		KnownTestsEnabled:   true,
		FlakyRetriesEnabled: true,
		EarlyFlakeDetection: settings.EarlyFlake{Enabled: true, SlowTestRetries: table, FaultySessionThreshold: 30},
		TestManagement:      settings.TestManagement{Enabled: true, AttemptToFixRetries: 20},
	}
}

func managed() settings.ManagedTests {
	return settings.ManagedTests{Modules: map[string]settings.ManagedModule{
		module: {Suites: map[string]settings.ManagedSuite{
			"pkg": {Tests: map[string]settings.ManagedTest{
				"TestQ": {Properties: settings.TestProperties{Quarantined: true}},
			}},
		}},
	}}
}

func options(svc settings.Service, cfg config.Config) Options {
	return Options{Config: cfg, Service: svc, Module: module + "@abc"}
}

func TestRunOffline(t *testing.T) {
	f := Run(context.Background(), zerolog.Nop(), options(nil, config.Default()))

	assert.NotNil(t, f.AutomaticRetries)
	assert.Nil(t, f.KnownTests)
	assert.Nil(t, f.EarlyFlake)
	assert.Nil(t, f.TestManagement)
	assert.Nil(t, f.ImpactAnalysis)
	assert.Equal(t, []feature.ID{feature.IDAutomaticRetries, feature.IDRetryAndSkipTags}, f.Set().IDs())
}

func TestRunAllFeatures(t *testing.T) {
	svc := &fakeService{
		settings:  []settings.Settings{allEnabled()},
		known:     settings.KnownTests{module: {"pkg": {"TestA"}}},
		managed:   managed(),
		skippable: settings.SkippableTests{CorrelationID: "corr"},
	}
	f := Run(context.Background(), zerolog.Nop(), options(svc, config.Default()))

	assert.Equal(t, []feature.ID{
		feature.IDTestManagement,
		feature.IDImpactAnalysis,
		feature.IDEarlyFlake,
		feature.IDAutomaticRetries,
		feature.IDKnownTests,
		feature.IDRetryAndSkipTags,
	}, f.Set().IDs())
	assert.Equal(t, uint(1), f.KnownTests.Count())
}

func TestRunLocalToggles(t *testing.T) {
	svc := &fakeService{
		settings: []settings.Settings{allEnabled()},
		known:    settings.KnownTests{module: {"pkg": {"TestA"}}},
		managed:  managed(),
	}
	cfg := config.Default()
	cfg.ITR = config.Bool(false)
	cfg.KnownTests = config.Bool(false)
	cfg.TestRetries = config.Bool(false)

	f := Run(context.Background(), zerolog.Nop(), options(svc, cfg))

	assert.Nil(t, f.ImpactAnalysis)
	assert.Nil(t, f.KnownTests)
	assert.Nil(t, f.EarlyFlake, "early flake detection needs known tests")
	assert.Nil(t, f.AutomaticRetries)
	assert.NotNil(t, f.TestManagement)
	assert.Zero(t, svc.count("known"))
	assert.Zero(t, svc.count("skippable"))
}

func TestRunKnownTestsNotFound(t *testing.T) {
	svc := &fakeService{
		settings: []settings.Settings{allEnabled()},
		knownErr: settings.ErrNotFound,
		managed:  managed(),
	}
	f := Run(context.Background(), zerolog.Nop(), options(svc, config.Default()))

	assert.Nil(t, f.KnownTests)
	assert.Nil(t, f.EarlyFlake)
	assert.NotNil(t, f.AutomaticRetries)
}

func TestRunAttemptToFixOverride(t *testing.T) {
	svc := &fakeService{settings: []settings.Settings{allEnabled()}, managed: managed(), knownErr: settings.ErrNotFound}
	cfg := config.Default()
	cfg.AttemptToFixRetries = 3

	f := Run(context.Background(), zerolog.Nop(), options(svc, cfg))
	require.NotNil(t, f.TestManagement)
	assert.Equal(t, uint(3), f.TestManagement.AttemptToFixRetries())
}

func TestRunExcludedBranch(t *testing.T) {
	svc := &fakeService{settings: []settings.Settings{allEnabled()}, knownErr: settings.ErrNotFound, managed: managed()}
	cfg := config.Default()
	cfg.Branch = "release/1.2"
	cfg.ExcludedBranches = []string{"main", "release/*"}

	f := Run(context.Background(), zerolog.Nop(), options(svc, cfg))
	assert.Nil(t, f.ImpactAnalysis)
	assert.Zero(t, svc.count("skippable"))
}

func TestRunUsesCache(t *testing.T) {
	dir := cache.New(zerolog.Nop(), t.TempDir())
	svc := &fakeService{
		settings: []settings.Settings{allEnabled()},
		known:    settings.KnownTests{module: {"pkg": {"TestA", "TestB"}}},
		managed:  managed(),
	}
	opts := options(svc, config.Default())
	opts.Cache = dir

	first := Run(context.Background(), zerolog.Nop(), opts)
	second := Run(context.Background(), zerolog.Nop(), opts)

	assert.Equal(t, 1, svc.count("known"))
	assert.Equal(t, 1, svc.count("managed"))
	assert.Equal(t, 1, svc.count("skippable"))
	assert.Equal(t, first.KnownTests.Count(), second.KnownTests.Count())
	assert.NotNil(t, second.TestManagement)
}

func TestRunGitUploadRefetchesSettings(t *testing.T) {
	before := settings.Settings{RequireGit: true}
	svc := &fakeService{
		settings: []settings.Settings{before, allEnabled()},
		known:    settings.KnownTests{module: {"pkg": {"TestA"}}},
		managed:  managed(),
	}
	opts := options(svc, config.Default())
	opts.Commits = func(context.Context) ([]string, error) {
		return []string{"aaa", "bbb"}, nil
	}

	f := Run(context.Background(), zerolog.Nop(), opts)

	assert.Equal(t, 1, svc.count("search"))
	assert.Equal(t, 2, svc.count("settings"))
	assert.Equal(t, []string{"aaa", "bbb"}, svc.commits)
	assert.NotNil(t, f.EarlyFlake, "features follow the refetched settings")
	assert.NotNil(t, f.ImpactAnalysis)
}

func TestRunGitUploadDisabled(t *testing.T) {
	svc := &fakeService{settings: []settings.Settings{{RequireGit: true, FlakyRetriesEnabled: true}}}
	cfg := config.Default()
	cfg.GitUpload = config.Bool(false)
	opts := options(svc, cfg)
	opts.Commits = func(context.Context) ([]string, error) { return []string{"aaa"}, nil }

	f := Run(context.Background(), zerolog.Nop(), opts)
	assert.Zero(t, svc.count("search"))
	assert.NotNil(t, f.AutomaticRetries)
}

type blockingService struct {
	fakeService
}

func (b *blockingService) Settings(ctx context.Context) (settings.Settings, error) {
	<-ctx.Done()
	return settings.Settings{}, ctx.Err()
}

func TestRunTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.SetupTimeout = 20 * time.Millisecond

	start := time.Now()
	f := Run(context.Background(), zerolog.Nop(), options(&blockingService{}, cfg))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []feature.ID{feature.IDRetryAndSkipTags}, f.Set().IDs())
}

func TestExcludedBranch(t *testing.T) {
	patterns := []string{"main", "release/*", "hotfix*"}
	tests := []struct {
		branch  string
		pattern string
		want    bool
	}{
		{"main", "main", true},
		{"release/1.2", "release/*", true},
		{"hotfix/deep/branch", "hotfix*", true},
		{"feature/x", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			pattern, ok := ExcludedBranch(patterns, tt.branch)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.pattern, pattern)
		})
	}
}
