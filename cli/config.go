package cli

// This file contains the assembly of the session configuration from the
// defaults, the configuration file and the command line.

import (
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/testgate/config"
)

func (a *App) loadConfig(ctx *cli.Context, repoRoot string) (config.Config, error) {
	path := ctx.String("config")
	optional := path == ""
	if optional {
		path = filepath.Join(repoRoot, config.DefaultFile)
	}
	file, err := config.LoadFile(path, optional)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Merge(config.Default(), file, flagLayer(ctx))
	if err != nil {
		return config.Config{}, err
	}
	if cfg.CacheDir != "" && !filepath.IsAbs(cfg.CacheDir) {
		cfg.CacheDir = filepath.Join(repoRoot, cfg.CacheDir)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	a.logger.Debug().Str("file", path).Bool("remote", cfg.Remote()).Msg("Configuration loaded")
	return cfg, nil
}

// flagLayer returns the flags given on the command line or through the
// environment. Unset flags stay zero so they do not override the file.
func flagLayer(ctx *cli.Context) config.Config {
	var c config.Config
	str := func(name string, dst *string) {
		if ctx.IsSet(name) {
			*dst = ctx.String(name)
		}
	}
	toggle := func(name string, dst **bool) {
		if ctx.IsSet(name) {
			*dst = config.Bool(ctx.Bool(name))
		}
	}
	count := func(name string, dst *uint) {
		if ctx.IsSet(name) {
			*dst = ctx.Uint(name)
		}
	}

	str("api-key", &c.APIKey)
	str("site", &c.Site)
	str("service", &c.Service)
	str("env", &c.Environment)
	str("branch", &c.Branch)
	str("commit", &c.Commit)
	str("cache-dir", &c.CacheDir)

	toggle("test-retries", &c.TestRetries)
	toggle("early-flake-detection", &c.EarlyFlakeDetection)
	toggle("known-tests", &c.KnownTests)
	toggle("test-management", &c.TestManagement)
	toggle("itr", &c.ITR)
	toggle("git-upload", &c.GitUpload)

	count("test-retries-per-test", &c.TestRetriesPerTest)
	count("test-retries-total", &c.TestRetriesTotal)
	count("attempt-to-fix-retries", &c.AttemptToFixRetries)

	if ctx.IsSet("excluded-branch") {
		c.ExcludedBranches = ctx.StringSlice("excluded-branch")
	}
	if ctx.IsSet("unskippable") {
		c.Unskippable = ctx.StringSlice("unskippable")
	}
	if ctx.IsSet("setup-timeout") {
		c.SetupTimeout = ctx.Duration("setup-timeout")
	}
	if ctx.IsSet("setup-workers") {
		c.SetupWorkers = ctx.Int("setup-workers")
	}
	return c
}
