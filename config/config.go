package config

// This file contains the session configuration and how its layers (defaults,
// file, command line) are combined.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/goccy/go-yaml"
)

// DefaultFile is looked up at the repository root when no file is given.
const DefaultFile = ".testgate.yaml"

// Config holds every setting of a test session. Toggles are pointers so a
// layer can switch a feature off.
type Config struct {
	APIKey        string `yaml:"api_key"`
	Site          string `yaml:"site"`
	Service       string `yaml:"service"`
	Environment   string `yaml:"env"`
	RepositoryURL string `yaml:"repository_url"`
	Branch        string `yaml:"branch"`
	Commit        string `yaml:"commit"`
	CommitMessage string `yaml:"commit_message"`

	TestRetries         *bool    `yaml:"test_retries"`
	TestRetriesPerTest  uint     `yaml:"test_retries_per_test"`
	TestRetriesTotal    uint     `yaml:"test_retries_total"`
	EarlyFlakeDetection *bool    `yaml:"early_flake_detection"`
	KnownTests          *bool    `yaml:"known_tests"`
	TestManagement      *bool    `yaml:"test_management"`
	AttemptToFixRetries uint     `yaml:"attempt_to_fix_retries"`
	ITR                 *bool    `yaml:"itr"`
	ExcludedBranches    []string `yaml:"excluded_branches"`
	// Unskippable lists "suite/test" glob patterns that always run.
	Unskippable []string `yaml:"unskippable"`
	GitUpload   *bool    `yaml:"git_upload"`

	CacheDir     string        `yaml:"cache_dir"`
	SetupTimeout time.Duration `yaml:"setup_timeout"`
	SetupWorkers int           `yaml:"setup_workers"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func enabled(p *bool) bool {
	return p != nil && *p
}

func (c Config) TestRetriesEnabled() bool         { return enabled(c.TestRetries) }
func (c Config) EarlyFlakeDetectionEnabled() bool { return enabled(c.EarlyFlakeDetection) }
func (c Config) KnownTestsEnabled() bool          { return enabled(c.KnownTests) }
func (c Config) TestManagementEnabled() bool      { return enabled(c.TestManagement) }
func (c Config) ITREnabled() bool                 { return enabled(c.ITR) }
func (c Config) GitUploadEnabled() bool           { return enabled(c.GitUpload) }

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Site:                "https://api.datadoghq.com",
		Environment:         "none",
		TestRetries:         Bool(true),
		TestRetriesPerTest:  5,
		TestRetriesTotal:    1000,
		EarlyFlakeDetection: Bool(true),
		KnownTests:          Bool(true),
		TestManagement:      Bool(true),
		ITR:                 Bool(true),
		GitUpload:           Bool(true),
		CacheDir:            ".testgate/cache",
		SetupTimeout:        30 * time.Second,
		SetupWorkers:        4,
	}
}

// LoadFile reads a YAML configuration file. A missing file yields an empty
// configuration when optional is set.
func LoadFile(path string, optional bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies layers on top of base in order. Set fields of a later layer
// win; unset fields keep the earlier value.
func Merge(base Config, layers ...Config) (Config, error) {
	out := base
	for _, layer := range layers {
		if err := mergo.Merge(&out, layer, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return Config{}, fmt.Errorf("failed to merge config: %w", err)
		}
	}
	return out, nil
}

// Validate reports settings that make a session impossible.
func (c Config) Validate() error {
	if c.SetupWorkers < 1 {
		return fmt.Errorf("setup workers must be at least 1, got %d", c.SetupWorkers)
	}
	if c.SetupTimeout <= 0 {
		return fmt.Errorf("setup timeout must be positive, got %s", c.SetupTimeout)
	}
	if c.TestRetriesEnabled() && c.TestRetriesPerTest == 0 {
		return fmt.Errorf("test retries are enabled but test_retries_per_test is 0")
	}
	return nil
}

// Remote reports whether the remote service can be contacted at all.
func (c Config) Remote() bool {
	return c.APIKey != "" && c.Site != ""
}
