package cache

// This file contains the on-disk cache of remote feature data. Every feature
// owns a subdirectory, with one directory per module inside it.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// Feature subdirectories and file names.
const (
	KnownTestsDir      = "known_tests"
	KnownTestsFile     = "known_tests.json"
	TestManagementDir  = "test_management"
	TestManagementFile = "test_management_tests.json"
	ImpactAnalysisDir  = "itr"
	SkippableTestsFile = "skippable_tests.json"
)

const lockSuffix = ".lock"

// ErrMiss is returned when no cache file exists.
var ErrMiss = errors.New("cache miss")

type Directory struct {
	logger zerolog.Logger
	root   string
}

func New(logger zerolog.Logger, root string) *Directory {
	return &Directory{logger: logger, root: root}
}

func (d *Directory) Root() string { return d.root }

var moduleReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// Path returns the cache file location for a feature and module.
func (d *Directory) Path(feature, module, file string) string {
	return filepath.Join(d.root, feature, moduleReplacer.Replace(module), file)
}

// Load decodes a cache file. It returns ErrMiss when the file is absent.
func Load[T any](d *Directory, feature, module, file string) (T, error) {
	var out T
	path := d.Path(feature, module, file)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return out, ErrMiss
	}

	lock := flock.New(path + lockSuffix)
	if err := lock.RLock(); err != nil {
		return out, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, ErrMiss
		}
		return out, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	d.logger.Debug().Str("path", path).Msg("Loaded cache file")
	return out, nil
}

// Save encodes v into the cache file, replacing it atomically.
func Save[T any](d *Directory, feature, module, file string, v T) error {
	path := d.Path(feature, module, file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}

	lock := flock.New(path + lockSuffix)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	d.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Saved cache file")
	return nil
}

// Entry is one cache file on disk.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Entries lists every cache file below the root.
func (d *Directory) Entries() ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(d.root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if de.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Path: path, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk cache directory: %w", err)
	}
	return entries, nil
}

// Clear removes every cached file.
func (d *Directory) Clear() error {
	if err := os.RemoveAll(d.root); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
