package cli

// This file contains the cache command for the locally cached remote data.

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/testgate/cache"
	"github.com/perfgo/testgate/config"
	"github.com/perfgo/testgate/history"
)

func (a *App) cacheDirectory(ctx *cli.Context) (*cache.Directory, error) {
	dir := ctx.String("cache-dir")
	if dir == "" {
		dir = config.Default().CacheDir
	}
	if !filepath.IsAbs(dir) {
		root, err := history.RepoRoot()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(root, dir)
	}
	return cache.New(a.logger, dir), nil
}

func (a *App) cacheList(ctx *cli.Context) error {
	dir, err := a.cacheDirectory(ctx)
	if err != nil {
		return err
	}
	entries, err := dir.Entries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No cache entries in %s\n", dir.Root())
		return nil
	}
	for _, e := range entries {
		rel, err := filepath.Rel(dir.Root(), e.Path)
		if err != nil {
			rel = e.Path
		}
		fmt.Printf("%-64s %8.1f KB  %s\n", rel, float64(e.Size)/1024, e.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (a *App) cacheClear(ctx *cli.Context) error {
	dir, err := a.cacheDirectory(ctx)
	if err != nil {
		return err
	}
	if err := dir.Clear(); err != nil {
		return err
	}
	a.logger.Info().Str("dir", dir.Root()).Msg("Cache cleared")
	return nil
}
