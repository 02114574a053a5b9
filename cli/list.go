package cli

// This file contains the list command for displaying previous test sessions.

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/testgate/history"
)

func (a *App) list(ctx *cli.Context) error {
	filterPath := ctx.String("path")
	limit := ctx.Int("limit")

	root, err := history.GetRoot()
	if err != nil {
		return err
	}

	// Load all history entries, newest first
	historyEntries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	// Apply path filter if specified
	var filteredEntries []history.Entry
	for _, entry := range historyEntries {
		if filterPath == "" || strings.Contains(entry.History.WorkDir, filterPath) ||
			(entry.History.Test != nil && strings.Contains(entry.History.Test.PackagePath, filterPath)) {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	if len(filteredEntries) == 0 {
		if filterPath != "" {
			fmt.Printf("No history entries found matching path: %s\n", filterPath)
		} else {
			fmt.Println("No history entries found")
		}
		return nil
	}

	// Apply limit
	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Printf("\n=== History (%d total) ===\n\n", len(filteredEntries))

	for _, entry := range displayRuns {
		tr := entry.History
		timestamp := tr.Timestamp.Format("2006-01-02 15:04:05")
		duration := tr.Duration.Round(time.Millisecond)

		status := colorPass.Sprint("✓")
		if tr.ExitCode != 0 {
			status = colorFail.Sprint("✗")
		}

		fmt.Printf("%s  %s  [%s]  exit=%d  id=%s\n", status, timestamp, duration, tr.ExitCode, short(tr.ID))
		if len(tr.Args) > 1 {
			fmt.Printf("   Args: %s\n", strings.Join(tr.Args[1:], " "))
		}
		if tr.Test != nil {
			s := tr.Test.Summary
			fmt.Printf("   Tests: %d passed, %d failed, %d skipped, %d flaky, %d retries\n",
				s.Passed, s.Failed, s.Skipped, s.Flaky, s.Retries)
			if len(tr.Test.Features) > 0 {
				fmt.Printf("   Features: %s\n", strings.Join(tr.Test.Features, ", "))
			}
		}
		if tr.Git != nil && tr.Git.Commit != "" {
			fmt.Printf("   Commit: %s", short(tr.Git.Commit))
			if tr.Git.Branch != "" {
				fmt.Printf(" (%s)", tr.Git.Branch)
			}
			fmt.Println()
		}
		fmt.Printf("   %s\n", entry.FullPath)
		fmt.Println()
	}

	fmt.Printf("\nView session details: %s view <ID>\n", AppName)

	return nil
}
