package cli

// This file contains the list command for displaying previously processed
// streams.

import (
	"fmt"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/history"
	"github.com/perfgo/subunit/model"
)

func artifactTypeName(t model.ArtifactType) string {
	switch t {
	case model.ArtifactTypeTimingProfile:
		return "profile"
	case model.ArtifactTypeCSV:
		return "csv"
	case model.ArtifactTypeXLSX:
		return "xlsx"
	case model.ArtifactTypeStream:
		return "stream"
	}
	return ""
}

func (a *App) list(ctx *cli.Context) error {
	filterPath := ctx.String("path")
	limit := ctx.Int("limit")
	out := ctx.App.Writer

	// Load all history entries, newest first
	historyEntries, err := history.LoadEntries(a.logger, history.Root(a.cfg.HistoryDir))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	// Apply path filter if specified
	var filteredEntries []history.Entry
	for _, entry := range historyEntries {
		if filterPath == "" || strings.Contains(entry.History.WorkDir, filterPath) {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	if len(filteredEntries) == 0 {
		if filterPath != "" {
			fmt.Fprintf(out, "No history entries found matching path: %s\n", filterPath)
		} else {
			fmt.Fprintln(out, "No history entries found")
		}
		return nil
	}

	// Apply limit
	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(out, "\n=== History (%d total) ===\n\n", len(filteredEntries))

	for _, entry := range displayRuns {
		h := entry.History
		timestamp := h.Timestamp.Format("2006-01-02 15:04:05")

		// Format duration
		duration := h.Duration.Round(time.Millisecond)

		// Determine status indicator
		status := "✓"
		if h.ExitCode != 0 {
			status = "✗"
		}

		fmt.Fprintf(out, "%s  %s  [%s]  %s  exit=%d  id=%s\n", status, timestamp, duration, h.Type, h.ExitCode, shortID(h.ID))

		// Format args (skip the program name), quoted so they can be rerun
		if len(h.Args) > 1 {
			fmt.Fprintf(out, "   Args: %s\n", shellescape.QuoteCommand(h.Args[1:]))
		}
		if h.WorkDir != "" {
			fmt.Fprintf(out, "   Path: %s\n", h.WorkDir)
		}
		if s := h.Summary; s != nil {
			fmt.Fprintf(out, "   Tests: %d total, %d passed, %d failed, %d skipped\n", s.Total, s.Passed, s.Failed, s.Skipped)
		}
		if h.Git != nil && h.Git.Commit != "" {
			fmt.Fprintf(out, "   Commit: %s", shortID(h.Git.Commit))
			if h.Git.Branch != "" {
				fmt.Fprintf(out, " (%s)", h.Git.Branch)
			}
			fmt.Fprintln(out)
		}
		for _, artifact := range h.Artifacts {
			if typeName := artifactTypeName(artifact.Type); typeName != "" {
				fmt.Fprintf(out, "   %s: %s (%.1f KB)\n", typeName, artifact.File, float64(artifact.Size)/1024)
			}
		}
		fmt.Fprintf(out, "   %s\n", entry.FullPath)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "\nView an entry: %s view <ID>\n", AppName)

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
