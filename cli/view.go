package cli

// This file contains the view command for displaying processed streams from
// history.

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/perfgo/subunit/history"
	"github.com/perfgo/subunit/model"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseViewArgs(in []string) (idArg string, pprofArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are pprof args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// Check if first arg looks like a pprof flag instead of an ID
	// A negative index is: "-" followed by only digits (e.g., "-1", "-2")
	// A pprof flag is: "-" followed by non-digit or equals (e.g., "-http=:8080", "-top")
	if len(in[0]) > 1 && in[0][0] == '-' {
		// Check if it's a valid negative integer
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			// Not a valid negative integer, so it's a pprof flag
			return "0", in
		}
	}

	// First arg is the ID/index, rest are pprof args (with optional "--" removed)
	return in[0], removeFirstDashDash(in[1:])
}

func (a *App) view(ctx *cli.Context) error {
	// Parse arguments to extract ID/index and pprof args
	arg, pprofArgs := parseViewArgs(ctx.Args().Slice())

	historyEntries, err := history.LoadEntries(a.logger, history.Root(a.cfg.HistoryDir))
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	entry, err := history.Find(historyEntries, arg)
	if err != nil {
		return err
	}

	return a.displayHistoryEntry(ctx.App.Writer, entry, pprofArgs)
}

func (a *App) displayHistoryEntry(out io.Writer, entry *history.Entry, pprofArgs []string) error {
	h := entry.History

	// Print header
	fmt.Fprintf(out, "=== %s: %s ===\n", h.Type, shortID(h.ID))
	fmt.Fprintf(out, "Time: %s\n", h.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Duration: %s\n", h.Duration)
	fmt.Fprintf(out, "Exit Code: %d\n", h.ExitCode)
	if h.WorkDir != "" {
		fmt.Fprintf(out, "Working Dir: %s\n", h.WorkDir)
	}
	if h.Git != nil && h.Git.Commit != "" {
		fmt.Fprintf(out, "Git Commit: %s", shortID(h.Git.Commit))
		if h.Git.Branch != "" {
			fmt.Fprintf(out, " (%s)", h.Git.Branch)
		}
		fmt.Fprintln(out)
	}
	if s := h.Summary; s != nil {
		fmt.Fprintf(out, "Tests: %d total, %d passed, %d failed, %d skipped\n", s.Total, s.Passed, s.Failed, s.Skipped)
		if len(s.Tags) > 0 {
			fmt.Fprintf(out, "Tags: %v\n", s.Tags)
		}
		for _, id := range s.FailedTests {
			fmt.Fprintf(out, "  failed: %s\n", id)
		}
	}
	fmt.Fprintln(out)

	// Highest priority: the timing profile, then tabular results
	var profileArtifact *model.Artifact
	var csvArtifact *model.Artifact

	for i := range h.Artifacts {
		artifact := &h.Artifacts[i]
		switch artifact.Type {
		case model.ArtifactTypeTimingProfile:
			profileArtifact = artifact
		case model.ArtifactTypeCSV:
			csvArtifact = artifact
		}
	}

	if profileArtifact != nil {
		return a.displayProfile(out, entry.FullPath, profileArtifact, pprofArgs)
	}

	if csvArtifact != nil {
		return a.displayCSV(out, entry.FullPath, csvArtifact)
	}

	fmt.Fprintf(out, "History directory: %s\n", entry.FullPath)
	return nil
}

func (a *App) displayProfile(out io.Writer, runDir string, artifact *model.Artifact, pprofArgs []string) error {
	profilePath := filepath.Join(runDir, artifact.File)
	fmt.Fprintf(out, "Profile: %s (%.1f KB)\n", profilePath, float64(artifact.Size)/1024)

	// Build pprof command with any additional args
	args := []string{"tool", "pprof"}
	args = append(args, pprofArgs...)
	args = append(args, profilePath)

	cmd := exec.Command("go", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = out
	cmd.Stderr = os.Stderr
	cmd.Dir = runDir

	return cmd.Run()
}

func (a *App) displayCSV(out io.Writer, runDir string, artifact *model.Artifact) error {
	csvPath := filepath.Join(runDir, artifact.File)
	fmt.Fprintf(out, "Results: %s\n", csvPath)
	data, err := os.ReadFile(csvPath)
	if err != nil {
		return fmt.Errorf("failed to read results: %w", err)
	}
	_, err = out.Write(data)
	return err
}
