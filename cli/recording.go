package cli

// This file contains run recording functionality for saving the summary
// and artifacts of a processed stream to the history directory.

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/perfgo/subunit/history"
	"github.com/perfgo/subunit/model"
)

// TimingProfileFile is the name of the timing profile artifact.
const TimingProfileFile = "timing.pb.gz"

func (a *App) recordHistory(r *run, exitCode int) error {
	h := r.history
	h.Duration = time.Since(h.Timestamp)
	h.ExitCode = exitCode
	h.Summary = r.stats.ModelSummary()

	// Capture working directory
	if cwd, err := os.Getwd(); err == nil {
		h.WorkDir = cwd
	}

	// Capture git info (non-fatal if it fails)
	if git, err := a.getGitInfo(); err == nil {
		h.Git = git
	} else {
		a.logger.Debug().Err(err).Msg("No git information")
	}

	files := r.artifacts
	if prof := r.timing.Profile(); len(prof.Sample) > 0 {
		var buf bytes.Buffer
		if err := r.timing.Write(&buf); err != nil {
			return err
		}
		files = append(files, history.ArtifactFile{
			Type: model.ArtifactTypeTimingProfile,
			Name: TimingProfileFile,
			Data: buf.Bytes(),
		})
	}

	runDir, err := history.Save(history.Root(a.cfg.HistoryDir), h, files)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	a.logger.Debug().Str("dir", runDir).Str("id", h.ID).Msg("Recorded history")
	return nil
}
