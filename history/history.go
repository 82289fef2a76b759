package history

// This file contains shared history utilities for saving and loading the
// records of processed streams.

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/perfgo/subunit/model"
)

// RecordFile is the name of the record inside a run directory.
const RecordFile = "history.json"

type Entry struct {
	History  model.History
	FullPath string
}

// ArtifactFile is an artifact written next to a record.
type ArtifactFile struct {
	Type model.ArtifactType
	Name string
	Data []byte
}

// NewID returns a fresh run id.
func NewID() string {
	return uuid.NewString()
}

// Root returns dir when set, otherwise .subunit/history in the root of the
// git repository, otherwise .subunit/history in the working directory.
func Root(dir string) string {
	if dir != "" {
		return dir
	}
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return filepath.Join(".subunit", "history")
	}
	return filepath.Join(strings.TrimSpace(string(output)), ".subunit", "history")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Save writes the artifacts and the record to a new directory under root
// named <timestamp>-<short id>, and returns that directory.
func Save(root string, h *model.History, files []ArtifactFile) (string, error) {
	if h.ID == "" {
		h.ID = NewID()
	}
	runName := fmt.Sprintf("%s-%s", h.Timestamp.Format("20060102-150405"), shortID(h.ID))
	runDir := filepath.Join(root, runName)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	for _, f := range files {
		if err := os.WriteFile(filepath.Join(runDir, f.Name), f.Data, 0644); err != nil {
			return "", fmt.Errorf("failed to write artifact %s: %w", f.Name, err)
		}
		h.Artifacts = append(h.Artifacts, model.Artifact{
			Type: f.Type,
			Size: uint64(len(f.Data)),
			File: f.Name,
		})
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, RecordFile), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write history: %w", err)
	}
	return runDir, nil
}

// LoadEntries loads all history entries under root, newest first. A missing
// root yields no entries.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			historyPath := filepath.Join(path, RecordFile)
			if _, err := os.Stat(historyPath); err == nil {
				history, err := parseHistoryJSON(historyPath)
				if err != nil {
					logger.Warn().Err(err).Str("path", historyPath).Msg("Failed to parse history.json")
					return nil
				}

				entries = append(entries, Entry{
					History:  history,
					FullPath: path,
				})
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk history directory: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].History.Timestamp.After(entries[j].History.Timestamp)
	})

	return entries, nil
}

// Find selects an entry from a newest-first list. arg is either an index
// counting back from the newest (0, -1, -2, ...) or a prefix of the run id.
func Find(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no history entries found")
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d history entries)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].History.ID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no history entry found matching ID: %s", arg)
}

// parseHistoryJSON parses a history.json file.
func parseHistoryJSON(historyPath string) (model.History, error) {
	data, err := os.ReadFile(historyPath)
	if err != nil {
		return model.History{}, err
	}

	var history model.History
	if err := json.Unmarshal(data, &history); err != nil {
		return model.History{}, err
	}

	return history, nil
}
