package model

import "time"

// HistoryType represents the command that produced a history entry
type HistoryType string

const (
	HistoryTypeStats   HistoryType = "stats"
	HistoryTypeFilter  HistoryType = "filter"
	HistoryTypeReport  HistoryType = "report"
	HistoryTypeConvert HistoryType = "convert"
)

// History represents a single processed subunit stream.
type History struct {
	// Unique ID for this run (uuid)
	ID string `json:"id"`
	// Command that processed the stream
	Type HistoryType `json:"type"`
	// Timestamp when processing started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Working directory where command was run
	WorkDir string `json:"workdir"`
	// Exit code of the command
	ExitCode int `json:"exit_code"`
	// Duration of processing
	Duration time.Duration `json:"duration"`
	// Git information
	Git *Git `json:"git,omitempty"`
	// Counts gathered from the stream
	Summary *Summary `json:"summary,omitempty"`
	// Artifacts generated during this run
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
}

// Summary contains the aggregate outcome counts of a stream
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	// Tags seen anywhere in the stream
	Tags []string `json:"tags,omitempty"`
	// Test ids that did not succeed
	FailedTests []string `json:"failed_tests,omitempty"`
}

// ArtifactType identifies the type of artifact
type ArtifactType uint8

const (
	ArtifactTypeTimingProfile ArtifactType = iota
	ArtifactTypeCSV
	ArtifactTypeXLSX
	ArtifactTypeStream
)

// Artifact represents a file generated during execution
type Artifact struct {
	Type ArtifactType `json:"type"`
	Size uint64       `json:"size"`
	File string       `json:"file"` // relative to run dir
}
