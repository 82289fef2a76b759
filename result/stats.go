package result

// This file contains the sinks that count results.

import (
	"fmt"
	"io"
	"strings"

	"github.com/perfgo/subunit/model"
)

// Stats counts results by outcome and collects every tag seen.
type Stats struct {
	Base
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Seen    model.TagSet
	// FailedTests lists failing test ids in the order they finished.
	FailedTests []string
}

func NewStats() *Stats {
	return &Stats{Seen: model.NewTagSet()}
}

func (s *Stats) AddOutcome(r model.Result) error {
	if !r.Outcome.Final() {
		return nil
	}
	s.Total++
	switch r.Outcome {
	case model.Success, model.XFail:
		s.Passed++
	case model.Failure, model.Error, model.UxSuccess:
		s.Failed++
		s.FailedTests = append(s.FailedTests, r.TestID)
	case model.Skip:
		s.Skipped++
	}
	s.Seen.Apply(r.Tags, nil)
	return nil
}

func (s *Stats) Tags(gained, _ []string) error {
	s.Seen.Apply(gained, nil)
	return nil
}

// Format writes the summary block.
func (s *Stats) Format(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total tests:   %5d\n", s.Total)
	fmt.Fprintf(&sb, "Passed tests:  %5d\n", s.Passed)
	fmt.Fprintf(&sb, "Failed tests:  %5d\n", s.Failed)
	fmt.Fprintf(&sb, "Skipped tests: %5d\n", s.Skipped)
	if len(s.Seen) > 0 {
		fmt.Fprintf(&sb, "Seen tags: %s\n", strings.Join(s.Seen.Sorted(), ", "))
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}
	return nil
}

// Summary records whether a run was successful.
type Summary struct {
	Base
	Count   int
	Failed  int
	Skipped int
}

func (s *Summary) AddOutcome(r model.Result) error {
	if !r.Outcome.Final() {
		return nil
	}
	s.Count++
	if !r.Outcome.Successful() {
		s.Failed++
	}
	if r.Outcome == model.Skip {
		s.Skipped++
	}
	return nil
}

// Successful is false when any test failed, errored or unexpectedly passed.
func (s *Summary) Successful() bool {
	return s.Failed == 0
}

// ModelSummary converts the counts for a history record.
func (s *Stats) ModelSummary() *model.Summary {
	return &model.Summary{
		Total:       s.Total,
		Passed:      s.Passed,
		Failed:      s.Failed,
		Skipped:     s.Skipped,
		Tags:        s.Seen.Sorted(),
		FailedTests: s.FailedTests,
	}
}
