package model

// This file contains the payloads carried by sink calls.

import "fmt"

// Result is a single test outcome together with its evidence.
type Result struct {
	TestID  string
	Outcome Outcome
	Details Details
	// Tags is the static tag annotation of the status, v2 only
	Tags      []string
	RouteCode string
}

// File is content not bound to a test outcome, such as non-protocol bytes
// found between packets. TestID is empty for passthrough data.
type File struct {
	TestID      string
	RouteCode   string
	Name        string
	ContentType ContentType
	Data        []byte
	EOF         bool
}

// ProgressKind selects how a progress value is applied.
type ProgressKind uint8

const (
	ProgressSet ProgressKind = iota
	ProgressCur
	ProgressPush
	ProgressPop
)

// Progress is a change to the hierarchical progress model.
type Progress struct {
	Kind  ProgressKind
	Value int
}

func (p Progress) String() string {
	switch p.Kind {
	case ProgressSet:
		return fmt.Sprintf("%d", p.Value)
	case ProgressCur:
		return fmt.Sprintf("%+d", p.Value)
	case ProgressPush:
		return "push"
	case ProgressPop:
		return "pop"
	}
	return fmt.Sprintf("progress(%d)", p.Kind)
}
