package result

// This file contains an in-memory sink that records every call.

import (
	"fmt"
	"strings"
	"time"

	"github.com/perfgo/subunit/model"
)

// EventKind names a sink call.
type EventKind string

const (
	KindStartTestRun EventKind = "startTestRun"
	KindStopTestRun  EventKind = "stopTestRun"
	KindStartTest    EventKind = "startTest"
	KindStopTest     EventKind = "stopTest"
	KindOutcome      EventKind = "addOutcome"
	KindTags         EventKind = "tags"
	KindProgress     EventKind = "progress"
	KindTime         EventKind = "time"
	KindFile         EventKind = "file"
)

// Event is one recorded sink call. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	TestID   string
	Result   model.Result
	Gained   []string
	Lost     []string
	Progress model.Progress
	Time     time.Time
	File     model.File
}

func (e Event) String() string {
	switch e.Kind {
	case KindStartTest, KindStopTest:
		return fmt.Sprintf("%s %s", e.Kind, e.TestID)
	case KindOutcome:
		return fmt.Sprintf("%s %s %s %v", e.Kind, e.Result.TestID, e.Result.Outcome, e.Result.Details.Names())
	case KindTags:
		return fmt.Sprintf("%s %v %v", e.Kind, e.Gained, e.Lost)
	case KindProgress:
		return fmt.Sprintf("%s %s", e.Kind, e.Progress)
	case KindTime:
		return fmt.Sprintf("%s %s", e.Kind, e.Time.Format(time.RFC3339Nano))
	case KindFile:
		return fmt.Sprintf("%s %s %q", e.Kind, e.File.Name, e.File.Data)
	}
	return string(e.Kind)
}

func StartTestEvent(id string) Event { return Event{Kind: KindStartTest, TestID: id} }

func StopTestEvent(id string) Event { return Event{Kind: KindStopTest, TestID: id} }

func OutcomeEvent(r model.Result) Event { return Event{Kind: KindOutcome, Result: r} }

func TagsEvent(gained, lost []string) Event {
	return Event{Kind: KindTags, Gained: gained, Lost: lost}
}

func TimeEvent(t time.Time) Event { return Event{Kind: KindTime, Time: t} }

func ProgressEvent(p model.Progress) Event { return Event{Kind: KindProgress, Progress: p} }

func FileEvent(f model.File) Event { return Event{Kind: KindFile, File: f} }

// Recorder keeps every call it receives. It backs tests and the debug dump
// of the cli.
type Recorder struct {
	Events []Event
}

func (r *Recorder) add(e Event) error {
	r.Events = append(r.Events, e)
	return nil
}

func (r *Recorder) StartTestRun() error { return r.add(Event{Kind: KindStartTestRun}) }

func (r *Recorder) StopTestRun() error { return r.add(Event{Kind: KindStopTestRun}) }

func (r *Recorder) StartTest(id string) error { return r.add(StartTestEvent(id)) }

func (r *Recorder) StopTest(id string) error { return r.add(StopTestEvent(id)) }

func (r *Recorder) AddOutcome(res model.Result) error { return r.add(OutcomeEvent(res)) }

func (r *Recorder) Tags(gained, lost []string) error { return r.add(TagsEvent(gained, lost)) }

func (r *Recorder) Progress(p model.Progress) error { return r.add(ProgressEvent(p)) }

func (r *Recorder) Time(t time.Time) error { return r.add(TimeEvent(t)) }

func (r *Recorder) File(f model.File) error { return r.add(FileEvent(f)) }

// Strings renders the recorded events one per entry.
func (r *Recorder) Strings() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.String()
	}
	return out
}

func (r *Recorder) String() string {
	return strings.Join(r.Strings(), "\n")
}
