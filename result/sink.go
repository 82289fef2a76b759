package result

// This file contains the sink contract every consumer of the event stream
// implements.

import (
	"time"

	"github.com/perfgo/subunit/model"
)

// Sink receives structured test events in stream order. Outcomes other
// than Exists arrive between StartTest and StopTest for the same id.
type Sink interface {
	StartTestRun() error
	StopTestRun() error
	StartTest(id string) error
	StopTest(id string) error
	AddOutcome(r model.Result) error
	Tags(gained, lost []string) error
	Progress(p model.Progress) error
	Time(t time.Time) error
	File(f model.File) error
}

// Base implements Sink by ignoring every event. Embed it to implement only
// the calls a consumer cares about.
type Base struct{}

func (Base) StartTestRun() error { return nil }
func (Base) StopTestRun() error { return nil }
func (Base) StartTest(string) error { return nil }
func (Base) StopTest(string) error { return nil }
func (Base) AddOutcome(model.Result) error { return nil }
func (Base) Tags(gained, lost []string) error { return nil }
func (Base) Progress(model.Progress) error { return nil }
func (Base) Time(time.Time) error { return nil }
func (Base) File(model.File) error { return nil }

// Discard is a Sink that drops everything.
var Discard Sink = Base{}
