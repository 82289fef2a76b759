package result

import (
	"errors"
	"time"

	"github.com/perfgo/subunit/model"
)

// Tee forwards every call to each of its sinks in order. All sinks see
// every call; the errors are joined.
type Tee []Sink

func (t Tee) each(call func(Sink) error) error {
	var errs []error
	for _, s := range t {
		if err := call(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) StartTestRun() error {
	return t.each(func(s Sink) error { return s.StartTestRun() })
}

func (t Tee) StopTestRun() error {
	return t.each(func(s Sink) error { return s.StopTestRun() })
}

func (t Tee) StartTest(id string) error {
	return t.each(func(s Sink) error { return s.StartTest(id) })
}

func (t Tee) StopTest(id string) error {
	return t.each(func(s Sink) error { return s.StopTest(id) })
}

func (t Tee) AddOutcome(r model.Result) error {
	return t.each(func(s Sink) error { return s.AddOutcome(r) })
}

func (t Tee) Tags(gained, lost []string) error {
	return t.each(func(s Sink) error { return s.Tags(gained, lost) })
}

func (t Tee) Progress(p model.Progress) error {
	return t.each(func(s Sink) error { return s.Progress(p) })
}

func (t Tee) Time(ts time.Time) error {
	return t.each(func(s Sink) error { return s.Time(ts) })
}

func (t Tee) File(f model.File) error {
	return t.each(func(s Sink) error { return s.File(f) })
}
