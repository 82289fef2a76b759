package result

// This file contains the result filter and its predicates.

import (
	"regexp"
	"time"

	"github.com/perfgo/subunit/model"
)

// Predicate decides whether a result is kept. tags are the tags in effect
// for the test when it finished.
type Predicate func(r model.Result, tags model.TagSet) bool

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithExclude sets whether results with the given outcome are dropped.
func WithExclude(outcome model.Outcome, exclude bool) FilterOption {
	return func(f *Filter) {
		f.exclude[outcome] = exclude
	}
}

// WithPredicate adds a predicate every kept result must satisfy.
func WithPredicate(p Predicate) FilterOption {
	return func(f *Filter) {
		if f.predicate == nil {
			f.predicate = p
			return
		}
		f.predicate = AndPredicates(f.predicate, p)
	}
}

// WithFixupExpectedFailures marks the given tests as expected to fail:
// failures and errors become xfail and successes become uxsuccess.
func WithFixupExpectedFailures(ids []string) FilterOption {
	return func(f *Filter) {
		f.fixup = model.NewTagSet(ids...)
	}
}

// Filter drops results by outcome and predicate. Everything a test emits
// is held back until its StopTest and then replayed or discarded as a
// whole. Time calls are not held back, so they can reach the output ahead
// of the test they were recorded in.
type Filter struct {
	sink      Sink
	exclude   map[model.Outcome]bool
	predicate Predicate
	fixup     model.TagSet

	global   model.TagSet
	current  string
	inTest   bool
	testTags model.TagSet
	result   *model.Result
	buffered []func(Sink) error
}

// NewFilter returns a filter writing to sink through a TagCollapser and a
// TimeCollapser. Successes are excluded unless WithExclude says otherwise.
func NewFilter(sink Sink, opts ...FilterOption) *Filter {
	f := &Filter{
		sink:    NewTimeCollapser(NewTagCollapser(sink)),
		exclude: map[model.Outcome]bool{model.Success: true},
		fixup:   model.NewTagSet(),
		global:  model.NewTagSet(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) keep(r model.Result, tags model.TagSet) bool {
	if f.exclude[r.Outcome] {
		return false
	}
	return f.predicate == nil || f.predicate(r, tags)
}

func (f *Filter) fixupOutcome(r model.Result) model.Result {
	if !f.fixup.Has(r.TestID) {
		return r
	}
	switch r.Outcome {
	case model.Failure, model.Error:
		r.Outcome = model.XFail
	case model.Success:
		r.Outcome = model.UxSuccess
	}
	return r
}

func (f *Filter) hold(call func(Sink) error) error {
	if f.inTest {
		f.buffered = append(f.buffered, call)
		return nil
	}
	return call(f.sink)
}

func (f *Filter) StartTestRun() error { return f.sink.StartTestRun() }

func (f *Filter) StopTestRun() error { return f.sink.StopTestRun() }

func (f *Filter) StartTest(id string) error {
	f.current, f.inTest = id, true
	f.testTags = f.global.Clone()
	f.result = nil
	f.buffered = []func(Sink) error{func(s Sink) error { return s.StartTest(id) }}
	return nil
}

func (f *Filter) StopTest(id string) error {
	if !f.inTest {
		return f.sink.StopTest(id)
	}
	calls := f.buffered
	f.inTest, f.buffered = false, nil

	keep := true
	if f.result != nil {
		tags := f.testTags.Clone()
		tags.Apply(f.result.Tags, nil)
		keep = f.keep(*f.result, tags)
	}
	if !keep {
		return nil
	}
	for _, call := range calls {
		if err := call(f.sink); err != nil {
			return err
		}
	}
	return f.sink.StopTest(id)
}

func (f *Filter) AddOutcome(r model.Result) error {
	r = f.fixupOutcome(r)
	if f.inTest && r.TestID == f.current {
		f.result = &r
		f.buffered = append(f.buffered, func(s Sink) error { return s.AddOutcome(r) })
		return nil
	}

	tags := f.global.Clone()
	if f.inTest {
		tags = f.testTags.Clone()
	}
	tags.Apply(r.Tags, nil)
	if !f.keep(r, tags) {
		return nil
	}
	return f.hold(func(s Sink) error { return s.AddOutcome(r) })
}

func (f *Filter) Tags(gained, lost []string) error {
	if f.inTest {
		f.testTags.Apply(gained, lost)
	} else {
		f.global.Apply(gained, lost)
	}
	return f.hold(func(s Sink) error { return s.Tags(gained, lost) })
}

func (f *Filter) Progress(p model.Progress) error {
	return f.sink.Progress(p)
}

func (f *Filter) Time(t time.Time) error {
	return f.sink.Time(t)
}

func (f *Filter) File(file model.File) error {
	return f.hold(func(s Sink) error { return s.File(file) })
}

// TagPredicate keeps results carrying at least one of with (when with is
// not empty) and none of without.
func TagPredicate(with, without []string) Predicate {
	withSet, withoutSet := model.NewTagSet(with...), model.NewTagSet(without...)
	return func(_ model.Result, tags model.TagSet) bool {
		if len(withSet) > 0 && !tags.Intersects(withSet) {
			return false
		}
		return !tags.Intersects(withoutSet)
	}
}

// RegexpPredicate keeps results whose id or attachment text matches one of
// with (when with is not empty) and none of without.
func RegexpPredicate(with, without []*regexp.Regexp) Predicate {
	return func(r model.Result, _ model.TagSet) bool {
		text := r.TestID + "\n" + r.Details.Text()
		matches := func(res []*regexp.Regexp) bool {
			for _, re := range res {
				if re.MatchString(text) {
					return true
				}
			}
			return false
		}
		if len(with) > 0 && !matches(with) {
			return false
		}
		return !matches(without)
	}
}

// AndPredicates keeps results every predicate keeps.
func AndPredicates(predicates ...Predicate) Predicate {
	return func(r model.Result, tags model.TagSet) bool {
		for _, p := range predicates {
			if p != nil && !p(r, tags) {
				return false
			}
		}
		return true
	}
}
