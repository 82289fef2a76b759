package timing

// This file contains a sink that turns test durations into a pprof profile,
// so a run can be explored with `go tool pprof` like a CPU profile.

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/pprof/profile"

	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/result"
)

// DefaultSeparators split a test id into stack frames.
const DefaultSeparators = "./"

// OutcomeLabel is the sample label carrying the test outcome.
const OutcomeLabel = "outcome"

// Option configures a Builder.
type Option func(*Builder)

// WithSeparators sets the characters that split a test id into frames. An
// empty string keeps each test id as a single frame.
func WithSeparators(seps string) Option {
	return func(b *Builder) {
		b.separators = seps
	}
}

// Builder records the duration of every finished test as a sample whose
// stack is the test id split into its components, root first.
type Builder struct {
	result.Base
	separators string

	profile   *profile.Profile
	functions map[string]*profile.Function
	locations map[string]*profile.Location

	now    time.Time
	first  time.Time
	starts map[string]time.Time
}

// New creates a new builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		separators: DefaultSeparators,
		functions:  make(map[string]*profile.Function),
		locations:  make(map[string]*profile.Location),
		starts:     make(map[string]time.Time),
		profile: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "duration", Unit: "nanoseconds"},
				{Type: "tests", Unit: "count"},
			},
			PeriodType: &profile.ValueType{Type: "duration", Unit: "nanoseconds"},
			Period:     1,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Time(t time.Time) error {
	if b.first.IsZero() {
		b.first = t
	}
	b.now = t
	return nil
}

func (b *Builder) StartTest(id string) error {
	b.starts[id] = b.now
	return nil
}

func (b *Builder) AddOutcome(r model.Result) error {
	if !r.Outcome.Final() {
		return nil
	}

	var d time.Duration
	if start, ok := b.starts[r.TestID]; ok && !start.IsZero() {
		d = b.now.Sub(start)
	}
	delete(b.starts, r.TestID)
	if d < 0 {
		d = 0
	}

	b.addSample(b.stack(r.TestID), r.Outcome.String(), d)
	return nil
}

// frames splits id into cumulative names: "a.b/c" gives "a", "a.b", "a.b/c".
func (b *Builder) frames(id string) []string {
	var names []string
	if b.separators != "" {
		for i := 1; i < len(id); i++ {
			if strings.ContainsRune(b.separators, rune(id[i])) && id[i-1] != id[i] {
				names = append(names, id[:i])
			}
		}
	}
	return append(names, id)
}

// stack returns the locations of id, leaf first as pprof expects.
func (b *Builder) stack(id string) []*profile.Location {
	names := b.frames(id)
	stack := make([]*profile.Location, len(names))
	for i, name := range names {
		stack[len(names)-1-i] = b.getOrCreateLocation(name)
	}
	return stack
}

func (b *Builder) getOrCreateFunction(name string) *profile.Function {
	if fn, exists := b.functions[name]; exists {
		return fn
	}

	fn := &profile.Function{
		ID:         uint64(len(b.profile.Function) + 1),
		Name:       name,
		SystemName: name,
	}
	b.functions[name] = fn
	b.profile.Function = append(b.profile.Function, fn)
	return fn
}

func (b *Builder) getOrCreateLocation(name string) *profile.Location {
	if loc, exists := b.locations[name]; exists {
		return loc
	}

	loc := &profile.Location{
		ID:   uint64(len(b.profile.Location) + 1),
		Line: []profile.Line{{Function: b.getOrCreateFunction(name)}},
	}
	b.locations[name] = loc
	b.profile.Location = append(b.profile.Location, loc)
	return loc
}

// addSample merges into an existing sample with the same stack and outcome.
func (b *Builder) addSample(stack []*profile.Location, outcome string, d time.Duration) {
	for _, existing := range b.profile.Sample {
		if existing.Label[OutcomeLabel][0] == outcome && stacksEqual(existing.Location, stack) {
			existing.Value[0] += d.Nanoseconds()
			existing.Value[1]++
			return
		}
	}

	b.profile.Sample = append(b.profile.Sample, &profile.Sample{
		Location: stack,
		Value:    []int64{d.Nanoseconds(), 1},
		Label:    map[string][]string{OutcomeLabel: {outcome}},
	})
}

// stacksEqual returns true if two stacks have the same location IDs
func stacksEqual(a, b []*profile.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// Profile returns the profile built so far. Its time span covers the first
// and the last timestamp of the stream.
func (b *Builder) Profile() *profile.Profile {
	if !b.first.IsZero() {
		b.profile.TimeNanos = b.first.UnixNano()
		b.profile.DurationNanos = b.now.Sub(b.first).Nanoseconds()
	}
	return b.profile
}

// Write writes the gzipped profile to w.
func (b *Builder) Write(w io.Writer) error {
	if err := b.Profile().Write(w); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}
