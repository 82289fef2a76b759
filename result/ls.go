package result

// This file contains the listing sinks used by the ls command.

import (
	"fmt"
	"io"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/perfgo/subunit/model"
)

// TestIDPrinterOption configures a TestIDPrinter.
type TestIDPrinterOption func(*TestIDPrinter)

// WithTimes appends the duration of each test in seconds.
func WithTimes(show bool) TestIDPrinterOption {
	return func(p *TestIDPrinter) {
		p.times = show
	}
}

// WithExists also lists tests that were only declared.
func WithExists(show bool) TestIDPrinterOption {
	return func(p *TestIDPrinter) {
		p.exists = show
	}
}

// WithShellQuoting quotes ids so they can be pasted into a shell.
func WithShellQuoting(quote bool) TestIDPrinterOption {
	return func(p *TestIDPrinter) {
		p.quote = quote
	}
}

// TestIDPrinter writes the id of every test that finished, one per line.
type TestIDPrinter struct {
	Base
	w      io.Writer
	times  bool
	exists bool
	quote  bool

	now    time.Time
	starts map[string]time.Time
}

func NewTestIDPrinter(w io.Writer, opts ...TestIDPrinterOption) *TestIDPrinter {
	p := &TestIDPrinter{w: w, starts: make(map[string]time.Time)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TestIDPrinter) Time(t time.Time) error {
	p.now = t
	return nil
}

func (p *TestIDPrinter) StartTest(id string) error {
	p.starts[id] = p.now
	return nil
}

func (p *TestIDPrinter) AddOutcome(r model.Result) error {
	if r.Outcome == model.Exists && !p.exists {
		return nil
	}
	if r.Outcome != model.Exists && !r.Outcome.Final() {
		return nil
	}

	id := r.TestID
	if p.quote {
		id = shellescape.Quote(id)
	}
	line := id
	if p.times && r.Outcome != model.Exists {
		var d time.Duration
		if start, ok := p.starts[r.TestID]; ok && !start.IsZero() {
			d = p.now.Sub(start)
		}
		line = fmt.Sprintf("%s %0.3f", id, d.Seconds())
	}
	delete(p.starts, r.TestID)

	if _, err := fmt.Fprintln(p.w, line); err != nil {
		return fmt.Errorf("failed to write test id: %w", err)
	}
	return nil
}

// Cat writes the content of every File call, typically the non-subunit
// bytes of a stream.
type Cat struct {
	Base
	w io.Writer
}

func NewCat(w io.Writer) *Cat {
	return &Cat{w: w}
}

func (c *Cat) File(f model.File) error {
	if _, err := c.w.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return nil
}
