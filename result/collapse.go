package result

// This file contains the tag and time collapsing sinks.

import (
	"time"

	"github.com/perfgo/subunit/model"
)

// TagCollapser merges consecutive Tags calls into one change, emitted
// before the next non-tag call. Later calls win: a tag gained and then
// lost ends up lost, a tag lost and then gained ends up gained.
type TagCollapser struct {
	sink         Sink
	gained, lost model.TagSet
	pending      bool
}

func NewTagCollapser(sink Sink) *TagCollapser {
	return &TagCollapser{sink: sink}
}

func (c *TagCollapser) flush() error {
	if !c.pending {
		return nil
	}
	c.pending = false
	if len(c.gained) == 0 && len(c.lost) == 0 {
		return nil
	}
	return c.sink.Tags(c.gained.Sorted(), c.lost.Sorted())
}

func (c *TagCollapser) Tags(gained, lost []string) error {
	if !c.pending {
		c.gained, c.lost, c.pending = model.NewTagSet(), model.NewTagSet(), true
	}
	for _, tag := range lost {
		delete(c.gained, tag)
	}
	for _, tag := range gained {
		delete(c.lost, tag)
		c.gained[tag] = struct{}{}
	}
	for _, tag := range lost {
		c.lost[tag] = struct{}{}
	}
	return nil
}

func (c *TagCollapser) StartTestRun() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StartTestRun()
}

func (c *TagCollapser) StopTestRun() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StopTestRun()
}

func (c *TagCollapser) StartTest(id string) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StartTest(id)
}

func (c *TagCollapser) StopTest(id string) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StopTest(id)
}

func (c *TagCollapser) AddOutcome(r model.Result) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.AddOutcome(r)
}

func (c *TagCollapser) Progress(p model.Progress) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.Progress(p)
}

func (c *TagCollapser) Time(t time.Time) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.Time(t)
}

func (c *TagCollapser) File(f model.File) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.File(f)
}

// TimeCollapser reduces a run of consecutive Time calls to its first and
// last timestamp. The first is always forwarded; the last only when it
// differs from the first.
type TimeCollapser struct {
	sink    Sink
	inRun   bool
	first   time.Time
	pending time.Time
	queued  bool
}

func NewTimeCollapser(sink Sink) *TimeCollapser {
	return &TimeCollapser{sink: sink}
}

func (c *TimeCollapser) flush() error {
	c.inRun = false
	if !c.queued {
		return nil
	}
	c.queued = false
	if c.pending.Equal(c.first) {
		return nil
	}
	return c.sink.Time(c.pending)
}

func (c *TimeCollapser) Time(t time.Time) error {
	if !c.inRun {
		c.inRun, c.first = true, t
		return c.sink.Time(t)
	}
	c.pending, c.queued = t, true
	return nil
}

func (c *TimeCollapser) StartTestRun() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StartTestRun()
}

func (c *TimeCollapser) StopTestRun() error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StopTestRun()
}

func (c *TimeCollapser) StartTest(id string) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StartTest(id)
}

func (c *TimeCollapser) StopTest(id string) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.StopTest(id)
}

func (c *TimeCollapser) AddOutcome(r model.Result) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.AddOutcome(r)
}

func (c *TimeCollapser) Tags(gained, lost []string) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.Tags(gained, lost)
}

func (c *TimeCollapser) Progress(p model.Progress) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.Progress(p)
}

func (c *TimeCollapser) File(f model.File) error {
	if err := c.flush(); err != nil {
		return err
	}
	return c.sink.File(f)
}
