package v2

// This file contains the v2 decoder: it reads frames and turns them into
// sink events, buffering file content until the owning test finishes.

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/result"
)

// ParserTestID is the id of the synthetic test reporting a framing error.
const ParserTestID = "subunit.parser"

// DefaultNonSubunitName is the file name given to bytes outside packets.
const DefaultNonSubunitName = "stdout"

type options struct {
	logger         zerolog.Logger
	nonSubunitName string
}

func newOptions(opts []Option) options {
	o := options{
		logger:         zerolog.Nop(),
		nonSubunitName: DefaultNonSubunitName,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Decoder or Writer.
type Option func(*options)

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNonSubunitName sets the file name used for bytes that are not part of
// a packet.
func WithNonSubunitName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.nonSubunitName = name
		}
	}
}

type openTest struct {
	started   bool
	routeCode string
	details   model.Details
	tags      model.TagSet
}

// Decoder turns a v2 byte stream into sink events.
type Decoder struct {
	reader  *Reader
	sink    result.Sink
	options options

	lastTime time.Time
	open     map[string]*openTest
	order    []string
}

// NewDecoder returns a decoder reading r.
func NewDecoder(r io.Reader, sink result.Sink, opts ...Option) *Decoder {
	return &Decoder{
		reader:  NewReader(r),
		sink:    sink,
		options: newOptions(opts),
		open:    make(map[string]*openTest),
	}
}

// Run decodes the whole stream. Tests still open at the end are reported
// as errors. A malformed packet is reported as a failure of ParserTestID
// and ends decoding with the packet error.
func (d *Decoder) Run() error {
	for {
		frame, err := d.reader.Next()
		if errors.Is(err, io.EOF) {
			return d.closeOpen()
		}
		if err != nil {
			if rerr := d.reportParserError(frame, err); rerr != nil {
				return errors.Join(err, rerr)
			}
			if cerr := d.closeOpen(); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		if frame.Packet == nil {
			d.options.logger.Debug().Int64("offset", frame.Offset).Int("bytes", len(frame.Raw)).Msg("Passing through non-subunit bytes")
			if err := d.sink.File(model.File{
				Name: d.options.nonSubunitName,
				Data: frame.Raw,
			}); err != nil {
				return err
			}
			continue
		}
		if err := d.handle(frame.Packet); err != nil {
			return err
		}
	}
}

func (d *Decoder) reportParserError(frame Frame, perr error) error {
	d.options.logger.Debug().Int64("offset", frame.Offset).Err(perr).Msg("Malformed packet")
	if err := d.sink.StartTest(ParserTestID); err != nil {
		return err
	}
	if err := d.sink.AddOutcome(model.Result{
		TestID:  ParserTestID,
		Outcome: model.Failure,
		Details: model.Details{
			"Packet data":  {ContentType: model.OctetStreamType, Data: frame.Raw},
			"Parser Error": {ContentType: model.UTF8TextType, Data: []byte(perr.Error())},
		},
	}); err != nil {
		return err
	}
	return d.sink.StopTest(ParserTestID)
}

func (d *Decoder) contentType(p *Packet) model.ContentType {
	if p.MIMEType == "" {
		return model.OctetStreamType
	}
	ct, err := model.ParseContentType(p.MIMEType)
	if err != nil {
		d.options.logger.Debug().Str("mime", p.MIMEType).Err(err).Msg("Unparseable MIME type, using octet-stream")
		return model.OctetStreamType
	}
	return ct
}

func (d *Decoder) handle(p *Packet) error {
	if !p.Timestamp.IsZero() && !p.Timestamp.Equal(d.lastTime) {
		d.lastTime = p.Timestamp
		if err := d.sink.Time(p.Timestamp); err != nil {
			return err
		}
	}

	if p.TestID == "" {
		if p.HasFile() {
			// test-less content keeps an absent MIME type absent
			var ct model.ContentType
			if p.MIMEType != "" {
				ct = d.contentType(p)
			}
			return d.sink.File(model.File{
				RouteCode:   p.RouteCode,
				Name:        p.FileName,
				ContentType: ct,
				Data:        p.FileContent,
				EOF:         p.EOF,
			})
		}
		if p.Status != StatusNone {
			d.options.logger.Debug().Stringer("status", p.Status).Msg("Ignoring status without test id")
		}
		return nil
	}

	if p.Status == StatusExists {
		return d.sink.AddOutcome(model.Result{
			TestID:    p.TestID,
			Outcome:   model.Exists,
			Tags:      p.Tags,
			RouteCode: p.RouteCode,
		})
	}

	t := d.open[p.TestID]
	if t == nil {
		t = &openTest{routeCode: p.RouteCode, details: model.Details{}, tags: model.NewTagSet()}
		d.open[p.TestID] = t
		d.order = append(d.order, p.TestID)
	}
	if p.HasFile() {
		a := t.details[p.FileName]
		a.ContentType = d.contentType(p)
		a.Data = append(a.Data, p.FileContent...)
		t.details[p.FileName] = a
	}
	if p.Status == StatusInProgress || p.Status.Final() {
		if err := d.start(p.TestID, t); err != nil {
			return err
		}
		if err := d.testTags(t, p.Tags); err != nil {
			return err
		}
	}
	if !p.Status.Final() {
		return nil
	}
	return d.finish(p.TestID, t, model.Result{
		TestID:    p.TestID,
		Outcome:   statusOutcome(p.Status),
		Tags:      p.Tags,
		RouteCode: p.RouteCode,
	})
}

func (d *Decoder) start(id string, t *openTest) error {
	if t.started {
		return nil
	}
	t.started = true
	return d.sink.StartTest(id)
}

// testTags reports the status tags of a test that were not reported yet.
func (d *Decoder) testTags(t *openTest, tags []string) error {
	var gained []string
	for _, tag := range model.NewTagSet(tags...).Minus(t.tags) {
		gained = append(gained, tag)
		t.tags[tag] = struct{}{}
	}
	if len(gained) == 0 {
		return nil
	}
	return d.sink.Tags(gained, nil)
}

func (d *Decoder) finish(id string, t *openTest, r model.Result) error {
	delete(d.open, id)
	for i, open := range d.order {
		if open == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if len(t.details) > 0 {
		r.Details = t.details
	}
	if err := d.sink.AddOutcome(r); err != nil {
		return err
	}
	return d.sink.StopTest(id)
}

// closeOpen reports every test still open as lost.
func (d *Decoder) closeOpen() error {
	for len(d.order) > 0 {
		id := d.order[0]
		t := d.open[id]
		d.options.logger.Warn().Str("test", id).Msg("Stream ended inside test")
		if err := d.start(id, t); err != nil {
			return err
		}
		t.details["traceback"] = model.Traceback(fmt.Sprintf("lost connection during test '%s'", id))
		if err := d.finish(id, t, model.Result{TestID: id, Outcome: model.Error, RouteCode: t.routeCode}); err != nil {
			return err
		}
	}
	return nil
}

func statusOutcome(s Status) model.Outcome {
	switch s {
	case StatusExists:
		return model.Exists
	case StatusInProgress:
		return model.InProgress
	case StatusSuccess:
		return model.Success
	case StatusUxSuccess:
		return model.UxSuccess
	case StatusSkip:
		return model.Skip
	case StatusFail:
		return model.Failure
	case StatusXFail:
		return model.XFail
	}
	return model.Unknown
}
