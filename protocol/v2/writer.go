package v2

// This file contains the v2 writer, a sink that encodes events as packets.

import (
	"fmt"
	"io"
	"time"

	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/result"
)

// FileChunkSize is the largest file content carried by one packet.
const FileChunkSize = 65536

var outcomeStatus = map[model.Outcome]Status{
	model.Exists:     StatusExists,
	model.InProgress: StatusInProgress,
	model.Success:    StatusSuccess,
	model.UxSuccess:  StatusUxSuccess,
	model.Skip:       StatusSkip,
	model.Failure:    StatusFail,
	// v2 has no error status
	model.Error: StatusFail,
	model.XFail: StatusXFail,
}

// Writer encodes sink calls as v2 packets.
type Writer struct {
	w       io.Writer
	options options

	now      time.Time
	global   model.TagSet
	testTags model.TagSet
	current  string
	buf      []byte
}

var _ result.Sink = (*Writer)(nil)

// NewWriter returns a writer emitting packets to w.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	return &Writer{
		w:       w,
		options: newOptions(opts),
		global:  model.NewTagSet(),
	}
}

func (w *Writer) write(p *Packet) error {
	p.Runnable = true
	p.Timestamp = w.now
	var err error
	if w.buf, err = AppendPacket(w.buf[:0], p); err != nil {
		return fmt.Errorf("failed to encode packet for %q: %w", p.TestID, err)
	}
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

func (w *Writer) tags() model.TagSet {
	if w.testTags != nil {
		return w.testTags
	}
	return w.global
}

func (w *Writer) statusTags(extra []string) []string {
	tags := w.tags().Clone()
	tags.Apply(extra, nil)
	if len(tags) == 0 {
		return nil
	}
	return tags.Sorted()
}

func (w *Writer) StartTestRun() error { return nil }

func (w *Writer) StopTestRun() error { return nil }

func (w *Writer) StartTest(id string) error {
	w.current = id
	w.testTags = w.global.Clone()
	return w.write(&Packet{TestID: id, Status: StatusInProgress, Tags: w.statusTags(nil)})
}

func (w *Writer) StopTest(string) error {
	w.current = ""
	w.testTags = nil
	return nil
}

func (w *Writer) AddOutcome(r model.Result) error {
	for _, name := range r.Details.Names() {
		a := r.Details[name]
		if err := w.writeFile(r.TestID, r.RouteCode, name, a.ContentType, a.Data, true); err != nil {
			return err
		}
	}
	status, ok := outcomeStatus[r.Outcome]
	if !ok {
		w.options.logger.Debug().Str("test", r.TestID).Stringer("outcome", r.Outcome).Msg("Dropping outcome without v2 status")
		return nil
	}
	return w.write(&Packet{
		TestID:    r.TestID,
		RouteCode: r.RouteCode,
		Status:    status,
		Tags:      w.statusTags(r.Tags),
	})
}

// writeFile splits data into packets of at most FileChunkSize bytes. At
// least one packet is written so empty content still arrives.
func (w *Writer) writeFile(testID, routeCode, name string, ct model.ContentType, data []byte, eof bool) error {
	for {
		n := min(len(data), FileChunkSize)
		last := n == len(data)
		p := &Packet{
			TestID:      testID,
			RouteCode:   routeCode,
			MIMEType:    mimeString(ct),
			FileName:    name,
			FileContent: data[:n:n],
			EOF:         last && eof,
		}
		if err := w.write(p); err != nil {
			return err
		}
		if last {
			return nil
		}
		data = data[n:]
	}
}

func mimeString(ct model.ContentType) string {
	if ct.Type == "" {
		return ""
	}
	return ct.String()
}

func (w *Writer) Tags(gained, lost []string) error {
	w.tags().Apply(gained, lost)
	return nil
}

func (w *Writer) Progress(p model.Progress) error {
	w.options.logger.Debug().Stringer("progress", p).Msg("Dropping progress, v2 has no progress packet")
	return nil
}

func (w *Writer) Time(t time.Time) error {
	w.now = t.UTC()
	return nil
}

func (w *Writer) File(f model.File) error {
	name := f.Name
	if name == "" {
		name = w.options.nonSubunitName
	}
	return w.writeFile(f.TestID, f.RouteCode, name, f.ContentType, f.Data, f.EOF)
}
