package v1

// This file contains the v1 client, a sink that writes events as v1
// directives.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/perfgo/subunit/chunked"
	"github.com/perfgo/subunit/details"
	"github.com/perfgo/subunit/model"
)

// TimeLayout is the timestamp format written after "time: ".
const TimeLayout = "2006-01-02 15:04:05.000000Z"

var outcomeKeywords = map[model.Outcome]string{
	model.Success:   "successful",
	model.Failure:   "failure",
	model.Error:     "error",
	model.Skip:      "skip",
	model.XFail:     "xfail",
	model.UxSuccess: "uxsuccess",
}

// Client writes v1 directives to w. Exists outcomes and v2 only metadata
// (route codes, status tags) have no v1 form and are dropped.
type Client struct {
	w io.Writer
}

// NewClient returns a client writing to w.
func NewClient(w io.Writer) *Client {
	return &Client{w: w}
}

func (c *Client) write(b []byte) error {
	if _, err := c.w.Write(b); err != nil {
		return fmt.Errorf("failed to write v1 stream: %w", err)
	}
	return nil
}

func (c *Client) StartTestRun() error { return nil }

func (c *Client) StopTestRun() error { return nil }

func (c *Client) StartTest(id string) error {
	return c.write([]byte("test: " + id + "\n"))
}

func (c *Client) StopTest(string) error { return nil }

func (c *Client) AddOutcome(r model.Result) error {
	keyword, ok := outcomeKeywords[r.Outcome]
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString(keyword + ": " + r.TestID)
	switch {
	case len(r.Details) == 0:
		buf.WriteString("\n")
	default:
		if body, ok := simpleBody(r.Outcome, r.Details); ok {
			buf.WriteString(" [\n")
			buf.Write(body)
		} else {
			buf.WriteString(" [ multipart\n")
			if err := writeMultipart(&buf, r.Details); err != nil {
				return err
			}
		}
		buf.WriteString("]\n")
	}
	return c.write(buf.Bytes())
}

// simpleBody returns the escaped body of a simple details block when the
// details are exactly the synthetic attachment for the outcome and survive
// a round trip through the simple parser.
func simpleBody(outcome model.Outcome, d model.Details) ([]byte, bool) {
	if len(d) != 1 {
		return nil, false
	}
	name, ct := details.Synthetic(details.StyleFor(outcome))
	a, ok := d[name]
	if !ok || !a.ContentType.Equal(ct) {
		return nil, false
	}
	if len(a.Data) > 0 && a.Data[len(a.Data)-1] != '\n' {
		return nil, false
	}

	var buf bytes.Buffer
	for _, line := range bytes.SplitAfter(a.Data, []byte("\n")) {
		if bytes.HasPrefix(line, []byte(" ]")) {
			return nil, false
		}
		if bytes.HasPrefix(line, []byte("]")) {
			buf.WriteByte(' ')
		}
		buf.Write(line)
	}
	return buf.Bytes(), true
}

func writeMultipart(buf *bytes.Buffer, d model.Details) error {
	for _, name := range d.Names() {
		a := d[name]
		buf.WriteString("Content-Type: " + a.ContentType.V1String() + "\n")
		buf.WriteString(name + "\n")
		enc := chunked.NewEncoder(buf)
		if _, err := enc.Write(a.Data); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Tags(gained, lost []string) error {
	if len(gained) == 0 && len(lost) == 0 {
		return nil
	}
	words := append([]string(nil), model.NewTagSet(gained...).Sorted()...)
	for _, tag := range model.NewTagSet(lost...).Sorted() {
		words = append(words, "-"+tag)
	}
	return c.write([]byte("tags: " + strings.Join(words, " ") + "\n"))
}

func (c *Client) Progress(p model.Progress) error {
	return c.write([]byte("progress: " + p.String() + "\n"))
}

func (c *Client) Time(t time.Time) error {
	return c.write([]byte("time: " + t.UTC().Format(TimeLayout) + "\n"))
}

// File writes the content unchanged, which is how passthrough data is
// carried in a v1 stream.
func (c *Client) File(f model.File) error {
	if len(f.Data) == 0 {
		return nil
	}
	return c.write(f.Data)
}
