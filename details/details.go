package details

// This file contains the parsers for the details block that may follow a
// v1 outcome line: a single implicit traceback, or named MIME parts with
// chunked bodies.

import (
	"bytes"
	"strings"

	"github.com/perfgo/subunit/chunked"
	"github.com/perfgo/subunit/model"
	"github.com/perfgo/subunit/protoerr"
)

var (
	endMarker    = []byte("]\n")
	quotedMarker = []byte(" ]")
)

// Style selects the synthetic attachment produced by a simple block.
type Style uint8

const (
	StyleTraceback Style = iota
	StyleSkip
	StyleMessage
)

// StyleFor returns the style used for an outcome's simple details.
func StyleFor(outcome model.Outcome) Style {
	switch outcome {
	case model.Skip:
		return StyleSkip
	case model.Success:
		return StyleMessage
	}
	return StyleTraceback
}

// Synthetic returns the attachment name and content type a simple block
// gets for the given style.
func Synthetic(style Style) (string, model.ContentType) {
	switch style {
	case StyleSkip:
		return "reason", model.PlainTextType
	case StyleMessage:
		return "message", model.PlainTextType
	}
	return "traceback", model.TracebackType
}

// Parser consumes the lines of a details block. LineReceived reports done
// once the closing marker has been consumed.
type Parser interface {
	LineReceived(line []byte) (done bool, err error)
	Details(style Style) model.Details
	// Message returns the raw text of a simple block, or nil.
	Message() []byte
}

// New returns the parser selected by the block opening syntax.
func New(multipart bool) Parser {
	if multipart {
		return NewMultipart()
	}
	return NewSimple()
}

// Simple accumulates raw lines up to the closing marker.
type Simple struct {
	message []byte
}

func NewSimple() *Simple {
	return &Simple{message: []byte{}}
}

func (s *Simple) LineReceived(line []byte) (bool, error) {
	if bytes.Equal(line, endMarker) {
		return true, nil
	}
	if bytes.HasPrefix(line, quotedMarker) {
		line = line[1:]
	}
	s.message = append(s.message, line...)
	return false, nil
}

func (s *Simple) Details(style Style) model.Details {
	name, ct := Synthetic(style)
	return model.Details{name: {ContentType: ct, Data: s.message}}
}

func (s *Simple) Message() []byte {
	return s.message
}

type multipartState uint8

const (
	lookForContent multipartState = iota
	getName
	feedChunks
)

// Multipart reads "Content-Type: type/subtype", a name line and a chunked
// body for each part until the closing marker.
type Multipart struct {
	state       multipartState
	details     model.Details
	contentType model.ContentType
	name        string
	body        *bytes.Buffer
	decoder     *chunked.Decoder
	line        int
}

func NewMultipart() *Multipart {
	return &Multipart{details: model.Details{}}
}

func (m *Multipart) LineReceived(line []byte) (bool, error) {
	m.line++
	switch m.state {
	case lookForContent:
		if bytes.Equal(line, endMarker) {
			return true, nil
		}
		return false, m.lookForContent(line)
	case getName:
		m.name = strings.TrimSuffix(string(line), "\n")
		m.body = &bytes.Buffer{}
		m.decoder = chunked.NewDecoder(m.body, false)
		m.state = feedChunks
		return false, nil
	case feedChunks:
		residue, err := m.decoder.Write(line)
		if err != nil {
			e := protoerr.AtLine(protoerr.ErrMalformedDetails, m.line, "bad chunked body for %q", m.name)
			e.Err = err
			return false, e
		}
		if residue == nil {
			return false, nil
		}
		if len(residue) > 0 {
			return false, protoerr.AtLine(protoerr.ErrMalformedDetails, m.line, "unexpected %q after body of %q", residue, m.name)
		}
		m.details[m.name] = model.Attachment{ContentType: m.contentType, Data: m.body.Bytes()}
		m.state = lookForContent
		return false, nil
	}
	return false, nil
}

func (m *Multipart) lookForContent(line []byte) error {
	_, value, ok := strings.Cut(strings.TrimSuffix(string(line), "\n"), " ")
	if !ok {
		return protoerr.AtLine(protoerr.ErrMalformedDetails, m.line, "expected content type header, got %q", line)
	}
	ct, err := model.ParseContentType(value)
	if err != nil {
		return protoerr.AtLine(protoerr.ErrMalformedDetails, m.line, "%v", err)
	}
	m.contentType = ct
	m.state = getName
	return nil
}

func (m *Multipart) Details(Style) model.Details {
	return m.details
}

// Message is always nil: multipart blocks have no implicit traceback.
func (m *Multipart) Message() []byte {
	return nil
}
