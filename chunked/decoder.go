package chunked

// This file contains the decoder for the chunked sub-encoding used to carry
// attachment bodies of unknown length.

import (
	"fmt"
	"io"
	"strconv"

	"github.com/perfgo/subunit/protoerr"
)

// maxHexDigits bounds the chunk size token so a length always fits in 32 bits
const maxHexDigits = 8

type decoderState uint8

const (
	stateLength decoderState = iota
	stateBody
	stateFinished
)

// Decoder decodes a chunked stream fed in arbitrary fragments. Each chunk
// is "<hex length>\r\n<payload>" and a zero length chunk ends the stream.
type Decoder struct {
	sink      io.Writer
	strict    bool
	state     decoderState
	header    []byte
	remaining uint64
	offset    int64
}

// NewDecoder returns a decoder writing body bytes to sink. A strict decoder
// requires CRLF after the length; otherwise a bare LF is accepted too.
func NewDecoder(sink io.Writer, strict bool) *Decoder {
	return &Decoder{
		sink:   sink,
		strict: strict,
	}
}

// Finished reports whether the terminal chunk has been seen.
func (d *Decoder) Finished() bool {
	return d.state == stateFinished
}

// Write consumes p. It returns a nil residue while the stream is still
// open, and the bytes following the terminal chunk (possibly empty, never
// nil) once it has been seen.
func (d *Decoder) Write(p []byte) ([]byte, error) {
	if d.state == stateFinished {
		return nil, protoerr.AtOffset(protoerr.ErrMalformedChunk, d.offset, "write after finish")
	}

	for len(p) > 0 {
		switch d.state {
		case stateLength:
			n, err := d.readLength(p)
			if err != nil {
				return nil, err
			}
			p = p[n:]
			d.offset += int64(n)
			if d.state == stateFinished {
				residue := make([]byte, len(p))
				copy(residue, p)
				return residue, nil
			}
		case stateBody:
			n := len(p)
			if uint64(n) > d.remaining {
				n = int(d.remaining)
			}
			if _, err := d.sink.Write(p[:n]); err != nil {
				return nil, fmt.Errorf("failed to write chunk body: %w", err)
			}
			p = p[n:]
			d.offset += int64(n)
			d.remaining -= uint64(n)
			if d.remaining == 0 {
				d.state = stateLength
			}
		}
	}
	return nil, nil
}

// readLength consumes header bytes from p and returns how many it used.
func (d *Decoder) readLength(p []byte) (int, error) {
	for i, b := range p {
		switch {
		case isHex(b):
			if len(d.header) > 0 && d.header[len(d.header)-1] == '\r' {
				return 0, d.headerError(i, "carriage return inside chunk header %q", d.header)
			}
			if len(d.header) >= maxHexDigits {
				return 0, d.headerError(i, "chunk header too long %q", d.header)
			}
			d.header = append(d.header, b)
		case b == '\r':
			if d.strict && len(d.header) > 0 && d.header[len(d.header)-1] == '\r' {
				return 0, d.headerError(i, "too many CRs in chunk header %q", d.header)
			}
			d.header = append(d.header, b)
		case b == '\n':
			if err := d.finishHeader(i); err != nil {
				return 0, err
			}
			return i + 1, nil
		default:
			return 0, d.headerError(i, "invalid byte %q in chunk header", b)
		}
	}
	return len(p), nil
}

func (d *Decoder) finishHeader(pos int) error {
	header := d.header
	if d.strict {
		if len(header) == 0 || header[len(header)-1] != '\r' {
			return d.headerError(pos, "chunk header invalid %q", string(header)+"\n")
		}
	}
	for len(header) > 0 && header[len(header)-1] == '\r' {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return d.headerError(pos, "chunk header invalid %q", string(d.header)+"\n")
	}

	length, err := strconv.ParseUint(string(header), 16, 32)
	if err != nil {
		return protoerr.Wrap(protoerr.ErrMalformedChunk, d.offset+int64(pos), err, "chunk header invalid %q", header)
	}

	d.header = d.header[:0]
	d.remaining = length
	if length == 0 {
		d.state = stateFinished
	} else {
		d.state = stateBody
	}
	return nil
}

func (d *Decoder) headerError(pos int, format string, args ...any) error {
	return protoerr.AtOffset(protoerr.ErrMalformedChunk, d.offset+int64(pos), format, args...)
}

// Close checks that the stream ended on a chunk boundary after the
// terminal chunk. It is safe to call after the stream finished.
func (d *Decoder) Close() error {
	switch d.state {
	case stateLength:
		return protoerr.AtOffset(protoerr.ErrMalformedChunk, d.offset, "chunk header invalid %q: stream not terminated", d.header)
	case stateBody:
		return protoerr.AtOffset(protoerr.ErrMalformedChunk, d.offset, "incomplete chunk: %d bytes missing", d.remaining)
	}
	return nil
}

func isHex(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}
