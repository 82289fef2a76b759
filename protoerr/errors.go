package protoerr

// This file contains the error taxonomy shared by the codecs and the
// protocol state machines.

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedChunk is a bad hex length, a short body or an unterminated chunk stream.
	ErrMalformedChunk = errors.New("malformed chunk")
	// ErrMalformedDetails is a bad MIME header or a missing details terminator.
	ErrMalformedDetails = errors.New("malformed details")
	// ErrMalformedPacket is a v2 framing, checksum or field error.
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrProtocolViolation is a v1 directive that is not allowed in the current state.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrTruncatedStream means the input ended inside a test or a details block.
	ErrTruncatedStream = errors.New("truncated stream")
)

// Error carries the position of a decode failure. Offset is a byte offset
// into the input and Line a 1-based line number; either is -1 when unknown.
type Error struct {
	Kind   error
	Offset int64
	Line   int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	pos := ""
	switch {
	case e.Line >= 0:
		pos = fmt.Sprintf(" at line %d", e.Line)
	case e.Offset >= 0:
		pos = fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %s: %v", e.Kind, pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s%s: %s", e.Kind, pos, e.Msg)
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AtOffset returns an error of the given kind positioned at a byte offset.
func AtOffset(kind error, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Line: -1, Msg: fmt.Sprintf(format, args...)}
}

// AtLine returns an error of the given kind positioned at a line number.
func AtLine(kind error, line int, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: -1, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to an error of the given kind.
func Wrap(kind error, offset int64, err error, format string, args ...any) *Error {
	e := AtOffset(kind, offset, format, args...)
	e.Err = err
	return e
}
