package chunked

// This file contains the chunked encoder.

import (
	"errors"
	"fmt"
	"io"
)

// BufferSize is the largest payload written in a single chunk.
const BufferSize = 65536

var errEncoderClosed = errors.New("chunked encoder closed")

// Encoder buffers writes and emits them as chunks of at most BufferSize
// bytes. Close always emits the terminal zero length chunk.
type Encoder struct {
	sink   io.Writer
	buf    []byte
	closed bool
}

// NewEncoder returns an encoder writing chunks to sink.
func NewEncoder(sink io.Writer) *Encoder {
	return &Encoder{sink: sink}
}

func (e *Encoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errEncoderClosed
	}
	written := 0
	for len(p) > 0 {
		space := BufferSize - len(e.buf)
		if space == 0 {
			if err := e.flush(); err != nil {
				return written, err
			}
			space = BufferSize
		}
		n := min(space, len(p))
		e.buf = append(e.buf, p[:n]...)
		p = p[n:]
		written += n
	}
	return written, nil
}

func (e *Encoder) flush() error {
	if len(e.buf) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(e.sink, "%X\r\n", len(e.buf)); err != nil {
		return fmt.Errorf("failed to write chunk header: %w", err)
	}
	if _, err := e.sink.Write(e.buf); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}
	e.buf = e.buf[:0]
	return nil
}

// Close flushes buffered bytes and writes the terminal chunk.
func (e *Encoder) Close() error {
	if e.closed {
		return errEncoderClosed
	}
	e.closed = true
	if err := e.flush(); err != nil {
		return err
	}
	if _, err := io.WriteString(e.sink, "0\r\n"); err != nil {
		return fmt.Errorf("failed to write terminal chunk: %w", err)
	}
	return nil
}
