package v2

// This file contains the frame reader that splits a byte stream into
// packets and runs of non-subunit bytes.

import (
	"bufio"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"

	"github.com/perfgo/subunit/protoerr"
)

// Frame is either a decoded packet or a run of bytes that are not part of
// the protocol. Raw holds the bytes the frame was read from; for a failed
// packet it holds what was read before the error.
type Frame struct {
	Offset int64
	Packet *Packet
	Raw    []byte
}

// Reader reads frames from a stream.
type Reader struct {
	r      *bufio.Reader
	offset int64
}

// NewReader returns a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next frame, or io.EOF at the end of the stream. Packet
// errors are *protoerr.Error of kind ErrMalformedPacket; the returned frame
// still carries the offset and the bytes read.
func (r *Reader) Next() (Frame, error) {
	first, err := r.r.Peek(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{Offset: r.offset}, io.EOF
		}
		return Frame{Offset: r.offset}, err
	}
	if first[0] == Signature {
		return r.readPacket()
	}
	return r.readNonSubunit()
}

// readNonSubunit collects bytes up to the next signature byte, a newline
// or the end of what is already buffered.
func (r *Reader) readNonSubunit() (Frame, error) {
	frame := Frame{Offset: r.offset}
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			break
		}
		frame.Raw = append(frame.Raw, c)
		if c == '\n' || r.r.Buffered() == 0 {
			break
		}
		if next, err := r.r.Peek(1); err != nil || next[0] == Signature {
			break
		}
	}
	r.offset += int64(len(frame.Raw))
	return frame, nil
}

func (r *Reader) readPacket() (Frame, error) {
	frame := Frame{Offset: r.offset}
	fail := func(format string, args ...any) (Frame, error) {
		r.offset += int64(len(frame.Raw))
		return frame, protoerr.AtOffset(protoerr.ErrMalformedPacket, frame.Offset, format, args...)
	}
	read := func(n int) bool {
		buf := make([]byte, n)
		got, _ := io.ReadFull(r.r, buf)
		frame.Raw = append(frame.Raw, buf[:got]...)
		return got == n
	}

	if !read(4) {
		return fail("short read: packet header truncated after %d bytes", len(frame.Raw))
	}
	flags := binary.BigEndian.Uint16(frame.Raw[1:3])
	if flags&versionMask != flagVersion {
		return fail("bad version %d", flags>>12)
	}
	width := varintWidth(frame.Raw[3])
	if width > 3 {
		return fail("3 byte maximum given but 4 byte value found")
	}
	if !read(width - 1) {
		return fail("short read: length truncated")
	}
	length, _, _ := ReadVarint(frame.Raw[3:])
	header := 3 + width
	if int(length) < header+4 {
		return fail("length %d is shorter than the packet header", length)
	}
	if !read(int(length) - header) {
		return fail("short read: wanted %d bytes, got %d", length, len(frame.Raw))
	}

	stored := binary.BigEndian.Uint32(frame.Raw[length-4:])
	if calculated := crc32.ChecksumIEEE(frame.Raw[:length-4]); calculated != stored {
		return fail("Bad checksum - calculated (0x%x), stored (0x%x)", calculated, stored)
	}
	p, err := parseFields(flags, frame.Raw[header:length-4])
	if err != nil {
		return fail("%v", err)
	}
	frame.Packet = p
	r.offset += int64(length)
	return frame, nil
}
