package v2

// This file contains the variable width integer used for lengths, counts
// and nanoseconds. The top two bits of the first byte give the number of
// extra bytes.

import (
	"errors"
	"fmt"
)

// MaxVarint is the largest value a varint can hold.
const MaxVarint = 1<<30 - 1

var errShortVarint = errors.New("short read in varint")

// AppendVarint appends the big-endian varint encoding of v to b.
func AppendVarint(b []byte, v uint32) ([]byte, error) {
	switch {
	case v < 1<<6:
		return append(b, byte(v)), nil
	case v < 1<<14:
		v |= 0x4000
		return append(b, byte(v>>8), byte(v)), nil
	case v < 1<<22:
		v |= 0x800000
		return append(b, byte(v>>16), byte(v>>8), byte(v)), nil
	case v <= MaxVarint:
		v |= 0xc0000000
		return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	}
	return b, fmt.Errorf("value %d too large for a varint", v)
}

// varintWidth returns the total byte width announced by a first byte.
func varintWidth(first byte) int {
	return int(first>>6) + 1
}

// ReadVarint decodes the varint at the start of b and returns it with the
// number of bytes consumed.
func ReadVarint(b []byte) (uint32, int, error) {
	if len(b) == 0 {
		return 0, 0, errShortVarint
	}
	n := varintWidth(b[0])
	if len(b) < n {
		return 0, 0, errShortVarint
	}
	v := uint32(b[0] & 0x3f)
	for _, c := range b[1:n] {
		v = v<<8 | uint32(c)
	}
	return v, n, nil
}
