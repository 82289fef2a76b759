package v2

// This file contains the v2 packet and its binary encoding.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Signature is the first byte of every packet.
const Signature byte = 0xB3

// MaxPacketLength is the largest total packet size a 3 byte length allows.
const MaxPacketLength = 4*1024*1024 - 1

const (
	flagVersion     uint16 = 0x2000
	flagTestID      uint16 = 0x0800
	flagRouteCode   uint16 = 0x0400
	flagTimestamp   uint16 = 0x0200
	flagRunnable    uint16 = 0x0100
	flagTags        uint16 = 0x0080
	flagMIMEType    uint16 = 0x0040
	flagEOF         uint16 = 0x0020
	flagFileContent uint16 = 0x0010
	statusMask      uint16 = 0x0007
	versionMask     uint16 = 0xf000
)

// Status is the 3 bit test status of a packet.
type Status uint8

const (
	StatusNone Status = iota
	StatusExists
	StatusInProgress
	StatusSuccess
	StatusUxSuccess
	StatusSkip
	StatusFail
	StatusXFail
)

var statusNames = [...]string{"none", "exists", "inprogress", "success", "uxsuccess", "skip", "fail", "xfail"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// Final reports whether the status closes a test.
func (s Status) Final() bool {
	return s >= StatusSuccess
}

// Packet is one decoded v2 packet. Optional fields are absent when zero:
// Tags is present when non-nil and the file field when FileName is set or
// FileContent is non-nil.
type Packet struct {
	TestID      string
	RouteCode   string
	Timestamp   time.Time
	Tags        []string
	MIMEType    string
	FileName    string
	FileContent []byte
	EOF         bool
	Runnable    bool
	Status      Status
}

// HasFile reports whether the packet carries a file field.
func (p *Packet) HasFile() bool {
	return p.FileName != "" || p.FileContent != nil
}

func (p *Packet) flags() uint16 {
	flags := flagVersion | uint16(p.Status)&statusMask
	if p.TestID != "" {
		flags |= flagTestID
	}
	if p.RouteCode != "" {
		flags |= flagRouteCode
	}
	if !p.Timestamp.IsZero() {
		flags |= flagTimestamp
	}
	if p.Runnable {
		flags |= flagRunnable
	}
	if p.Tags != nil {
		flags |= flagTags
	}
	if p.MIMEType != "" {
		flags |= flagMIMEType
	}
	if p.EOF {
		flags |= flagEOF
	}
	if p.HasFile() {
		flags |= flagFileContent
	}
	return flags
}

// MarshalBinary encodes the packet.
func (p *Packet) MarshalBinary() ([]byte, error) {
	return AppendPacket(nil, p)
}

// AppendPacket appends the encoding of p to dst.
func AppendPacket(dst []byte, p *Packet) ([]byte, error) {
	body, err := p.appendFields(nil)
	if err != nil {
		return dst, err
	}

	base := 1 + 2 + len(body) + 4
	var length int
	switch {
	case base <= 62:
		length = base + 1
	case base <= 16381:
		length = base + 2
	case base <= 4194300:
		length = base + 3
	default:
		return dst, fmt.Errorf("packet of %d bytes exceeds the %d byte limit", base, MaxPacketLength)
	}

	start := len(dst)
	dst = append(dst, Signature)
	dst = binary.BigEndian.AppendUint16(dst, p.flags())
	if dst, err = AppendVarint(dst, uint32(length)); err != nil {
		return dst[:start], err
	}
	dst = append(dst, body...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:])), nil
}

func (p *Packet) appendFields(b []byte) ([]byte, error) {
	var err error
	if !p.Timestamp.IsZero() {
		secs := p.Timestamp.Unix()
		if secs < 0 || secs > math.MaxUint32 {
			return nil, fmt.Errorf("timestamp %s out of range", p.Timestamp.UTC().Format(time.RFC3339))
		}
		b = binary.BigEndian.AppendUint32(b, uint32(secs))
		if b, err = AppendVarint(b, uint32(p.Timestamp.Nanosecond())); err != nil {
			return nil, err
		}
	}
	if p.TestID != "" {
		if b, err = appendString(b, p.TestID); err != nil {
			return nil, fmt.Errorf("test id: %w", err)
		}
	}
	if p.Tags != nil {
		tags := append([]string(nil), p.Tags...)
		sort.Strings(tags)
		if b, err = AppendVarint(b, uint32(len(tags))); err != nil {
			return nil, err
		}
		for _, tag := range tags {
			if b, err = appendString(b, tag); err != nil {
				return nil, fmt.Errorf("tag: %w", err)
			}
		}
	}
	if p.MIMEType != "" {
		if b, err = appendString(b, p.MIMEType); err != nil {
			return nil, fmt.Errorf("mime type: %w", err)
		}
	}
	if p.HasFile() {
		if b, err = appendString(b, p.FileName); err != nil {
			return nil, fmt.Errorf("file name: %w", err)
		}
		if b, err = AppendVarint(b, uint32(len(p.FileContent))); err != nil {
			return nil, err
		}
		b = append(b, p.FileContent...)
	}
	if p.RouteCode != "" {
		if b, err = appendString(b, p.RouteCode); err != nil {
			return nil, fmt.Errorf("route code: %w", err)
		}
	}
	return b, nil
}

func checkString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return errors.New("string contains NUL byte")
	}
	if !utf8.ValidString(s) {
		return errors.New("string is not valid UTF-8")
	}
	return nil
}

func appendString(b []byte, s string) ([]byte, error) {
	if err := checkString(s); err != nil {
		return b, err
	}
	b, err := AppendVarint(b, uint32(len(s)))
	if err != nil {
		return b, err
	}
	return append(b, s...), nil
}

// fieldReader walks the fields of a packet body.
type fieldReader struct {
	b   []byte
	pos int
}

func (f *fieldReader) take(n int) ([]byte, error) {
	if n < 0 || f.pos+n > len(f.b) {
		return nil, fmt.Errorf("short read: wanted %d bytes at %d, packet has %d", n, f.pos, len(f.b))
	}
	out := f.b[f.pos : f.pos+n]
	f.pos += n
	return out, nil
}

func (f *fieldReader) varint() (uint32, error) {
	v, n, err := ReadVarint(f.b[f.pos:])
	if err != nil {
		return 0, err
	}
	f.pos += n
	return v, nil
}

func (f *fieldReader) str() (string, error) {
	n, err := f.varint()
	if err != nil {
		return "", err
	}
	raw, err := f.take(int(n))
	if err != nil {
		return "", err
	}
	s := string(raw)
	if err := checkString(s); err != nil {
		return "", err
	}
	return s, nil
}

// parseFields decodes the body of a packet whose flags are known.
func parseFields(flags uint16, body []byte) (*Packet, error) {
	p := &Packet{
		Status:   Status(flags & statusMask),
		Runnable: flags&flagRunnable != 0,
		EOF:      flags&flagEOF != 0,
	}
	f := &fieldReader{b: body}

	if flags&flagTimestamp != 0 {
		raw, err := f.take(4)
		if err != nil {
			return nil, err
		}
		nanos, err := f.varint()
		if err != nil {
			return nil, err
		}
		p.Timestamp = time.Unix(int64(binary.BigEndian.Uint32(raw)), int64(nanos)).UTC()
	}
	var err error
	if flags&flagTestID != 0 {
		if p.TestID, err = f.str(); err != nil {
			return nil, fmt.Errorf("test id: %w", err)
		}
	}
	if flags&flagTags != 0 {
		count, err := f.varint()
		if err != nil {
			return nil, err
		}
		p.Tags = make([]string, 0, min(int(count), 64))
		for i := uint32(0); i < count; i++ {
			tag, err := f.str()
			if err != nil {
				return nil, fmt.Errorf("tag: %w", err)
			}
			p.Tags = append(p.Tags, tag)
		}
	}
	if flags&flagMIMEType != 0 {
		if p.MIMEType, err = f.str(); err != nil {
			return nil, fmt.Errorf("mime type: %w", err)
		}
	}
	if flags&flagFileContent != 0 {
		if p.FileName, err = f.str(); err != nil {
			return nil, fmt.Errorf("file name: %w", err)
		}
		n, err := f.varint()
		if err != nil {
			return nil, err
		}
		content, err := f.take(int(n))
		if err != nil {
			return nil, err
		}
		p.FileContent = append([]byte{}, content...)
	}
	if flags&flagRouteCode != 0 {
		if p.RouteCode, err = f.str(); err != nil {
			return nil, fmt.Errorf("route code: %w", err)
		}
	}
	if f.pos != len(body) {
		return nil, fmt.Errorf("%d trailing bytes after packet fields", len(body)-f.pos)
	}
	return p, nil
}
