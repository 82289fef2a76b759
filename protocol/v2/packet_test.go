package v2

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perfgo/subunit/protoerr"
)

const (
	inProgressVector = "b329821704746573740203666f6f0471757578a6e1deec"
	successVector    = "b329831b0474657374030362617203666f6f0471757578d2181b43"
	timestampVector  = "b32b03124ad1cbda7a9803666f6fd81f3834"
	fileVector       = "b329701e03666f6f0a746578742f706c61696e036c6f670268697b690c61"
	routeCodeVector  = "b32d060e03666f6f0130ec4fd584"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestVarint(t *testing.T) {
	tests := []struct {
		value uint32
		want  string
	}{
		{0, "00"},
		{63, "3f"},
		{64, "4040"},
		{16383, "7fff"},
		{16384, "804000"},
		{4194303, "bfffff"},
		{4194304, "c0400000"},
		{MaxVarint, "ffffffff"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := AppendVarint(nil, tt.value)
			require.NoError(t, err)
			require.Equal(t, tt.want, hex.EncodeToString(got))

			value, n, err := ReadVarint(append(got, 0xaa))
			require.NoError(t, err)
			require.Equal(t, len(got), n)
			require.Equal(t, tt.value, value)
		})
	}

	_, err := AppendVarint(nil, MaxVarint+1)
	require.Error(t, err)
	_, _, err = ReadVarint([]byte{0x80, 0x01})
	require.Error(t, err)
	_, _, err = ReadVarint(nil)
	require.Error(t, err)
}

func TestPacket_Encode(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
		want   string
	}{
		{
			name:   "inprogress with tags",
			packet: Packet{TestID: "test", Status: StatusInProgress, Tags: []string{"foo", "quux"}, Runnable: true},
			want:   inProgressVector,
		},
		{
			name:   "tags are sorted",
			packet: Packet{TestID: "test", Status: StatusSuccess, Tags: []string{"quux", "foo", "bar"}, Runnable: true},
			want:   successVector,
		},
		{
			name: "timestamp",
			packet: Packet{
				TestID:    "foo",
				Status:    StatusSuccess,
				Timestamp: time.Date(2009, 10, 11, 12, 13, 14, 15000, time.UTC),
				Runnable:  true,
			},
			want: timestampVector,
		},
		{
			name: "file content",
			packet: Packet{
				TestID:      "foo",
				MIMEType:    "text/plain",
				FileName:    "log",
				FileContent: []byte("hi"),
				EOF:         true,
				Runnable:    true,
			},
			want: fileVector,
		},
		{
			name:   "route code",
			packet: Packet{TestID: "foo", RouteCode: "0", Status: StatusFail, Runnable: true},
			want:   routeCodeVector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.packet.MarshalBinary()
			require.NoError(t, err)
			require.Equal(t, tt.want, hex.EncodeToString(got))

			frame, err := NewReader(bytes.NewReader(got)).Next()
			require.NoError(t, err)
			require.NotNil(t, frame.Packet)
			require.Equal(t, got, frame.Raw)
			p := *frame.Packet
			require.True(t, tt.packet.Timestamp.Equal(p.Timestamp))
			p.Timestamp = tt.packet.Timestamp
			if tt.packet.Tags != nil {
				require.ElementsMatch(t, tt.packet.Tags, p.Tags)
				p.Tags = tt.packet.Tags
			}
			require.Equal(t, tt.packet, p)
		})
	}
}

func TestPacket_EncodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		packet Packet
	}{
		{name: "NUL in test id", packet: Packet{TestID: "a\x00b"}},
		{name: "invalid UTF-8 tag", packet: Packet{TestID: "a", Tags: []string{"\xff"}}},
		{name: "too large", packet: Packet{FileName: "big", FileContent: make([]byte, MaxPacketLength)}},
		{name: "timestamp before 1970", packet: Packet{TestID: "a", Timestamp: time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{name: "timestamp after 2106", packet: Packet{TestID: "a", Timestamp: time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.packet.MarshalBinary()
			require.Error(t, err)
		})
	}
}

func TestPacket_TimestampRange(t *testing.T) {
	tests := []struct {
		name    string
		ts      time.Time
		wantErr bool
	}{
		{name: "epoch", ts: time.Unix(0, 1).UTC()},
		{name: "last second", ts: time.Unix(math.MaxUint32, 0).UTC()},
		{name: "before epoch", ts: time.Unix(-1, 0).UTC(), wantErr: true},
		{name: "past last second", ts: time.Unix(math.MaxUint32+1, 0).UTC(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := (&Packet{TestID: "a", Timestamp: tt.ts}).MarshalBinary()
			if tt.wantErr {
				require.ErrorContains(t, err, "out of range")
				return
			}
			require.NoError(t, err)
			frame, err := NewReader(bytes.NewReader(b)).Next()
			require.NoError(t, err)
			require.True(t, tt.ts.Equal(frame.Packet.Timestamp))
		})
	}
}

func TestPacket_LengthWidths(t *testing.T) {
	for _, size := range []int{0, 40, 50, 100, 16000, 16400, 70000} {
		p := Packet{TestID: "t", FileName: "f", FileContent: bytes.Repeat([]byte{'x'}, size)}
		b, err := p.MarshalBinary()
		require.NoError(t, err)

		length, n, err := ReadVarint(b[3:])
		require.NoError(t, err)
		require.Equal(t, len(b), int(length), "size %d", size)
		require.LessOrEqual(t, n, 3)

		frame, err := NewReader(bytes.NewReader(b)).Next()
		require.NoError(t, err)
		require.Equal(t, p.FileContent, frame.Packet.FileContent)
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{
			name:  "bad checksum",
			input: "b329821704746573740203666f6f0471757578a6e1deed",
			msg:   "Bad checksum - calculated (0xa6e1deec), stored (0xa6e1deed)",
		},
		{
			name:  "bad version",
			input: "b339821704746573740203666f6f0471757578a6e1deec",
			msg:   "bad version 3",
		},
		{
			name:  "four byte length",
			input: "b32982c0000017",
			msg:   "3 byte maximum given but 4 byte value found",
		},
		{
			name:  "truncated packet",
			input: "b329821704746573740203666f6f0471757578a6e1",
			msg:   "short read",
		},
		{
			name:  "truncated header",
			input: "b329",
			msg:   "short read",
		},
		{
			name:  "length shorter than header",
			input: "b3200003",
			msg:   "shorter than the packet header",
		},
		{
			name:  "trailing bytes",
			input: "b320000978be6b68a0",
			msg:   "trailing bytes",
		},
		{
			name:  "NUL in string",
			input: "b328000c03610062fce59a5a",
			msg:   "NUL byte",
		},
		{
			name:  "invalid UTF-8",
			input: "b328000c0361ff626fc16728",
			msg:   "not valid UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := mustHex(t, tt.input)
			frame, err := NewReader(bytes.NewReader(input)).Next()
			require.ErrorIs(t, err, protoerr.ErrMalformedPacket)
			require.ErrorContains(t, err, tt.msg)
			require.Nil(t, frame.Packet)
			require.NotEmpty(t, frame.Raw)
		})
	}
}

func TestReader_Frames(t *testing.T) {
	packet := mustHex(t, inProgressVector)
	var input []byte
	input = append(input, "abc\ndef"...)
	input = append(input, packet...)
	input = append(input, "xyz"...)

	r := NewReader(bytes.NewReader(input))
	var raws []string
	var offsets []int64
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		raws = append(raws, string(frame.Raw))
		offsets = append(offsets, frame.Offset)
		if len(offsets) == 3 {
			require.NotNil(t, frame.Packet)
			require.Equal(t, "test", frame.Packet.TestID)
		} else {
			require.Nil(t, frame.Packet)
		}
	}
	require.Equal(t, []string{"abc\n", "def", string(packet), "xyz"}, raws)
	require.Equal(t, []int64{0, 4, 7, int64(7 + len(packet))}, offsets)
}

func TestReader_ErrorOffset(t *testing.T) {
	input := "junk\n" + string(mustHex(t, inProgressVector)) + string(mustHex(t, inProgressVector))[:10]
	r := NewReader(strings.NewReader(input))
	for i := 0; i < 2; i++ {
		_, err := r.Next()
		require.NoError(t, err)
	}
	_, err := r.Next()
	var perr *protoerr.Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, int64(5+23), perr.Offset)
}
