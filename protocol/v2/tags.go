package v2

// This file contains packet level tag rewriting.

import (
	"errors"
	"fmt"
	"io"

	"github.com/perfgo/subunit/model"
)

// RewriteTags copies the stream from r to w, adding gained and removing
// lost from the tags of every packet that names a test. Bytes outside
// packets are wrapped into file packets named "stdout".
func RewriteTags(r io.Reader, w io.Writer, gained, lost []string) error {
	reader := NewReader(r)
	var buf []byte
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		p := frame.Packet
		if p == nil {
			p = &Packet{
				FileName:    DefaultNonSubunitName,
				FileContent: frame.Raw,
				Runnable:    true,
			}
		} else if p.TestID != "" {
			tags := model.NewTagSet(p.Tags...)
			tags.Apply(gained, lost)
			p.Tags = nil
			if len(tags) > 0 {
				p.Tags = tags.Sorted()
			}
		}

		if buf, err = AppendPacket(buf[:0], p); err != nil {
			return fmt.Errorf("failed to encode packet at offset %d: %w", frame.Offset, err)
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
}
