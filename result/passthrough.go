package result

import (
	"bytes"

	"github.com/perfgo/subunit/model"
)

// Passthrough is an io.Writer turning every write into a File call on Sink
// carrying non-protocol bytes. It lets the v1 server report passthrough
// lines the way the v2 decoder does. The content type is left empty, so the
// bytes are re-encoded without a MIME type.
type Passthrough struct {
	Sink Sink
	Name string
}

func (p Passthrough) Write(b []byte) (int, error) {
	err := p.Sink.File(model.File{
		Name: p.Name,
		Data: bytes.Clone(b),
	})
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// DropPassthrough forwards everything except File calls that are not bound
// to a test.
type DropPassthrough struct {
	Sink
}

func (d DropPassthrough) File(f model.File) error {
	if f.TestID == "" {
		return nil
	}
	return d.Sink.File(f)
}
