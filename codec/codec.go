// Package codec implements the Decompressor contract for the
// three Avro container codecs: null (passthrough), snappy, and deflate.
//
// Snappy is wired to github.com/golang/snappy. Deflate has no
// third-party representative available; compress/flate is a stdlib
// fallback of last resort rather than a preference — see DESIGN.md.
package codec

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"go.uber.org/multierr"
)

// Name identifies one of the three Avro container codecs.
type Name string

const (
	Null    Name = "null"
	Snappy  Name = "snappy"
	Deflate Name = "deflate"
)

// Decompressor is the contract the block loop consumes:
// decompress one block's payload, reporting whether the returned buffer
// is owned by the decompressor (and may be reused on the next call) or
// freshly allocated for the caller to own.
type Decompressor interface {
	Decompress(input []byte) (output []byte, reused bool, err error)
}

// ForCodec returns the Decompressor for the named codec.
func ForCodec(name Name) (Decompressor, error) {
	switch name {
	case Null, "":
		return nullDecompressor{}, nil
	case Snappy:
		return &snappyDecompressor{}, nil
	case Deflate:
		return &deflateDecompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type nullDecompressor struct{}

func (nullDecompressor) Decompress(input []byte) ([]byte, bool, error) {
	return input, false, nil
}

// snappyDecompressor decodes raw (non-framed) Snappy blocks. The block
// loop strips the trailing 4-byte CRC before calling
// Decompress, since snappy.Decode expects a bare compressed block.
type snappyDecompressor struct {
	buf []byte
}

func (d *snappyDecompressor) Decompress(input []byte) ([]byte, bool, error) {
	n, err := snappy.DecodedLen(input)
	if err != nil {
		return nil, false, err
	}
	if cap(d.buf) < n {
		d.buf = make([]byte, n)
	}
	out, err := snappy.Decode(d.buf[:n], input)
	if err != nil {
		return nil, false, err
	}
	d.buf = out
	return out, true, nil
}

type deflateDecompressor struct {
	buf bytes.Buffer
}

func (d *deflateDecompressor) Decompress(input []byte) (out []byte, reused bool, err error) {
	d.buf.Reset()
	r := flate.NewReader(bytes.NewReader(input))
	defer func() {
		err = multierr.Append(err, r.Close())
	}()
	if _, err = io.Copy(&d.buf, r); err != nil {
		return nil, false, err
	}
	out = make([]byte, d.buf.Len())
	copy(out, d.buf.Bytes())
	return out, false, nil
}
