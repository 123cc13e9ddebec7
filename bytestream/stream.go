// Package bytestream adapts a pull-based io.Reader into the typed-read
// ByteStream contract the Avro scanner core is built against: borrowing
// fixed-size reads and Avro's zig-zag varint long decode.
//
// The buffering strategy — grow-on-demand with the unread tail copied
// forward before refilling — is adapted from peeker.Reader
// (pkg/peeker/reader.go).
package bytestream

import (
	"io"

	"github.com/vortexdb/avroscan/avroerr"
)

// Stream is a typed byte-stream reader over an underlying io.Reader.
// It is not safe for concurrent use; one Stream serves one file on one
// goroutine, per the scanner's concurrency model.
type Stream struct {
	r        io.Reader
	limit    int
	buffer   []byte
	cursor   []byte
	eof      bool
	total    uint64
	filename string
}

// New returns a Stream that reads from r, using an initial internal
// buffer of size and refusing to grow it past max bytes for a single
// read. filename is attached to every error the Stream returns.
func New(r io.Reader, filename string, size, max int) *Stream {
	if size <= 0 {
		size = 64 * 1024
	}
	if max <= 0 {
		max = 64 * 1024 * 1024
	}
	b := make([]byte, size)
	return &Stream{
		r:        r,
		limit:    max,
		buffer:   b,
		cursor:   b[:0],
		filename: filename,
	}
}

func (s *Stream) fill(min int) error {
	if min > s.limit {
		return avroerr.E(avroerr.ShortRead, loc(s), "requested read of %d bytes exceeds buffer limit of %d", min, s.limit)
	}
	if min > cap(s.buffer) {
		// Grow with a 25% cushion, mirroring zngio/buffer.go's newBuffer
		// policy of padding oversized allocations so repeated large
		// reads (long strings, decimals) don't thrash the allocator.
		s.buffer = make([]byte, min+(min>>2))
	}
	s.buffer = s.buffer[:cap(s.buffer)]
	copy(s.buffer, s.cursor)
	clen := len(s.cursor)
	space := len(s.buffer) - clen
	for space > 0 {
		n, err := s.r.Read(s.buffer[clen:])
		if n > 0 {
			clen += n
			space -= n
		}
		if err != nil {
			if err == io.EOF {
				s.eof = true
				break
			}
			return err
		}
	}
	s.buffer = s.buffer[:clen]
	s.cursor = s.buffer
	return nil
}

func (s *Stream) peek(n int) ([]byte, error) {
	if len(s.cursor) == 0 && s.eof {
		return nil, io.EOF
	}
	if n > len(s.cursor) && !s.eof {
		if err := s.fill(n); err != nil {
			return nil, err
		}
	}
	if n > len(s.cursor) {
		return s.cursor, io.ErrUnexpectedEOF
	}
	return s.cursor[:n], nil
}

func loc(s *Stream) avroerr.Location {
	return avroerr.Location{Filename: s.filename, Offset: int64(s.total)}
}

// ReadBytes returns the next n bytes. The returned slice is borrowed:
// it is only valid until the next call to ReadBytes or ReadZLong.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, avroerr.E(avroerr.InvalidLength, loc(s), "negative read length %d", n)
	}
	if n == 0 {
		return nil, nil
	}
	b, err := s.peek(n)
	if err != nil {
		return nil, avroerr.E(avroerr.ShortRead, loc(s), err)
	}
	s.cursor = s.cursor[n:]
	s.total += uint64(n)
	return b, nil
}

// ReadZLong decodes an Avro zig-zag variable-length long: 7 bits per
// byte, little-endian groups, MSB of each byte is the continuation bit,
// final value is (u >> 1) ^ -(u & 1).
func (s *Stream) ReadZLong() (int64, error) {
	var u uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= 10 {
			return 0, avroerr.E(avroerr.InvalidValue, loc(s), "zig-zag varint longer than 10 bytes")
		}
		b, err := s.peek(1)
		if err != nil {
			return 0, avroerr.E(avroerr.ShortRead, loc(s), err)
		}
		s.cursor = s.cursor[1:]
		s.total++
		u |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int64(u>>1) ^ -(int64(u & 1)), nil
}

// AtEOF reports whether no further bytes are available, without
// consuming anything. The block loop calls this between blocks to tell
// a clean end of file apart from a short read mid-block.
func (s *Stream) AtEOF() bool {
	_, err := s.peek(1)
	return err == io.EOF
}

// TotalBytesReturned reports how many bytes have been consumed so far.
func (s *Stream) TotalBytesReturned() uint64 { return s.total }

// FileOffset reports the stream's current position, identical to
// TotalBytesReturned for a non-seekable forward-only stream.
func (s *Stream) FileOffset() uint64 { return s.total }

// Filename returns the name attached at construction.
func (s *Stream) Filename() string { return s.filename }
