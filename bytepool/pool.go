// Package bytepool implements a growable byte arena for decoded
// string-family values, handed off per batch to whatever consumes the
// decoded rows.
//
// The growable, offset-stable append discipline is adapted from
// zcode.Builder (zcode/builder.go): that type appends
// tag-prefixed values into one growing []byte and hands back stable
// offsets into it. The container/primitive tag mechanics zcode.Builder
// uses to re-serialize a nested value format have no counterpart here —
// a template tuple's byte-valued defaults are flat copies, not a nested
// container encoding — so only the grow-and-append core survives.
package bytepool

// Pool is a growable byte arena. Values appended to it are never moved
// once written, so returned offsets remain valid for the Pool's entire
// lifetime.
type Pool struct {
	data []byte
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{}
}

// Put copies val into the pool and returns the (offset, length) at
// which it now lives.
func (p *Pool) Put(val []byte) (offset, length int) {
	offset = len(p.data)
	p.data = append(p.data, val...)
	return offset, len(val)
}

// Bytes returns the byte range [offset, offset+length) previously
// returned by Put.
func (p *Pool) Bytes(offset, length int) []byte {
	return p.data[offset : offset+length]
}

// Len reports the pool's current size in bytes.
func (p *Pool) Len() int {
	return len(p.data)
}
