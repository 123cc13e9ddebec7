// Package materialize implements the interpreted record materializer
// a schema-directed binary decoder that walks a resolved
// writer schema and writes bound leaves into a flat tuple buffer.
//
// The nested-walk-with-a-growing-byte-cursor shape is grounded on
// zcode.Builder's container/primitive append discipline
// (zcode/builder.go) — that type *encodes* a nested value by bracketing
// containers and appending primitives to one growing buffer; this
// decoder walks the mirror-image structure (a resolved schema tree)
// and *reads* a cursor forward instead, writing into a flat tuple
// rather than a re-nested byte blob, because the target representation
// is columnar, not a re-serialized container format.
package materialize

import (
	"encoding/binary"
	"math"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/bytepool"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/schema"
)

// Pool is the arena bound leaves' variable-length values (string,
// bytes, decimal) are copied into, so the tuple buffer itself stays a
// fixed-width array of offset/length pairs.
type Pool = bytepool.Pool

// Record decodes one Avro binary datum for plan's writer schema,
// writing bound leaves into tuple. tuple must already carry plan's
// defaults (the caller applies them via resolve.ApplyTemplate before
// calling Record, per the scanner's per-row lifecycle).
func Record(plan *resolve.Plan, bs *bytestream.Stream, pool *Pool, tuple []byte) error {
	return materializeChildren(plan.Writer, plan.Root, bs, pool, tuple)
}

// materializeChildren decodes every field of the record writerRec
// (whose skeleton is resolved), in writer field order.
func materializeChildren(writerRec *schema.Node, resolved *resolve.Node, bs *bytestream.Stream, pool *Pool, tuple []byte) error {
	eff := writerRec
	if _, ok := writerRec.Nullable(); ok {
		eff = writerRec.NonNullBranch()
	}
	for i, field := range eff.Fields {
		if err := materializeField(field.Type, resolved.Children[i], bs, pool, tuple); err != nil {
			return err
		}
	}
	return nil
}

func materializeField(fieldType *schema.Node, node *resolve.Node, bs *bytestream.Stream, pool *Pool, tuple []byte) error {
	effType := fieldType
	if pos, ok := fieldType.Nullable(); ok {
		idx, err := bs.ReadZLong()
		if err != nil {
			return err
		}
		if idx != 0 && idx != 1 {
			return avroerr.E(avroerr.InvalidValue, avroerr.Location{Filename: bs.Filename(), Offset: int64(bs.FileOffset())}, "union branch index %d out of range", idx)
		}
		if node.Slot != nil {
			tuple[node.Slot.Descriptor.NullOffset] = 0
		}
		if int(idx) == pos {
			if node.Slot != nil {
				tuple[node.Slot.Descriptor.NullOffset] = 1
			}
			return nil
		}
		effType = fieldType.NonNullBranch()
	}
	return materializeLeaf(effType, node, bs, pool, tuple)
}

func materializeLeaf(t *schema.Node, node *resolve.Node, bs *bytestream.Stream, pool *Pool, tuple []byte) error {
	switch t.Kind {
	case schema.Record:
		return materializeChildren(t, node, bs, pool, tuple)
	case schema.Boolean:
		b, err := bs.ReadBytes(1)
		if err != nil {
			return err
		}
		if b[0] != 0 && b[0] != 1 {
			return avroerr.E(avroerr.InvalidValue, loc(bs), "boolean byte %d out of range", b[0])
		}
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			tuple[node.Slot.Descriptor.TupleOffset] = b[0]
		}
		return nil
	case schema.Int32:
		v, err := bs.ReadZLong()
		if err != nil {
			return err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return avroerr.E(avroerr.ValueOverflow, loc(bs), "int value %d overflows int32", v)
		}
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			writeInt(tuple, node.Slot, v)
		}
		return nil
	case schema.Int64:
		v, err := bs.ReadZLong()
		if err != nil {
			return err
		}
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			writeInt(tuple, node.Slot, v)
		}
		return nil
	case schema.Float:
		b, err := bs.ReadBytes(4)
		if err != nil {
			return err
		}
		v := math.Float32frombits(binary.LittleEndian.Uint32(b))
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			writeFloat(tuple, node.Slot, float64(v))
		}
		return nil
	case schema.Double:
		b, err := bs.ReadBytes(8)
		if err != nil {
			return err
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(b))
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			writeFloat(tuple, node.Slot, v)
		}
		return nil
	case schema.String, schema.Bytes:
		v, err := readBytesLeaf(bs)
		if err != nil {
			return err
		}
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			writeStringFamily(pool, tuple, node.Slot, v)
		}
		return nil
	case schema.Decimal:
		v, err := readBytesLeaf(bs)
		if err != nil {
			return err
		}
		if node.Slot != nil {
			clearNull(tuple, node.Slot)
			off, n := pool.Put(v)
			binary.LittleEndian.PutUint32(tuple[node.Slot.Descriptor.TupleOffset:], uint32(off))
			binary.LittleEndian.PutUint32(tuple[node.Slot.Descriptor.TupleOffset+4:], uint32(n))
		}
		return nil
	default:
		return avroerr.E(avroerr.InvalidValue, loc(bs), "unsupported writer leaf kind %s", t.Kind)
	}
}

func readBytesLeaf(bs *bytestream.Stream) ([]byte, error) {
	n, err := bs.ReadZLong()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, avroerr.E(avroerr.InvalidLength, loc(bs), "negative string/bytes length %d", n)
	}
	return bs.ReadBytes(int(n))
}

func loc(bs *bytestream.Stream) avroerr.Location {
	return avroerr.Location{Filename: bs.Filename(), Offset: int64(bs.FileOffset())}
}

func clearNull(tuple []byte, slot *resolve.BoundSlot) {
	tuple[slot.Descriptor.NullOffset] = 0
}

func writeInt(tuple []byte, slot *resolve.BoundSlot, v int64) {
	off := slot.Descriptor.TupleOffset
	switch slot.PhysKind {
	case schema.Int32:
		binary.LittleEndian.PutUint32(tuple[off:], uint32(int32(v)))
	case schema.Int64:
		binary.LittleEndian.PutUint64(tuple[off:], uint64(v))
	case schema.Float:
		binary.LittleEndian.PutUint32(tuple[off:], math.Float32bits(float32(v)))
	case schema.Double:
		binary.LittleEndian.PutUint64(tuple[off:], math.Float64bits(float64(v)))
	}
}

func writeFloat(tuple []byte, slot *resolve.BoundSlot, v float64) {
	off := slot.Descriptor.TupleOffset
	switch slot.PhysKind {
	case schema.Float:
		binary.LittleEndian.PutUint32(tuple[off:], math.Float32bits(float32(v)))
	case schema.Double:
		binary.LittleEndian.PutUint64(tuple[off:], math.Float64bits(v))
	}
}

// writeStringFamily copies v into pool, truncating for varchar and
// truncating-or-padding for char to the slot's declared length — the
// single truncation policy decided for the open question around column
// widths, applied
// identically here and in the specialized decoder.
func writeStringFamily(pool *Pool, tuple []byte, slot *resolve.BoundSlot, v []byte) {
	switch slot.PhysKind {
	case schema.Varchar:
		if len(v) > slot.Len {
			v = v[:slot.Len]
		}
	case schema.Char:
		if len(v) > slot.Len {
			v = v[:slot.Len]
		} else if len(v) < slot.Len {
			padded := make([]byte, slot.Len)
			copy(padded, v)
			for i := len(v); i < slot.Len; i++ {
				padded[i] = ' '
			}
			v = padded
		}
	}
	off, n := pool.Put(v)
	binary.LittleEndian.PutUint32(tuple[slot.Descriptor.TupleOffset:], uint32(off))
	binary.LittleEndian.PutUint32(tuple[slot.Descriptor.TupleOffset+4:], uint32(n))
}
