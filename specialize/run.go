package specialize

import (
	"encoding/binary"
	"math"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/bytepool"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/schema"
)

// Run decodes one record against prog, writing bound leaves into tuple.
// tuple must already carry the plan's defaults via resolve.ApplyTemplate,
// same as materialize.Record — the specialized and interpreted paths
// share that per-row contract so a caller can fall back from one to the
// other without changing how it drives the sink.
func Run(prog *Program, bs *bytestream.Stream, pool *bytepool.Pool, tuple []byte) error {
	ops := prog.Ops
	for i := 0; i < len(ops); i++ {
		op := &ops[i]
		switch op.Code {
		case OpUnionEnter:
			idx, err := bs.ReadZLong()
			if err != nil {
				return err
			}
			if idx != 0 && idx != 1 {
				return avroerr.E(avroerr.InvalidValue, loc(bs), "union branch index %d out of range", idx)
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
			}
			if int(idx) == op.NullPos {
				if op.Bound {
					tuple[op.NullOffset] = 1
				}
				i += op.SkipN
			}
		case OpBoolean:
			b, err := bs.ReadBytes(1)
			if err != nil {
				return err
			}
			if b[0] != 0 && b[0] != 1 {
				return avroerr.E(avroerr.InvalidValue, loc(bs), "boolean byte %d out of range", b[0])
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				tuple[op.TupleOffset] = b[0]
			}
		case OpInt32:
			v, err := bs.ReadZLong()
			if err != nil {
				return err
			}
			if v < math.MinInt32 || v > math.MaxInt32 {
				return avroerr.E(avroerr.ValueOverflow, loc(bs), "int value %d overflows int32", v)
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				writeInt(tuple, op, v)
			}
		case OpInt64:
			v, err := bs.ReadZLong()
			if err != nil {
				return err
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				writeInt(tuple, op, v)
			}
		case OpFloat:
			b, err := bs.ReadBytes(4)
			if err != nil {
				return err
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				writeFloat(tuple, op, float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
			}
		case OpDouble:
			b, err := bs.ReadBytes(8)
			if err != nil {
				return err
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				writeFloat(tuple, op, math.Float64frombits(binary.LittleEndian.Uint64(b)))
			}
		case OpStringBytes:
			v, err := readBytesLeaf(bs)
			if err != nil {
				return err
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				writeStringFamily(pool, tuple, op, v)
			}
		case OpDecimal:
			v, err := readBytesLeaf(bs)
			if err != nil {
				return err
			}
			if op.Bound {
				tuple[op.NullOffset] = 0
				off, n := pool.Put(v)
				binary.LittleEndian.PutUint32(tuple[op.TupleOffset:], uint32(off))
				binary.LittleEndian.PutUint32(tuple[op.TupleOffset+4:], uint32(n))
			}
		default:
			return avroerr.E(avroerr.InvalidValue, loc(bs), "unknown opcode %d", op.Code)
		}
	}
	return nil
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

func writeInt(tuple []byte, op *Op, v int64) {
	switch op.PhysKind {
	case schema.Int32:
		binary.LittleEndian.PutUint32(tuple[op.TupleOffset:], uint32(int32(v)))
	case schema.Int64:
		binary.LittleEndian.PutUint64(tuple[op.TupleOffset:], uint64(v))
	case schema.Float:
		binary.LittleEndian.PutUint32(tuple[op.TupleOffset:], math.Float32bits(float32(v)))
	case schema.Double:
		binary.LittleEndian.PutUint64(tuple[op.TupleOffset:], math.Float64bits(float64(v)))
	}
}

func writeFloat(tuple []byte, op *Op, v float64) {
	switch op.PhysKind {
	case schema.Float:
		binary.LittleEndian.PutUint32(tuple[op.TupleOffset:], math.Float32bits(float32(v)))
	case schema.Double:
		binary.LittleEndian.PutUint64(tuple[op.TupleOffset:], math.Float64bits(v))
	}
}

// writeStringFamily applies the same truncate/pad-to-width policy as
// materialize.writeStringFamily — kept in lockstep so the two decode
// paths are observationally identical, per materialize/equivalence_test.go.
func writeStringFamily(pool *bytepool.Pool, tuple []byte, op *Op, v []byte) {
	switch op.PhysKind {
	case schema.Varchar:
		if len(v) > op.Len {
			v = v[:op.Len]
		}
	case schema.Char:
		if len(v) > op.Len {
			v = v[:op.Len]
		} else if len(v) < op.Len {
			padded := make([]byte, op.Len)
			copy(padded, v)
			for i := len(v); i < op.Len; i++ {
				padded[i] = ' '
			}
			v = padded
		}
	}
	off, n := pool.Put(v)
	binary.LittleEndian.PutUint32(tuple[op.TupleOffset:], uint32(off))
	binary.LittleEndian.PutUint32(tuple[op.TupleOffset+4:], uint32(n))
}
