package materialize

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vortexdb/avroscan/bytepool"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/schema"
	"github.com/vortexdb/avroscan/specialize"
)

func zigzag(v int64) []byte {
	u := (uint64(v) << 1) ^ uint64(v>>63)
	var out []byte
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}

func identicalSchema() *schema.Node {
	return &schema.Node{
		Kind: schema.Record,
		Fields: []schema.Field{
			{Name: "a", Type: &schema.Node{Kind: schema.Int32}},
			{Name: "b", Type: &schema.Node{
				Kind:         schema.Union,
				NullUnionPos: 0,
				Branches:     []*schema.Node{{Kind: schema.Null}, {Kind: schema.String}},
			}},
			{Name: "c", Type: &schema.Node{Kind: schema.Double}},
		},
	}
}

// TestInterpretedMatchesSpecialized verifies the universal invariant:
// when the reader and writer schemas are structurally identical, the
// interpreted and specialized decoders produce byte-identical tuples
// for the same input.
func TestInterpretedMatchesSpecialized(t *testing.T) {
	writer := identicalSchema()
	reader := identicalSchema()

	slots := []resolve.SlotDescriptor{
		{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1},
		{ColumnPath: []int{1}, NullOffset: 5, TupleOffset: 6},
		{ColumnPath: []int{2}, NullOffset: 14, TupleOffset: 15},
	}
	const tupleSize = 23

	plan, err := resolve.Resolve("t", reader, writer, slots, 0, tupleSize)
	require.NoError(t, err)
	require.True(t, plan.CanUseSpecializedDecoder)

	prog, err := specialize.Compile(plan.Root)
	require.NoError(t, err)

	var data []byte
	data = append(data, zigzag(5)...)    // a = 5
	data = append(data, zigzag(1)...)    // b: non-null branch
	data = append(data, zigzag(2)...)    // "hi" length
	data = append(data, []byte("hi")...) // "hi" bytes
	data = append(data, 0x1f, 0x85, 0xeb, 0x51, 0xb8, 0x1e, 0x09, 0x40)

	pool1 := bytepool.New()
	tuple1 := make([]byte, tupleSize)
	resolve.ApplyTemplate(plan, pool1, tuple1)
	s1 := bytestream.New(bytes.NewReader(data), "t", len(data), len(data))
	require.NoError(t, Record(plan, s1, pool1, tuple1))

	pool2 := bytepool.New()
	tuple2 := make([]byte, tupleSize)
	resolve.ApplyTemplate(plan, pool2, tuple2)
	s2 := bytestream.New(bytes.NewReader(data), "t", len(data), len(data))
	require.NoError(t, specialize.Run(prog, s2, pool2, tuple2))

	require.Equal(t, tuple1, tuple2)
	require.Equal(t, byte(0), tuple1[0], "a must not be null")
	require.Equal(t, byte(0), tuple1[5], "b must not be null")
	require.Equal(t, byte(0), tuple1[14], "c must not be null")
}

func TestNullBranchClearsAndSetsConsistently(t *testing.T) {
	writer := identicalSchema()
	reader := identicalSchema()
	slots := []resolve.SlotDescriptor{
		{ColumnPath: []int{1}, NullOffset: 0, TupleOffset: 1},
	}
	const tupleSize = 9

	plan, err := resolve.Resolve("t", reader, writer, slots, 0, tupleSize)
	require.NoError(t, err)

	prog, err := specialize.Compile(plan.Root)
	require.NoError(t, err)

	var data []byte
	data = append(data, zigzag(5)...) // a, unbound, skipped
	data = append(data, zigzag(0)...) // b: null branch
	data = append(data, 0, 0, 0, 0, 0, 0, 0, 0)

	pool1 := bytepool.New()
	tuple1 := make([]byte, tupleSize)
	tuple1[0] = 0xff // pre-dirty, as a reused buffer might be
	s1 := bytestream.New(bytes.NewReader(data), "t", len(data), len(data))
	require.NoError(t, Record(plan, s1, pool1, tuple1))
	require.Equal(t, byte(1), tuple1[0])

	pool2 := bytepool.New()
	tuple2 := make([]byte, tupleSize)
	tuple2[0] = 0xff
	s2 := bytestream.New(bytes.NewReader(data), "t", len(data), len(data))
	require.NoError(t, specialize.Run(prog, s2, pool2, tuple2))
	require.Equal(t, byte(1), tuple2[0])
}
