package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/schema"
)

func recordOf(fields ...schema.Field) *schema.Node {
	return &schema.Node{Kind: schema.Record, Fields: fields}
}

func nullable(inner *schema.Node) *schema.Node {
	return &schema.Node{Kind: schema.Union, NullUnionPos: 0, Branches: []*schema.Node{{Kind: schema.Null}, inner}}
}

// TestMissingWriterFieldUsesDefault is scenario 3: the writer lacks a
// field the reader declares with a default, so every row must carry
// that default without consuming any bytes.
func TestMissingWriterFieldUsesDefault(t *testing.T) {
	writer := recordOf(schema.Field{Name: "a", Type: &schema.Node{Kind: schema.Int32}})
	reader := recordOf(
		schema.Field{Name: "a", Type: &schema.Node{Kind: schema.Int32}},
		schema.Field{Name: "b", Type: &schema.Node{Kind: schema.String}, HasDefault: true, DefaultRaw: "x"},
	)
	slots := []SlotDescriptor{
		{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1},
		{ColumnPath: []int{1}, NullOffset: 5, TupleOffset: 6},
	}
	plan, err := Resolve("t", reader, writer, slots, 0, 14)
	require.NoError(t, err)
	require.False(t, plan.CanUseSpecializedDecoder)
	require.Len(t, plan.StringDefaults, 1)
	require.Equal(t, []byte("x"), plan.StringDefaults[0].Bytes)
	require.Equal(t, 6, plan.StringDefaults[0].Slot.TupleOffset)

	// The writer-present field "a" is bound directly, with no default
	// bookkeeping attached — only "b", absent from the writer, needs one.
	require.NotNil(t, plan.Root.Children[0].Slot)
}

// TestPromotedIntToDouble is scenario 4: writer int promoted to reader
// double disables specialization.
func TestPromotedIntToDouble(t *testing.T) {
	writer := recordOf(schema.Field{Name: "a", Type: &schema.Node{Kind: schema.Int32}})
	reader := recordOf(schema.Field{Name: "a", Type: &schema.Node{Kind: schema.Double}})
	slots := []SlotDescriptor{{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1}}

	plan, err := Resolve("t", reader, writer, slots, 0, 9)
	require.NoError(t, err)
	require.False(t, plan.CanUseSpecializedDecoder)
	require.NotNil(t, plan.Root.Children[0].Slot)
	require.Equal(t, schema.Double, plan.Root.Children[0].Slot.PhysKind)
}

// TestNullabilityMismatchFails is scenario 5: a nullable writer field
// feeding a non-nullable reader slot is rejected during resolution.
func TestNullabilityMismatchFails(t *testing.T) {
	writer := recordOf(schema.Field{Name: "a", Type: nullable(&schema.Node{Kind: schema.Int32})})
	reader := recordOf(schema.Field{Name: "a", Type: &schema.Node{Kind: schema.Int32}})
	slots := []SlotDescriptor{{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1}}

	_, err := Resolve("t", reader, writer, slots, 0, 5)
	require.Error(t, err)
	require.Equal(t, avroerr.NullabilityMismatch, avroerr.KindOf(err))
}

func TestPartitionKeyOffsetAppliesOnlyAtDepthZero(t *testing.T) {
	writer := recordOf(
		schema.Field{Name: "part", Type: &schema.Node{Kind: schema.Int32}},
		schema.Field{Name: "a", Type: recordOf(schema.Field{Name: "x", Type: &schema.Node{Kind: schema.Int32}})},
	)
	reader := recordOf(
		schema.Field{Name: "a", Type: recordOf(schema.Field{Name: "x", Type: &schema.Node{Kind: schema.Int32}})},
	)
	// Reader has no partition column; the writer's "part" column occupies
	// slot 0 externally, so the reader's column 0 ("a") is addressed as
	// writer index 1 once offset by one partition key.
	slots := []SlotDescriptor{{ColumnPath: []int{1, 0}, NullOffset: 0, TupleOffset: 1}}

	plan, err := Resolve("t", reader, writer, slots, 1, 5)
	require.NoError(t, err)
	require.NotNil(t, plan.Root.Children[1].Children[0].Slot)
}
