// Package resolve reconciles a writer (file) schema against a reader
// (table) schema: for every materialized output slot it either binds a
// writer leaf to that slot, or — if the writer is missing the field —
// decodes the reader's default into a template tuple.
//
// The general shape (walk an input-side structure, bind each element to
// an output-side slot or fall back to a default, fail closed on any
// mismatch) is grounded on zng/resolver.Mapper and zng/resolver.Context
// (_examples/brimdata-zed/zng/resolver/mapper.go, context.go), which
// perform the analogous job of mapping a file-local type-ID space onto
// a query's shared type context. Mapper resolves by integer ID; this
// resolver must resolve by field *name* with type promotion and
// defaulting, which Mapper has no notion of, so the matching logic
// below is new, not a copy.
package resolve

import (
	"encoding/binary"

	"github.com/vortexdb/avroscan/bytepool"
	"github.com/vortexdb/avroscan/schema"
)

// SlotDescriptor is supplied by the enclosing scan node: it names an
// output column by its ordinal path into the reader schema and gives
// the tuple layout (byte offsets) that column occupies.
type SlotDescriptor struct {
	// ColumnPath indexes into the reader schema. The first element is
	// offset by the partition-key count before use; deeper elements are
	// used as-is. See Resolve's partitionKeys parameter.
	ColumnPath []int
	// NullOffset is the byte offset, within a materialized tuple, of a
	// single null-indicator byte (0 = present, 1 = null).
	NullOffset int
	// TupleOffset is the byte offset, within a materialized tuple, at
	// which this slot's value is written.
	TupleOffset int
}

// BoundSlot is a SlotDescriptor annotated with the physical type
// information resolved from the reader schema at its column path, so
// the materializer never has to re-walk the reader tree per row.
type BoundSlot struct {
	Descriptor SlotDescriptor
	PhysKind   schema.Kind
	Len        int // varchar/char declared width
	Precision  int // decimal
	Scale      int // decimal
}

// Node mirrors one node of the writer schema tree, skeleton-built ahead
// of slot resolution so every writer field — bound to a slot or not —
// is represented and can be decoded-and-skipped during materialization.
type Node struct {
	Writer   *schema.Node
	Children []*Node // non-nil when Writer resolves (through a nullable union, if any) to a record
	Slot     *BoundSlot
}

// StringDefault is a string/bytes default value a slot
// needs written on every row. Unlike scalar defaults, these can't be
// baked into Template once: the offset/length pair a tuple carries for
// a string-family slot is only meaningful relative to whichever pool
// that row's batch was reserved against, so the bytes must be
// re-copied into the live per-batch pool every time Template is
// applied. See ApplyTemplate.
type StringDefault struct {
	Slot  SlotDescriptor
	Bytes []byte
}

// Plan is the output of Resolve: the annotated writer tree, a template
// tuple pre-populated with scalar defaults for reader fields the
// writer schema does not carry, and any string-family defaults that
// must be re-homed into a live pool per row.
type Plan struct {
	Writer         *schema.Node
	Reader         *schema.Node
	Root           *Node
	Template       []byte
	StringDefaults []StringDefault
	// CanUseSpecializedDecoder is true iff Reader and Writer are
	// structurally identical.
	CanUseSpecializedDecoder bool
	// HasBoundSlots is false when no column in Root is bound to a slot —
	// a pure row-count projection. The block loop uses this to skip
	// decompression and per-record decode entirely and call
	// TupleSink.EmitEmpty instead.
	HasBoundSlots bool
}

// ApplyTemplate copies plan's template defaults into tuple, then writes
// every string-family default's bytes into pool and stores the
// resulting offset/length pair — the per-row step a caller performs
// before materializing a writer's actual fields over the top.
func ApplyTemplate(plan *Plan, pool *bytepool.Pool, tuple []byte) {
	copy(tuple, plan.Template)
	for _, sd := range plan.StringDefaults {
		off, n := pool.Put(sd.Bytes)
		binary.LittleEndian.PutUint32(tuple[sd.Slot.TupleOffset:], uint32(off))
		binary.LittleEndian.PutUint32(tuple[sd.Slot.TupleOffset+4:], uint32(n))
	}
}
