// Package specialize compiles a resolved writer tree into a flat
// bytecode program, once per distinct writer schema, so that decoding
// a record never re-walks the schema tree: Run executes a straight
// []Op slice with a single forward-moving instruction cursor, the
// tight switch-dispatch loop the design notes ask for as the
// optimized alternative to materialize's recursive interpreted walk.
//
// This is only ever consulted when resolve.Plan.CanUseSpecializedDecoder
// is true (reader and writer structurally identical); Compile failing
// or returning nil just means the caller falls back to materialize.Record.
package specialize

import (
	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/schema"
)

// OpCode tags one instruction in a Program.
type OpCode int

const (
	OpBoolean OpCode = iota
	OpInt32
	OpInt64
	OpFloat
	OpDouble
	OpStringBytes
	OpDecimal
	// OpUnionEnter reads a union branch index. If it matches NullPos, the
	// bound slot's null byte (when Bound) is set and execution jumps
	// forward SkipN instructions, past the ops that would otherwise
	// decode the non-null branch.
	OpUnionEnter
)

// Op is one flattened instruction.
type Op struct {
	Code        OpCode
	Bound       bool
	TupleOffset int
	NullOffset  int
	PhysKind    schema.Kind
	Len         int // varchar/char declared width

	// OpUnionEnter only.
	NullPos int
	SkipN   int
}

// Program is a compiled decode plan for one writer schema.
type Program struct {
	Ops []Op
}

// Compile flattens root — the writer skeleton resolve.Resolve built,
// annotated with bound slots — into a Program. It returns an error for
// any writer leaf kind it does not know how to flatten; the caller
// treats that as a non-fatal signal to keep using the interpreted
// materializer.
func Compile(root *resolve.Node) (*Program, error) {
	var ops []Op
	if err := compileNode(root, &ops); err != nil {
		return nil, err
	}
	return &Program{Ops: ops}, nil
}

func compileNode(n *resolve.Node, ops *[]Op) error {
	writer := n.Writer
	eff := writer
	nullPos := -1
	if pos, ok := writer.Nullable(); ok {
		nullPos = pos
		eff = writer.NonNullBranch()
	}
	if nullPos < 0 {
		return compileLeafOrRecord(eff, n, ops)
	}

	idx := len(*ops)
	*ops = append(*ops, Op{Code: OpUnionEnter, NullPos: nullPos, Bound: n.Slot != nil, NullOffset: slotNullOffset(n)})
	if err := compileLeafOrRecord(eff, n, ops); err != nil {
		return err
	}
	(*ops)[idx].SkipN = len(*ops) - idx - 1
	return nil
}

func slotNullOffset(n *resolve.Node) int {
	if n.Slot == nil {
		return 0
	}
	return n.Slot.Descriptor.NullOffset
}

func compileLeafOrRecord(eff *schema.Node, n *resolve.Node, ops *[]Op) error {
	if eff.Kind == schema.Record {
		for i := range eff.Fields {
			if err := compileNode(n.Children[i], ops); err != nil {
				return err
			}
		}
		return nil
	}

	code, ok := opForKind(eff.Kind)
	if !ok {
		return avroerr.E(avroerr.InvalidValue, "unsupported writer leaf kind %s", eff.Kind.String())
	}
	op := Op{Code: code, Bound: n.Slot != nil}
	if n.Slot != nil {
		op.TupleOffset = n.Slot.Descriptor.TupleOffset
		op.NullOffset = n.Slot.Descriptor.NullOffset
		op.PhysKind = n.Slot.PhysKind
		op.Len = n.Slot.Len
	}
	*ops = append(*ops, op)
	return nil
}

func opForKind(k schema.Kind) (OpCode, bool) {
	switch k {
	case schema.Boolean:
		return OpBoolean, true
	case schema.Int32:
		return OpInt32, true
	case schema.Int64:
		return OpInt64, true
	case schema.Float:
		return OpFloat, true
	case schema.Double:
		return OpDouble, true
	case schema.String, schema.Bytes:
		return OpStringBytes, true
	case schema.Decimal:
		return OpDecimal, true
	default:
		return 0, false
	}
}
