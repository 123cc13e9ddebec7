package resolve

import (
	"encoding/binary"
	"math"

	"go.uber.org/multierr"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/schema"
)

// Resolve reconciles reader against writer for each slot and returns
// the annotated plan. filename is attached to every error. tupleSize is
// the width, in bytes, of the template tuple to allocate — it must be
// at least as large as the furthest TupleOffset+width and NullOffset+1
// among slots, a bound the caller (who assigned those offsets) already
// knows.
func Resolve(filename string, reader, writer *schema.Node, slots []SlotDescriptor, partitionKeys, tupleSize int) (*Plan, error) {
	if reader.Kind != schema.Record {
		return nil, avroerr.E(avroerr.SchemaResolutionError, avroerr.Location{Filename: filename}, "reader schema root is not a record")
	}
	if writer.Kind != schema.Record {
		return nil, avroerr.E(avroerr.EmptySchema, avroerr.Location{Filename: filename}, "writer schema root is not a record")
	}
	if len(writer.Fields) == 0 {
		return nil, avroerr.E(avroerr.EmptySchema, avroerr.Location{Filename: filename})
	}

	plan := &Plan{
		Writer:   writer,
		Reader:   reader,
		Root:     buildSkeleton(writer),
		Template: make([]byte, tupleSize),
	}

	// Every projected column is resolved independently, so a caller
	// projecting several bad columns sees all of them at once rather
	// than only the first.
	var resolveErr error
	for _, slot := range slots {
		resolveErr = multierr.Append(resolveErr, bindSlot(filename, reader, plan, slot, partitionKeys))
	}
	if resolveErr != nil {
		return nil, resolveErr
	}

	plan.CanUseSpecializedDecoder = schema.Equal(reader, writer)
	plan.HasBoundSlots = anyBoundSlot(plan.Root)
	return plan, nil
}

func anyBoundSlot(n *Node) bool {
	if n.Slot != nil {
		return true
	}
	for _, c := range n.Children {
		if anyBoundSlot(c) {
			return true
		}
	}
	return false
}

// buildSkeleton mirrors the writer tree so every field can be decoded
// and, if unbound, skipped. A nullable union whose non-null branch is a
// record still needs child nodes to recurse into once the null check
// passes, so Children is populated from the union's non-null branch in
// that case.
func buildSkeleton(writer *schema.Node) *Node {
	n := &Node{Writer: writer}
	rec, ok := effectiveRecord(writer)
	if !ok {
		return n
	}
	n.Children = make([]*Node, len(rec.Fields))
	for i, f := range rec.Fields {
		n.Children[i] = buildSkeleton(f.Type)
	}
	return n
}

// effectiveRecord returns the record node that n decodes into — n
// itself if it is a record, or n's non-null branch if n is a nullable
// union whose non-null branch is a record.
func effectiveRecord(n *schema.Node) (*schema.Node, bool) {
	if n.Kind == schema.Record {
		return n, true
	}
	if _, ok := n.Nullable(); ok {
		branch := n.NonNullBranch()
		if branch.Kind == schema.Record {
			return branch, true
		}
	}
	return nil, false
}

func bindSlot(filename string, readerRoot *schema.Node, plan *Plan, slot SlotDescriptor, partitionKeys int) error {
	path := slot.ColumnPath
	if len(path) == 0 {
		return avroerr.E(avroerr.SchemaResolutionError, avroerr.Location{Filename: filename}, "empty column path")
	}
	readerRec := readerRoot
	writerRaw := plan.Writer
	resolved := plan.Root

	for depth, rawIdx := range path {
		idx := rawIdx
		if depth == 0 {
			idx -= partitionKeys
		}
		if idx < 0 || idx >= len(readerRec.Fields) {
			return avroerr.E(avroerr.MissingField, avroerr.Location{Filename: filename})
		}
		readerField := readerRec.Fields[idx]
		name := readerField.Name

		writerRec, ok := effectiveRecord(writerRaw)
		if !ok {
			return avroerr.E(avroerr.NotARecord, avroerr.Location{Filename: filename}, avroerr.FieldMismatch{Field: name})
		}
		wIdx := writerRec.FieldByName(name)
		isLast := depth == len(path)-1

		if wIdx < 0 {
			if !isLast {
				return avroerr.E(avroerr.UnsupportedDefaultRecord, avroerr.Location{Filename: filename}, avroerr.FieldMismatch{Field: name})
			}
			if !readerField.HasDefault {
				return avroerr.E(avroerr.MissingDefault, avroerr.Location{Filename: filename}, avroerr.FieldMismatch{Field: name})
			}
			return writeDefault(filename, plan, slot, readerField)
		}

		writerField := writerRec.Fields[wIdx]
		child := resolved.Children[wIdx]

		if isLast {
			if err := checkAssignable(filename, name, writerField.Type, readerField.Type); err != nil {
				return err
			}
			child.Slot = boundSlotFor(slot, readerField.Type)
			return nil
		}

		// Descend: both the writer and reader children at this step
		// must themselves be records.
		if _, ok := effectiveRecord(writerField.Type); !ok {
			return avroerr.E(avroerr.NotARecord, avroerr.Location{Filename: filename}, avroerr.FieldMismatch{Field: name, WriterType: writerField.Type.Kind.String()})
		}
		nextReaderRec, ok := effectiveRecord(readerField.Type)
		if !ok {
			return avroerr.E(avroerr.NotARecord, avroerr.Location{Filename: filename}, avroerr.FieldMismatch{Field: name, ReaderType: readerField.Type.Kind.String()})
		}
		writerRaw = writerField.Type
		resolved = child
		readerRec = nextReaderRec
	}
	return nil
}

func boundSlotFor(slot SlotDescriptor, readerType *schema.Node) *BoundSlot {
	eff := readerType
	if _, ok := readerType.Nullable(); ok {
		eff = readerType.NonNullBranch()
	}
	return &BoundSlot{
		Descriptor: slot,
		PhysKind:   eff.Kind,
		Len:        eff.Len,
		Precision:  eff.Precision,
		Scale:      eff.Scale,
	}
}

// checkAssignable implements the promotion matrix plus the nullability
// compatibility rule.
func checkAssignable(filename, field string, writerType, readerType *schema.Node) error {
	_, wNullable := writerType.Nullable()
	_, rNullable := readerType.Nullable()
	if wNullable && !rNullable {
		return avroerr.E(avroerr.NullabilityMismatch, avroerr.Location{Filename: filename},
			avroerr.FieldMismatch{Field: field, WriterType: writerType.Kind.String(), ReaderType: readerType.Kind.String()})
	}

	wEff := writerType
	if wNullable {
		wEff = writerType.NonNullBranch()
	}
	rEff := readerType
	if rNullable {
		rEff = readerType.NonNullBranch()
	}

	switch wEff.Kind {
	case schema.Null:
		if rEff.Kind == schema.Null || rNullable {
			return nil
		}
	case schema.Decimal:
		if rEff.Kind == schema.Decimal && rEff.Precision == wEff.Precision && rEff.Scale == wEff.Scale {
			return nil
		}
	case schema.Record:
		if rEff.Kind == schema.Record {
			return nil
		}
	default:
		if Promote(wEff.Kind, rEff.Kind) {
			return nil
		}
	}
	return avroerr.E(avroerr.SchemaResolutionError, avroerr.Location{Filename: filename},
		avroerr.FieldMismatch{Field: field, WriterType: wEff.Kind.String(), ReaderType: rEff.Kind.String()})
}

// writeDefault decodes a reader field's default value into the
// template tuple, per the scanner's default-encoding rules.
func writeDefault(filename string, plan *Plan, slot SlotDescriptor, readerField schema.Field) error {
	def, err := schema.DecodeDefault(readerField.Type, readerField.DefaultRaw)
	if err != nil {
		return avroerr.E(avroerr.UnsupportedDefault, avroerr.Location{Filename: filename},
			avroerr.FieldMismatch{Field: readerField.Name}, err)
	}
	tuple := plan.Template
	if def.IsNull {
		tuple[slot.NullOffset] = 1
		return nil
	}
	switch def.Kind {
	case schema.Boolean:
		if def.Bool {
			tuple[slot.TupleOffset] = 1
		} else {
			tuple[slot.TupleOffset] = 0
		}
	case schema.Int32, schema.Int64:
		writeNumericDefault(plan, slot, readerField.Type, float64(def.Int64))
	case schema.Float, schema.Double:
		writeNumericDefault(plan, slot, readerField.Type, def.Float64)
	case schema.String, schema.Bytes:
		plan.StringDefaults = append(plan.StringDefaults, StringDefault{Slot: slot, Bytes: def.Bytes})
	default:
		return avroerr.E(avroerr.UnsupportedDefault, avroerr.Location{Filename: filename},
			avroerr.FieldMismatch{Field: readerField.Name})
	}
	return nil
}

func writeNumericDefault(plan *Plan, slot SlotDescriptor, readerType *schema.Node, v float64) {
	eff := readerType
	if _, ok := readerType.Nullable(); ok {
		eff = readerType.NonNullBranch()
	}
	tuple := plan.Template
	switch eff.Kind {
	case schema.Int32:
		binary.LittleEndian.PutUint32(tuple[slot.TupleOffset:], uint32(int32(v)))
	case schema.Int64:
		binary.LittleEndian.PutUint64(tuple[slot.TupleOffset:], uint64(int64(v)))
	case schema.Float:
		binary.LittleEndian.PutUint32(tuple[slot.TupleOffset:], math.Float32bits(float32(v)))
	case schema.Double:
		binary.LittleEndian.PutUint64(tuple[slot.TupleOffset:], math.Float64bits(v))
	}
}
