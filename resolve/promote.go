package resolve

import "github.com/vortexdb/avroscan/schema"

// Promote reports whether a writer leaf of kind writerKind may feed a
// reader leaf of kind readerKind, for the primitive rows of the
// promotion matrix. Decimal, record, and null are not
// "promoted" in the widening sense this table describes — decimal and
// record require identical or recursively-checked shape rather than a
// lookup, and null's rule depends on the reader's nullability, not its
// kind — so those three are checked separately in checkAssignable and
// deliberately excluded here to keep this table an honest, total
// function over the primitive kinds it actually governs.
func Promote(writerKind, readerKind schema.Kind) bool {
	switch writerKind {
	case schema.Boolean:
		return readerKind == schema.Boolean
	case schema.Int32:
		return readerKind == schema.Int32 || readerKind == schema.Int64 ||
			readerKind == schema.Float || readerKind == schema.Double
	case schema.Int64:
		return readerKind == schema.Int64 || readerKind == schema.Float ||
			readerKind == schema.Double
	case schema.Float:
		return readerKind == schema.Float || readerKind == schema.Double
	case schema.Double:
		return readerKind == schema.Double
	case schema.String, schema.Bytes:
		return readerKind.IsStringFamily()
	}
	return false
}
