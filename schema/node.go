// Package schema is the in-memory representation of Avro schema trees:
// the writer schema parsed from a file's avro.schema metadata, and the
// reader (table) schema supplied by the query.
//
// The shape — named children for a record, index-tagged branches for a
// union — is grounded on zng.TypeRecord (named columns
// plus a name lookup table, zng/record.go) and zng.TypeUnion (an
// ordered, index-selected list of member types, zng/union.go). Avro's
// schema model is simpler than zng's full type algebra (no sets, no
// maps, no enums beyond what this scanner needs to resolve), so Node is
// a flat tagged struct rather than an interface-per-kind hierarchy.
package schema

// Kind tags the variety of an Avro schema node. Varchar and Char never
// appear in a parsed writer schema — they exist only on reader-schema
// leaves, where the table schema pins down a physical string width.
type Kind int

const (
	Null Kind = iota
	Boolean
	Int32
	Int64
	Float
	Double
	String
	Bytes
	Decimal
	Record
	Union
	Varchar
	Char
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Int32:
		return "int"
	case Int64:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Decimal:
		return "decimal"
	case Record:
		return "record"
	case Union:
		return "union"
	case Varchar:
		return "varchar"
	case Char:
		return "char"
	}
	return "unknown"
}

// IsStringFamily reports whether k is assignable from an Avro string or
// bytes writer leaf under the promotion matrix.
func (k Kind) IsStringFamily() bool {
	return k == String || k == Bytes || k == Varchar || k == Char
}

// Field is one named member of a Record node.
type Field struct {
	Name       string
	Type       *Node
	HasDefault bool
	// DefaultRaw is the default's raw decoded-JSON value, not yet
	// interpreted against Type. See DecodeDefault.
	DefaultRaw interface{}
}

// Default holds a decoded Avro default value, one of the kinds listed
// in the scanner's default-encoding rules: bool/int32/int64/float/
// double/null written directly, string/bytes kept as raw bytes that
// resolve.ApplyTemplate copies into the live pool on every row.
type Default struct {
	Kind    Kind
	IsNull  bool
	Bool    bool
	Int64   int64
	Float64 float64
	Bytes   []byte
}

// Node is one node of a schema tree.
type Node struct {
	Kind Kind

	// Record
	Fields []Field

	// Union
	Branches     []*Node
	NullUnionPos int // index of the null branch as set by Parse for a union (-1 if it has none); Nullable computes the position from Branches instead

	// Decimal
	Precision int
	Scale     int

	// Varchar/Char declared length (reader-schema leaves only)
	Len int
}

// Nullable reports whether n is a two-branch union with one null
// branch, and if so returns the position of that branch.
func (n *Node) Nullable() (nullPos int, ok bool) {
	if n.Kind != Union || len(n.Branches) != 2 {
		return -1, false
	}
	for i, b := range n.Branches {
		if b.Kind == Null {
			return i, true
		}
	}
	return -1, false
}

// NonNullBranch returns the branch of a nullable union that is not the
// null branch. It panics if n is not a nullable union.
func (n *Node) NonNullBranch() *Node {
	pos, ok := n.Nullable()
	if !ok {
		panic("schema: NonNullBranch called on non-nullable node")
	}
	return n.Branches[1-pos]
}

// FieldByName returns the index of the named field, or -1 if absent.
func (n *Node) FieldByName(name string) int {
	for i, f := range n.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether n and other are structurally identical —
// same kind, same field names and types in the same order, same union
// branches, same decimal/varchar parameters. This backs
// can_use_specialized_decoder.
func Equal(n, other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case Record:
		if len(n.Fields) != len(other.Fields) {
			return false
		}
		for i := range n.Fields {
			if n.Fields[i].Name != other.Fields[i].Name {
				return false
			}
			if !Equal(n.Fields[i].Type, other.Fields[i].Type) {
				return false
			}
		}
		return true
	case Union:
		if len(n.Branches) != len(other.Branches) {
			return false
		}
		for i := range n.Branches {
			if !Equal(n.Branches[i], other.Branches[i]) {
				return false
			}
		}
		return true
	case Decimal:
		return n.Precision == other.Precision && n.Scale == other.Scale
	case Varchar, Char:
		return n.Len == other.Len
	default:
		return true
	}
}
