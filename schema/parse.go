package schema

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Parse decodes an Avro schema JSON document into a writer-schema Node
// tree. It accepts only the constructs the scanner's resolver needs:
// primitives, records, unions, and the decimal logical type on bytes.
// Unions of any shape parse, but the decoders handle only two-branch
// unions with a null branch. Fixed types, including a decimal on fixed,
// are rejected. Per the scanner's non-goals, this is not
// a general-purpose Avro schema validator — malformed input fails with
// a diagnostic rather than being silently accepted or exhaustively
// checked against the full Avro spec.
func Parse(data []byte) (*Node, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("avro schema: %w", err)
	}
	return parseNode(raw)
}

func parseNode(raw interface{}) (*Node, error) {
	switch v := raw.(type) {
	case string:
		return parsePrimitiveName(v)
	case []interface{}:
		return parseUnion(v)
	case map[string]interface{}:
		return parseComplex(v)
	default:
		return nil, fmt.Errorf("avro schema: unexpected node %#v", raw)
	}
}

func parsePrimitiveName(name string) (*Node, error) {
	switch name {
	case "null":
		return &Node{Kind: Null}, nil
	case "boolean":
		return &Node{Kind: Boolean}, nil
	case "int":
		return &Node{Kind: Int32}, nil
	case "long":
		return &Node{Kind: Int64}, nil
	case "float":
		return &Node{Kind: Float}, nil
	case "double":
		return &Node{Kind: Double}, nil
	case "string":
		return &Node{Kind: String}, nil
	case "bytes":
		return &Node{Kind: Bytes}, nil
	default:
		return nil, fmt.Errorf("avro schema: unknown or unsupported named type %q", name)
	}
}

func parseUnion(branchesRaw []interface{}) (*Node, error) {
	branches := make([]*Node, 0, len(branchesRaw))
	for _, b := range branchesRaw {
		n, err := parseNode(b)
		if err != nil {
			return nil, err
		}
		branches = append(branches, n)
	}
	u := &Node{Kind: Union, Branches: branches, NullUnionPos: -1}
	for i, b := range branches {
		if b.Kind == Null {
			u.NullUnionPos = i
			break
		}
	}
	return u, nil
}

func parseComplex(m map[string]interface{}) (*Node, error) {
	typ, _ := m["type"].(string)
	if logical, ok := m["logicalType"].(string); ok && logical == "decimal" && typ == "bytes" {
		return parseDecimal(m)
	}
	switch typ {
	case "record":
		return parseRecord(m)
	case "fixed", "enum":
		return nil, fmt.Errorf("avro schema: %s type is not supported by this scanner", typ)
	case "array", "map":
		return nil, fmt.Errorf("avro schema: %s type is not supported by this scanner", typ)
	case "":
		return nil, fmt.Errorf("avro schema: object missing \"type\"")
	default:
		// {"type": "long"} style wrapping of a primitive.
		return parsePrimitiveName(typ)
	}
}

func parseDecimal(m map[string]interface{}) (*Node, error) {
	p, ok := m["precision"].(float64)
	if !ok {
		return nil, fmt.Errorf("avro schema: decimal missing precision")
	}
	s, _ := m["scale"].(float64)
	return &Node{Kind: Decimal, Precision: int(p), Scale: int(s)}, nil
}

func parseRecord(m map[string]interface{}) (*Node, error) {
	fieldsRaw, ok := m["fields"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("avro schema: record missing \"fields\"")
	}
	fields := make([]Field, 0, len(fieldsRaw))
	for _, fr := range fieldsRaw {
		fm, ok := fr.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("avro schema: record field must be an object")
		}
		name, ok := fm["name"].(string)
		if !ok {
			return nil, fmt.Errorf("avro schema: record field missing \"name\"")
		}
		typeNode, err := parseNode(fm["type"])
		if err != nil {
			return nil, fmt.Errorf("avro schema: field %q: %w", name, err)
		}
		f := Field{Name: name, Type: typeNode}
		if dv, ok := fm["default"]; ok {
			f.HasDefault = true
			f.DefaultRaw = dv
		}
		fields = append(fields, f)
	}
	return &Node{Kind: Record, Fields: fields}, nil
}

// DecodeDefault decodes a default value's raw JSON (as produced by
// Parse, stashed on Field.DefaultRaw) against the field's declared
// type. Decoding is deferred to resolution time, not done eagerly
// during Parse, because an unsupported default kind is a
// resolution-time failure (UnsupportedDefault/UnsupportedDefaultRecord)
// only for fields actually missing from the writer schema — a schema
// with a default the file's writer happens to supply a value for is
// never evaluated.
func DecodeDefault(typ *Node, raw interface{}) (Default, error) {
	kind := typ.Kind
	if typ.Kind == Union {
		if _, ok := typ.Nullable(); ok && raw == nil {
			return Default{Kind: Null, IsNull: true}, nil
		}
		if len(typ.Branches) > 0 {
			kind = typ.Branches[0].Kind
		}
	}
	switch kind {
	case Null:
		return Default{Kind: Null, IsNull: true}, nil
	case Boolean:
		b, _ := raw.(bool)
		return Default{Kind: Boolean, Bool: b}, nil
	case Int32, Int64:
		f, _ := raw.(float64)
		return Default{Kind: kind, Int64: int64(f)}, nil
	case Float, Double:
		f, _ := raw.(float64)
		return Default{Kind: kind, Float64: f}, nil
	case String, Bytes:
		s, _ := raw.(string)
		return Default{Kind: kind, Bytes: []byte(s)}, nil
	default:
		return Default{}, fmt.Errorf("default kind %s is not supported", kind)
	}
}
