package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRecordWithNullableField(t *testing.T) {
	data := []byte(`{
		"type": "record",
		"name": "r",
		"fields": [
			{"name": "a", "type": "int"},
			{"name": "b", "type": ["null", "string"], "default": null}
		]
	}`)
	n, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, Record, n.Kind)
	require.Len(t, n.Fields, 2)
	require.Equal(t, Int32, n.Fields[0].Type.Kind)

	b := n.Fields[1].Type
	require.Equal(t, Union, b.Kind)
	pos, ok := b.Nullable()
	require.True(t, ok)
	require.Equal(t, 0, pos)
	require.True(t, n.Fields[1].HasDefault)
}

func TestParseDecimalLogicalType(t *testing.T) {
	data := []byte(`{"type": "bytes", "logicalType": "decimal", "precision": 9, "scale": 2}`)
	n, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, Decimal, n.Kind)
	require.Equal(t, 9, n.Precision)
	require.Equal(t, 2, n.Scale)
}

func TestParseRejectsFixed(t *testing.T) {
	data := []byte(`{"type": "fixed", "name": "f", "size": 16}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRejectsMap(t *testing.T) {
	data := []byte(`{"type": "map", "values": "int"}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRejectsArray(t *testing.T) {
	data := []byte(`{"type": "array", "items": "int"}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseRecordMissingFieldsFails(t *testing.T) {
	data := []byte(`{"type": "record", "name": "r"}`)
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseWrappedPrimitive(t *testing.T) {
	n, err := Parse([]byte(`{"type": "long"}`))
	require.NoError(t, err)
	require.Equal(t, Int64, n.Kind)
}

func TestDecodeDefaultScalarKinds(t *testing.T) {
	d, err := DecodeDefault(&Node{Kind: Boolean}, true)
	require.NoError(t, err)
	require.True(t, d.Bool)

	d, err = DecodeDefault(&Node{Kind: Int32}, float64(7))
	require.NoError(t, err)
	require.Equal(t, int64(7), d.Int64)

	d, err = DecodeDefault(&Node{Kind: String}, "x")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), d.Bytes)
}

func TestDecodeDefaultNullUnion(t *testing.T) {
	typ := &Node{Kind: Union, NullUnionPos: 0, Branches: []*Node{{Kind: Null}, {Kind: Int32}}}
	d, err := DecodeDefault(typ, nil)
	require.NoError(t, err)
	require.True(t, d.IsNull)
}

// TestDecodeDefaultUnsupportedKindFails exercises the UnsupportedDefault
// path one layer below resolve: a record-typed field has no scalar
// default representation, so DecodeDefault itself rejects it before
// resolve ever wraps the error with a Kind.
func TestDecodeDefaultUnsupportedKindFails(t *testing.T) {
	typ := &Node{Kind: Record, Fields: []Field{{Name: "x", Type: &Node{Kind: Int32}}}}
	_, err := DecodeDefault(typ, map[string]interface{}{"x": float64(1)})
	require.Error(t, err)
}
