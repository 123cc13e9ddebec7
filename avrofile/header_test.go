package avrofile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/schema"
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

func lengthPrefixed(b []byte) []byte {
	return append(zigzag(int64(len(b))), b...)
}

func buildMetadata(m map[string][]byte) []byte {
	var out []byte
	out = append(out, zigzag(int64(len(m)))...)
	for k, v := range m {
		out = append(out, lengthPrefixed([]byte(k))...)
		out = append(out, lengthPrefixed(v)...)
	}
	out = append(out, zigzag(0)...)
	return out
}

func buildHeader(schemaJSON, codecName string, sync [16]byte) []byte {
	meta := map[string][]byte{"avro.schema": []byte(schemaJSON)}
	if codecName != "" {
		meta["avro.codec"] = []byte(codecName)
	}
	var out []byte
	out = append(out, 'O', 'b', 'j', 0x01)
	out = append(out, buildMetadata(meta)...)
	out = append(out, sync[:]...)
	return out
}

func TestParseHeaderBadMagic(t *testing.T) {
	bs := bytestream.New(bytes.NewReader([]byte("NOPE")), "t", 0, 0)
	_, err := ParseHeader(bs, Options{ReaderSchema: &schema.Node{Kind: schema.Record, Fields: []schema.Field{{Name: "a", Type: &schema.Node{Kind: schema.Int32}}}}})
	require.Error(t, err)
	require.Equal(t, avroerr.BadVersionHeader, avroerr.KindOf(err))
}

func TestParseHeaderMinimal(t *testing.T) {
	var sync [16]byte
	data := buildHeader(`{"type":"record","name":"r","fields":[{"name":"a","type":"int"}]}`, "", sync)
	bs := bytestream.New(bytes.NewReader(data), "t", 0, 0)

	reader := &schema.Node{Kind: schema.Record, Fields: []schema.Field{{Name: "a", Type: &schema.Node{Kind: schema.Int32}}}}
	h, err := ParseHeader(bs, Options{
		Filename:     "t",
		ReaderSchema: reader,
		Slots:        []resolve.SlotDescriptor{{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1}},
		TupleSize:    5,
	})
	require.NoError(t, err)
	require.Equal(t, sync, h.Sync)
	require.True(t, h.Plan.CanUseSpecializedDecoder)
	require.NotNil(t, h.Specialized)
}

func TestParseHeaderUnknownCodec(t *testing.T) {
	var sync [16]byte
	data := buildHeader(`{"type":"record","name":"r","fields":[{"name":"a","type":"int"}]}`, "bzip2", sync)
	bs := bytestream.New(bytes.NewReader(data), "t", 0, 0)

	reader := &schema.Node{Kind: schema.Record, Fields: []schema.Field{{Name: "a", Type: &schema.Node{Kind: schema.Int32}}}}
	_, err := ParseHeader(bs, Options{Filename: "t", ReaderSchema: reader, TupleSize: 5})
	require.Error(t, err)
	require.Equal(t, avroerr.UnknownCodec, avroerr.KindOf(err))
}

// TestParseHeaderNullabilityMismatchFailsFast is scenario 5: resolution
// errors surface while parsing the header, before any block is read.
func TestParseHeaderNullabilityMismatchFailsFast(t *testing.T) {
	var sync [16]byte
	data := buildHeader(`{"type":"record","name":"r","fields":[{"name":"a","type":["null","int"]}]}`, "", sync)
	bs := bytestream.New(bytes.NewReader(data), "t", 0, 0)

	reader := &schema.Node{Kind: schema.Record, Fields: []schema.Field{{Name: "a", Type: &schema.Node{Kind: schema.Int32}}}}
	_, err := ParseHeader(bs, Options{
		Filename:     "t",
		ReaderSchema: reader,
		Slots:        []resolve.SlotDescriptor{{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1}},
		TupleSize:    5,
	})
	require.Error(t, err)
	require.Equal(t, avroerr.NullabilityMismatch, avroerr.KindOf(err))
}

func TestHeaderCacheReusesPlan(t *testing.T) {
	var sync [16]byte
	schemaJSON := `{"type":"record","name":"r","fields":[{"name":"a","type":"int"}]}`
	data := buildHeader(schemaJSON, "", sync)
	reader := &schema.Node{Kind: schema.Record, Fields: []schema.Field{{Name: "a", Type: &schema.Node{Kind: schema.Int32}}}}
	cache := NewHeaderCache()

	for i := 0; i < 2; i++ {
		bs := bytestream.New(bytes.NewReader(data), "t", 0, 0)
		_, err := ParseHeader(bs, Options{
			Filename:     "t",
			ReaderSchema: reader,
			Slots:        []resolve.SlotDescriptor{{ColumnPath: []int{0}, NullOffset: 0, TupleOffset: 1}},
			TupleSize:    5,
			Cache:        cache,
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1, cache.Len())
}
