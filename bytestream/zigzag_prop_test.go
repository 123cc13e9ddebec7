package bytestream

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// encodeZLong is a reference zig-zag encoder, used only to build fixtures
// for the round-trip property below — production code never encodes.
func encodeZLong(v int64) []byte {
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

func TestZigZagRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(x)) == x for any int64", prop.ForAll(
		func(v int64) bool {
			encoded := encodeZLong(v)
			s := New(bytes.NewReader(encoded), "fixture", len(encoded), len(encoded))
			decoded, err := s.ReadZLong()
			return err == nil && decoded == v
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestZigZagLongerThanTenBytesFails(t *testing.T) {
	// 10 continuation bytes with no terminator never resolves to a value.
	junk := bytes.Repeat([]byte{0x80}, 11)
	s := New(bytes.NewReader(junk), "fixture", len(junk), len(junk))
	if _, err := s.ReadZLong(); err == nil {
		t.Fatal("expected an error decoding an unterminated varint")
	}
}
