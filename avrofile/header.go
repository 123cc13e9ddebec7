// Package avrofile decodes the Avro object container file header: the
// version magic, the avro.schema/avro.codec metadata map, and the
// 16-byte sync marker, then drives schema resolution once per file.
//
// The read-a-leading-count-then-dispatch shape is grounded on
// zio/zngio/reader.go's directive loop (parseDescriptor/parseAlias,
// dispatched from a leading integer read off the line) even though the
// wire format here — Avro's map-of-bytes, zig-zag-length-prefixed
// key/value pairs — is unrelated to zng's text directives; what
// transfers is the "read count, loop over typed entries, default branch
// ignores unrecognized keys" control flow.
package avrofile

import (
	"bytes"
	"math"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/codec"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/schema"
	"github.com/vortexdb/avroscan/specialize"
)

var magic = [4]byte{'O', 'b', 'j', 0x01}

// Options configures header parsing for one file.
type Options struct {
	Filename      string
	ReaderSchema  *schema.Node
	Slots         []resolve.SlotDescriptor
	PartitionKeys int
	TupleSize     int
	Cache         *HeaderCache
}

// Header is the immutable, once-per-file state produced by ParseHeader.
type Header struct {
	Writer       *schema.Node
	Plan         *resolve.Plan
	Sync         [16]byte
	Codec        codec.Name
	Decompressor codec.Decompressor
	Specialized  *specialize.Program
	Filename     string
}

// ParseHeader parses the container file header from bs and resolves
// the writer schema it finds against opts.ReaderSchema.
func ParseHeader(bs *bytestream.Stream, opts Options) (*Header, error) {
	magicBytes, err := bs.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magicBytes, magic[:]) {
		return nil, avroerr.E(avroerr.BadVersionHeader, avroerr.Location{Filename: opts.Filename, Offset: int64(bs.FileOffset())})
	}

	meta, err := parseMetadata(bs, opts.Filename)
	if err != nil {
		return nil, err
	}

	syncBytes, err := bs.ReadBytes(16)
	if err != nil {
		return nil, err
	}
	var sync [16]byte
	copy(sync[:], syncBytes) // copied, not borrowed, per the resource model

	schemaBytes, ok := meta["avro.schema"]
	if !ok {
		return nil, avroerr.E(avroerr.BadSchema, avroerr.Location{Filename: opts.Filename}, "missing avro.schema metadata key")
	}

	codecName := codec.Null
	if cb, ok := meta["avro.codec"]; ok {
		switch codec.Name(cb) {
		case codec.Null, codec.Snappy, codec.Deflate:
			codecName = codec.Name(cb)
		default:
			return nil, avroerr.E(avroerr.UnknownCodec, avroerr.Location{Filename: opts.Filename}, "unknown codec %q", string(cb))
		}
	}

	var plan *resolve.Plan
	var specProg *specialize.Program
	cacheKey := string(schemaBytes)
	if opts.Cache != nil {
		if cached, ok := opts.Cache.get(cacheKey); ok {
			plan, specProg = cached.plan, cached.specialized
		}
	}
	if plan == nil {
		writerNode, err := schema.Parse(schemaBytes)
		if err != nil {
			return nil, avroerr.E(avroerr.BadSchema, avroerr.Location{Filename: opts.Filename}, err)
		}
		if writerNode.Kind != schema.Record {
			return nil, avroerr.E(avroerr.BadSchema, avroerr.Location{Filename: opts.Filename}, "writer schema root is not a record")
		}
		if len(writerNode.Fields) == 0 {
			return nil, avroerr.E(avroerr.EmptySchema, avroerr.Location{Filename: opts.Filename})
		}
		plan, err = resolve.Resolve(opts.Filename, opts.ReaderSchema, writerNode, opts.Slots, opts.PartitionKeys, opts.TupleSize)
		if err != nil {
			return nil, err
		}
		if plan.CanUseSpecializedDecoder {
			// Specialization is an optimization only; a compile failure
			// falls back silently to the interpreted materializer.
			specProg, _ = specialize.Compile(plan.Root)
		}
		if opts.Cache != nil {
			opts.Cache.put(cacheKey, plan, specProg)
		}
	}

	decomp, err := codec.ForCodec(codecName)
	if err != nil {
		return nil, avroerr.E(avroerr.UnknownCodec, avroerr.Location{Filename: opts.Filename}, err)
	}

	return &Header{
		Writer:       plan.Writer,
		Plan:         plan,
		Sync:         sync,
		Codec:        codecName,
		Decompressor: decomp,
		Specialized:  specProg,
		Filename:     opts.Filename,
	}, nil
}

// parseMetadata reads an Avro map<bytes>: a sequence of blocks, each
// headed by a zig-zag count, terminated by a zero count. A negative
// count means the absolute value is the true count and a byte-size
// hint follows, which is read and discarded per the Avro spec.
func parseMetadata(bs *bytestream.Stream, filename string) (map[string][]byte, error) {
	meta := make(map[string][]byte)
	for {
		n, err := bs.ReadZLong()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return meta, nil
		}
		count := n
		if count < 0 {
			if count == math.MinInt64 {
				return nil, avroerr.E(avroerr.InvalidMetadataCount, avroerr.Location{Filename: filename, Offset: int64(bs.FileOffset())})
			}
			count = -count
			if _, err := bs.ReadZLong(); err != nil { // byte-size hint, ignored
				return nil, err
			}
		}
		if count < 0 {
			return nil, avroerr.E(avroerr.InvalidMetadataCount, avroerr.Location{Filename: filename, Offset: int64(bs.FileOffset())})
		}
		for i := int64(0); i < count; i++ {
			key, err := readLengthPrefixed(bs, filename)
			if err != nil {
				return nil, err
			}
			val, err := readLengthPrefixed(bs, filename)
			if err != nil {
				return nil, err
			}
			meta[string(key)] = val
		}
	}
}

func readLengthPrefixed(bs *bytestream.Stream, filename string) ([]byte, error) {
	n, err := bs.ReadZLong()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, avroerr.E(avroerr.InvalidLength, avroerr.Location{Filename: filename, Offset: int64(bs.FileOffset())})
	}
	borrowed, err := bs.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(borrowed))
	copy(out, borrowed)
	return out, nil
}
