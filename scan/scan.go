// Package scan ties header parsing, schema resolution, and the block
// loop into the upward contract the enclosing query engine drives:
// prepare once, then process_range repeatedly until the file is done.
//
// The split between a one-time Prepare and a resumable ProcessRange
// mirrors zio/zngio/scanner.go's newScannerSync/scanBatch pair: one
// call establishes the decoded header and buffers, the other is called
// repeatedly and returns whenever its tuple sink reports its limit
// reached, leaving the underlying stream at the next block boundary.
package scan

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/avrofile"
	"github.com/vortexdb/avroscan/block"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/schema"
	"github.com/vortexdb/avroscan/sink"
	"github.com/vortexdb/avroscan/specialize"
)

// Status reports whether a Scanner's file is exhausted or whether more
// ranges remain to be processed.
type Status int

const (
	// StatusContinue means the tuple sink reported its limit reached
	// before the file was fully consumed; ProcessRange stopped at the
	// next block boundary. Rows of that block which were not decoded
	// when the limit was reached are not produced by a later call.
	StatusContinue Status = iota
	// StatusDone means the file reached a clean end.
	StatusDone
)

func (s Status) String() string {
	if s == StatusDone {
		return "done"
	}
	return "continue"
}

// Options configures one Scanner's file and ambient stack.
type Options struct {
	Filename      string
	Log           *zap.Logger
	ReaderSchema  *schema.Node
	Slots         []resolve.SlotDescriptor
	PartitionKeys int
	TupleSize     int
	Cache         *avrofile.HeaderCache
	Sink          sink.TupleSink
}

// Scanner decodes one Avro object container file against opts.Sink.
// It is single-threaded: one Scanner serves one file on one goroutine.
type Scanner struct {
	opts   Options
	bs     *bytestream.Stream
	header *avrofile.Header
	rows   int64
}

// New returns a Scanner reading from r. Prepare must be called before
// ProcessRange.
func New(r io.Reader, opts Options) *Scanner {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	opts.Log = log
	return &Scanner{
		opts: opts,
		bs:   bytestream.New(r, opts.Filename, 0, 0),
	}
}

// Prepare validates the reader schema and parses and resolves the
// file's header. It must be called exactly once, before any call to
// ProcessRange.
func (s *Scanner) Prepare(ctx context.Context) (Status, error) {
	if s.opts.ReaderSchema == nil {
		return StatusDone, avroerr.E(avroerr.SchemaResolutionError, avroerr.Location{Filename: s.opts.Filename}, "reader schema is required")
	}
	header, err := avrofile.ParseHeader(s.bs, avrofile.Options{
		Filename:      s.opts.Filename,
		ReaderSchema:  s.opts.ReaderSchema,
		Slots:         s.opts.Slots,
		PartitionKeys: s.opts.PartitionKeys,
		TupleSize:     s.opts.TupleSize,
		Cache:         s.opts.Cache,
	})
	if err != nil {
		return StatusDone, err
	}
	s.opts.Log.Debug("prepared avro file",
		zap.String("filename", s.opts.Filename),
		zap.Bool("specialized", header.Specialized != nil),
		zap.Bool("bound", header.Plan.HasBoundSlots),
	)
	s.header = header
	return StatusContinue, nil
}

// ProcessRange drives the block loop until the tuple sink reports its
// limit reached or the file ends, whichever comes first.
func (s *Scanner) ProcessRange(ctx context.Context) (Status, error) {
	if s.header == nil {
		return StatusDone, avroerr.E(avroerr.Other, "ProcessRange called before Prepare")
	}
	n, err := block.Loop(ctx, s.bs, s.header, s.opts.Sink, s.opts.Log)
	s.rows += n
	if err != nil {
		return StatusDone, err
	}
	if s.bs.AtEOF() {
		return StatusDone, nil
	}
	return StatusContinue, nil
}

// Specialize compiles a fresh specialized decoder program for the plan
// Prepare resolved, the hook the engine may call if it wants to force
// re-specialization. The plan, and so its projected slots, is the one
// Prepare built. It returns an error if readerSchema does not match the
// schema Prepare resolved against.
func (s *Scanner) Specialize(readerSchema *schema.Node) (*specialize.Program, error) {
	if s.header == nil {
		return nil, avroerr.E(avroerr.Other, "Specialize called before Prepare")
	}
	if !schema.Equal(readerSchema, s.header.Plan.Reader) {
		return nil, avroerr.E(avroerr.SchemaResolutionError, avroerr.Location{Filename: s.opts.Filename}, "reader schema does not match the prepared plan")
	}
	return specialize.Compile(s.header.Plan.Root)
}

// RowsProduced reports the running total of rows this Scanner has
// committed or emitted, across every ProcessRange call so far.
func (s *Scanner) RowsProduced() int64 { return s.rows }
