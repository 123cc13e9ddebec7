// Package block drives the block loop: read a record-count/byte-size
// frame, hand the payload to the file's decompressor, and materialize
// each record into the tuple sink a batch at a time.
//
// The read-frame-header/decompress/iterate-against-a-reserve-commit-sink
// shape is grounded on zio/zngio/scanner.go's scanBatch, which reads a
// frame tag, decompresses a zngio buffer, and feeds zbuf.Batch via the
// same reserve/commit discipline; cancellation is polled at the same
// two points (between blocks, between reserve/commit batches) as
// scanner.go polls ctx.Done(), collapsed here to a plain ctx.Err()
// check since this loop runs on one goroutine, not a worker pool.
package block

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/vortexdb/avroscan/avroerr"
	"github.com/vortexdb/avroscan/avrofile"
	"github.com/vortexdb/avroscan/bytestream"
	"github.com/vortexdb/avroscan/codec"
	"github.com/vortexdb/avroscan/materialize"
	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/sink"
	"github.com/vortexdb/avroscan/specialize"
)

// Loop consumes every remaining block in bs against header, writing
// materialized rows into s, until bs reaches a clean end of file or s
// reports its limit reached after a block's sync marker has been
// checked. It returns the total number of rows produced.
func Loop(ctx context.Context, bs *bytestream.Stream, header *avrofile.Header, s sink.TupleSink, log *zap.Logger) (int64, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if bs.AtEOF() {
			return total, nil
		}

		recordCount, err := bs.ReadZLong()
		if err != nil {
			return total, err
		}
		if recordCount < 0 {
			return total, avroerr.E(avroerr.InvalidRecordCount, loc(bs), "negative record count %d", recordCount)
		}
		blockSize, err := bs.ReadZLong()
		if err != nil {
			return total, err
		}
		if blockSize < 0 {
			return total, avroerr.E(avroerr.InvalidCompressedSize, loc(bs), "negative block size %d", blockSize)
		}

		log.Debug("block", zap.Int64("records", recordCount), zap.Int64("bytes", blockSize))

		var n int64
		if !header.Plan.HasBoundSlots {
			n, err = skipBlock(bs, s, recordCount, blockSize)
		} else {
			n, err = decodeBlock(ctx, bs, header, s, recordCount, blockSize)
		}
		total += n
		if err != nil {
			return total, err
		}

		syncBytes, err := bs.ReadBytes(16)
		if err != nil {
			return total, err
		}
		if !bytes.Equal(syncBytes, header.Sync[:]) {
			return total, avroerr.E(avroerr.SyncLost, loc(bs))
		}
		if s.LimitReached() {
			return total, nil
		}
	}
}

// skipBlock handles a pure row-count projection: the payload never
// needs to be decompressed, since no column is bound to a slot.
func skipBlock(bs *bytestream.Stream, s sink.TupleSink, recordCount, blockSize int64) (int64, error) {
	if _, err := bs.ReadBytes(int(blockSize)); err != nil {
		return 0, err
	}
	return int64(s.EmitEmpty(int(recordCount))), nil
}

func decodeBlock(ctx context.Context, bs *bytestream.Stream, header *avrofile.Header, s sink.TupleSink, recordCount, blockSize int64) (int64, error) {
	payload, err := bs.ReadBytes(int(blockSize))
	if err != nil {
		return 0, err
	}

	raw := payload
	if header.Codec == codec.Snappy {
		if len(raw) < 4 {
			return 0, avroerr.E(avroerr.InvalidCompressedSize, loc(bs), "snappy block shorter than its trailing checksum")
		}
		raw = raw[:len(raw)-4] // trailing CRC-32C is not part of the snappy frame
	}
	decoded, _, err := header.Decompressor.Decompress(raw)
	if err != nil {
		return 0, err
	}

	cur := bytestream.New(bytes.NewReader(decoded), header.Filename, len(decoded), len(decoded))
	width := len(header.Plan.Template)
	var total int64
	remaining := recordCount
	for remaining > 0 {
		if s.LimitReached() {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}

		pool, tupleBuf, _, capacity := s.Reserve()
		if capacity <= 0 {
			return total, avroerr.E(avroerr.Other, "tuple sink reserved zero capacity")
		}
		batch := int64(capacity)
		if batch > remaining {
			batch = remaining
		}

		for i := int64(0); i < batch; i++ {
			row := tupleBuf[i*int64(width) : (i+1)*int64(width)]
			resolve.ApplyTemplate(header.Plan, pool, row)
			if header.Specialized != nil {
				err = specialize.Run(header.Specialized, cur, pool, row)
			} else {
				err = materialize.Record(header.Plan, cur, pool, row)
			}
			if err != nil {
				return total, err
			}
		}

		s.Commit(int(batch))
		s.TransferPool(pool)
		total += batch
		remaining -= batch
	}
	return total, nil
}

func loc(bs *bytestream.Stream) avroerr.Location {
	return avroerr.Location{Filename: bs.Filename(), Offset: int64(bs.FileOffset())}
}
