// Package memsink is a reference sink.TupleSink backed by plain Go
// slices, used by tests to drive the block loop and materializer
// without a real query engine's batch machinery. It mirrors the
// zbuf.Array, the simplest concrete zbuf.Batch — a slice of
// records with no pooling or spill behavior of its own.
package memsink

import (
	"github.com/vortexdb/avroscan/bytepool"
	"github.com/vortexdb/avroscan/materialize"
)

// Sink accumulates committed tuples in memory. It is not safe for
// concurrent use, matching the scanner's single-goroutine-per-file model.
type Sink struct {
	tupleWidth int
	batchCap   int
	limit      int

	rows      [][]byte
	emptyRows int
	pools     []*materialize.Pool

	curPool       *materialize.Pool
	lastTupleBuf  []byte
}

// New returns a Sink that batches up to batchCap rows per Reserve call
// and stops accepting rows once limit rows have been produced. limit <=
// 0 means unlimited.
func New(tupleWidth, batchCap, limit int) *Sink {
	return &Sink{tupleWidth: tupleWidth, batchCap: batchCap, limit: limit}
}

func (s *Sink) Reserve() (pool *materialize.Pool, tupleBuf, rowBuf []byte, capacity int) {
	cap := s.batchCap
	if s.limit > 0 {
		if remaining := s.limit - s.produced(); remaining < cap {
			cap = remaining
		}
	}
	if cap < 0 {
		cap = 0
	}
	s.curPool = bytepool.New()
	s.lastTupleBuf = make([]byte, cap*s.tupleWidth)
	return s.curPool, s.lastTupleBuf, make([]byte, cap), cap
}

func (s *Sink) Commit(n int) {
	// The tupleBuf handed back by the preceding Reserve is this batch's
	// own allocation, so rows can be re-sliced from it directly rather
	// than copied.
	for i := 0; i < n; i++ {
		s.rows = append(s.rows, s.lastTupleBuf[i*s.tupleWidth:(i+1)*s.tupleWidth])
	}
}

func (s *Sink) EmitEmpty(n int) int {
	if s.limit > 0 {
		if remaining := s.limit - s.produced(); n > remaining {
			n = remaining
		}
	}
	if n < 0 {
		n = 0
	}
	s.emptyRows += n
	return n
}

func (s *Sink) LimitReached() bool {
	return s.limit > 0 && s.produced() >= s.limit
}

func (s *Sink) TransferPool(pool *materialize.Pool) {
	s.pools = append(s.pools, pool)
}

func (s *Sink) produced() int {
	return len(s.rows) + s.emptyRows
}

// Rows returns every committed tuple, in production order.
func (s *Sink) Rows() [][]byte { return s.rows }

// EmptyRowCount returns how many rows were produced via EmitEmpty.
func (s *Sink) EmptyRowCount() int { return s.emptyRows }

// Pools returns every pool transferred to the sink, kept alive for as
// long as the sink itself is, since committed tuples hold offsets into
// them.
func (s *Sink) Pools() []*materialize.Pool { return s.pools }
