// Package sink declares the contract a materialized batch is written
// into. It is deliberately contracts-only: the enclosing query engine
// owns every implementation (row batches, memory budgets, spill-to-disk,
// whatever applies), the same way zbuf.Batch is an
// interface zio readers fill without knowing which concrete batch type
// backs it (zbuf/batch.go).
package sink

import "github.com/vortexdb/avroscan/materialize"

// TupleSink is the destination the block loop writes materialized rows
// into, and the only way a caller observes decoded output.
type TupleSink interface {
	// Reserve returns space for up to capacity rows: a pool to copy
	// variable-length values into, a tuple buffer (capacity rows of the
	// caller's fixed tuple width, concatenated), and a parallel row
	// buffer the block loop does not interpret — it is opaque state the
	// enclosing engine threads through reserve/commit for its own
	// bookkeeping (e.g. a selection vector), out of this component's
	// scope.
	Reserve() (pool *materialize.Pool, tupleBuf, rowBuf []byte, capacity int)
	// Commit publishes the first n rows of the buffers Reserve returned.
	Commit(n int)
	// EmitEmpty publishes n rows with no materialized columns, the fast
	// path for a projection that binds no slots at all. It returns the
	// number actually emitted, which may be less than n if a limit was
	// reached partway through.
	EmitEmpty(n int) int
	// LimitReached reports whether the sink has already accepted enough
	// rows and further decoding should stop.
	LimitReached() bool
	// TransferPool hands a pool whose bytes are now referenced by
	// committed tuples to the sink, which takes ownership of its
	// lifetime from this point on.
	TransferPool(pool *materialize.Pool)
}
