package mempool

import "github.com/juju/errors"

const (
	// ErrForeignChunk indicates a pointer that does not address a chunk of
	// this pool.
	ErrForeignChunk = errors.ConstError("mempool: chunk does not belong to pool")

	// ErrDoubleFree indicates an attempt to free or retire a chunk that is
	// not held by a caller.
	ErrDoubleFree = errors.ConstError("mempool: chunk is not allocated")

	// ErrInUse indicates that the pool still has chunks handed out.
	ErrInUse = errors.ConstError("mempool: chunks still in use")

	// ErrZeroSizeElement indicates an element type that occupies no memory.
	ErrZeroSizeElement = errors.ConstError("mempool: element type has zero size")
)
