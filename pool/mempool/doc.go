// Package mempool provides fixed-capacity memory pools for a single element
// type.
//
// # Overview
//
// A pool owns one contiguous region of Capacity chunks, each exactly one T
// wide and aligned for T. Chunks are handed out and taken back in O(1)
// through an intrusive free list. The region is allocated once at
// construction and never grows, so a pool never allocates after New returns.
//
// # Pools
//
// MemoryPool: single-threaded pool
//
//   - TryAllocate(): pop one chunk, nil when exhausted
//   - Free(chunk): push a chunk back, rejecting foreign chunks and double frees
//   - Close(): release the region once every chunk is back
//
// SharedMemoryPool: thread-safe pool
//
//   - Allocate(): block until a chunk is free
//   - AllocateContext(ctx): block with cancellation
//   - TryAllocate(): never block
//   - TryAllocateFor(d): block for at most d
//
// The shared pool pairs a mutex with a counting semaphore whose value is the
// number of free chunks. Waiting on the semaphore is the only blocking point;
// list manipulation under the mutex is O(1).
//
// # Usage Example
//
//	p, err := mempool.NewShared[Message](32, nil)
//	if err != nil {
//	    return err
//	}
//
//	msg := p.Allocate()
//	*msg = Message{ID: 7}
//
//	// Later, give the chunk back
//	if err := p.Free(msg); err != nil {
//	    return err
//	}
//
// # Chunk Contents
//
// A freshly allocated chunk holds whatever its previous occupant left behind.
// Pools never construct or destroy values; see package objpool for typed
// construction with rollback.
//
// # Storage
//
// Chunks live on the Go heap by default. StorageMapped places them in an
// anonymous memory mapping instead, which keeps large pools out of the
// garbage collector's view. Mapped storage only accepts element types
// without pointers.
//
// # Related Packages
//
//   - github.com/ombre5733/weos-sub002/pool/objpool: Typed construction and destruction on top of these pools
package mempool
