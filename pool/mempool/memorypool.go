package mempool

import (
	"unsafe"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/ombre5733/weos-sub002/internal/freelist"
	"github.com/ombre5733/weos-sub002/internal/storage"
)

var logger = loggo.GetLogger("weos.pool.mempool")

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// MemoryPool hands out chunks of storage for single values of type T.
//
// MemoryPool is not safe for concurrent use; see SharedMemoryPool.
type MemoryPool[T any] struct {
	_ noCopy

	name    string
	region  *storage.Region[T]
	list    *freelist.List
	metrics MetricsProvider
	closed  bool
}

// New creates a pool of capacity chunks. Options may be nil.
//
// The free list is threaded in ascending address order, so consecutive
// allocations from a fresh pool return consecutive chunks starting at the
// lowest address.
func New[T any](capacity int, opts *Options) (*MemoryPool[T], error) {
	o, err := opts.resolve()
	if err != nil {
		return nil, errors.Annotate(err, "memory pool options")
	}
	var zero T
	if unsafe.Sizeof(zero) == 0 {
		return nil, errors.Annotatef(ErrZeroSizeElement, "%T", zero)
	}
	if capacity <= 0 || uint64(capacity) > freelist.MaxLen {
		return nil, errors.NotValidf("pool capacity %d", capacity)
	}

	region, err := storage.New[T](o.Storage, capacity)
	if err != nil {
		return nil, errors.Annotatef(err, "pool %q", o.Name)
	}
	list, err := freelist.New(capacity)
	if err != nil {
		_ = region.Release()
		return nil, errors.Annotatef(err, "pool %q", o.Name)
	}

	p := &MemoryPool[T]{
		name:    o.Name,
		region:  region,
		list:    list,
		metrics: o.Metrics,
	}
	p.metrics.SetFreeChunks(float64(capacity))
	return p, nil
}

// Name returns the name the pool was configured with.
func (p *MemoryPool[T]) Name() string { return p.name }

// Capacity returns the total number of chunks.
func (p *MemoryPool[T]) Capacity() int { return p.list.Cap() }

// Empty reports whether every chunk is handed out.
func (p *MemoryPool[T]) Empty() bool { return p.list.Empty() }

// Size returns the number of free chunks.
func (p *MemoryPool[T]) Size() int { return p.list.Len() }

// Storage returns the chunk backing of the pool.
func (p *MemoryPool[T]) Storage() Storage { return p.region.Kind() }

// TryAllocate returns a free chunk, or nil if the pool is exhausted or
// closed. The chunk's contents are whatever its previous user left.
func (p *MemoryPool[T]) TryAllocate() *T {
	if p.closed {
		return nil
	}
	i, ok := p.list.TryAllocate()
	if !ok {
		p.metrics.IncrementAllocationMisses()
		return nil
	}
	p.metrics.IncrementAllocations()
	p.metrics.SetFreeChunks(float64(p.list.Len()))
	return p.region.Slot(i)
}

// Free returns chunk to the pool. It fails with ErrForeignChunk if chunk was
// not handed out by this pool and with ErrDoubleFree if it is already free.
// A failed Free leaves the pool unchanged.
func (p *MemoryPool[T]) Free(chunk *T) error {
	i, err := p.index(chunk, "free")
	if err != nil {
		return err
	}
	if err := p.list.Free(i); err != nil {
		p.metrics.IncrementMisuse()
		logger.Warningf("pool %q: rejected free of chunk %d: not allocated", p.name, i)
		return errors.Annotatef(ErrDoubleFree, "pool %q: chunk %d", p.name, i)
	}
	p.metrics.IncrementFrees()
	p.metrics.SetFreeChunks(float64(p.list.Len()))
	return nil
}

// Retire marks a held chunk as being torn down. A retired chunk is still
// unavailable for allocation and must be given back with Free; retiring it
// again fails with ErrDoubleFree.
func (p *MemoryPool[T]) Retire(chunk *T) error {
	i, err := p.index(chunk, "retire")
	if err != nil {
		return err
	}
	if err := p.list.Retire(i); err != nil {
		p.metrics.IncrementMisuse()
		logger.Warningf("pool %q: rejected retire of chunk %d: not allocated", p.name, i)
		return errors.Annotatef(ErrDoubleFree, "pool %q: chunk %d", p.name, i)
	}
	return nil
}

// Owns reports whether chunk is currently handed out by this pool, retired
// or not.
func (p *MemoryPool[T]) Owns(chunk *T) bool {
	i, ok := p.region.Index(chunk)
	return ok && (p.list.Held(i) || p.list.Retired(i))
}

// ForEachHeld calls fn for every chunk that is handed out and not retired,
// in ascending address order, until fn returns false.
func (p *MemoryPool[T]) ForEachHeld(fn func(chunk *T) bool) {
	for i := range p.region.Len() {
		if p.list.Held(i) && !fn(p.region.Slot(i)) {
			return
		}
	}
}

// Check verifies the free list. It returns an error if the chain of free
// chunks is broken.
func (p *MemoryPool[T]) Check() error {
	return errors.Annotatef(p.list.Walk(nil), "pool %q", p.name)
}

// Close releases the pool's storage. It fails with ErrInUse while chunks
// are handed out. Closing a closed pool is a no-op.
func (p *MemoryPool[T]) Close() error {
	if p.closed {
		return nil
	}
	if inUse := p.list.Cap() - p.list.Len(); inUse > 0 {
		return errors.Annotatef(ErrInUse, "pool %q: %d of %d chunks", p.name, inUse, p.list.Cap())
	}
	p.closed = true
	return errors.Annotatef(p.region.Release(), "pool %q", p.name)
}

func (p *MemoryPool[T]) index(chunk *T, op string) (int, error) {
	i, ok := p.region.Index(chunk)
	if !ok {
		p.metrics.IncrementMisuse()
		logger.Warningf("pool %q: rejected %s of foreign chunk %p", p.name, op, chunk)
		return 0, errors.Annotatef(ErrForeignChunk, "pool %q: %p", p.name, chunk)
	}
	return i, nil
}
