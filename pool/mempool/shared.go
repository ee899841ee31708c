package mempool

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/ombre5733/weos-sub002/internal/sema"
)

// SharedMemoryPool is a MemoryPool that is safe for concurrent use and can
// block until a chunk becomes free.
//
// A counting semaphore tracks the number of free chunks. Every successful
// allocation waits on it exactly once and every successful Free posts it
// exactly once, after the chunk has been linked back. A mutex guards the
// free list itself.
type SharedMemoryPool[T any] struct {
	mu      sync.Mutex
	pool    *MemoryPool[T]
	sem     *sema.Counting
	clock   clock.Clock
	metrics MetricsProvider
}

// NewShared creates a shared pool of capacity chunks. Options may be nil.
func NewShared[T any](capacity int, opts *Options) (*SharedMemoryPool[T], error) {
	o, err := opts.resolve()
	if err != nil {
		return nil, errors.Annotate(err, "shared memory pool options")
	}
	pool, err := New[T](capacity, &o)
	if err != nil {
		return nil, err
	}
	sem, err := sema.NewCounting(int64(capacity), o.Clock)
	if err != nil {
		_ = pool.Close()
		return nil, errors.Annotatef(err, "pool %q", o.Name)
	}
	return &SharedMemoryPool[T]{
		pool:    pool,
		sem:     sem,
		clock:   o.Clock,
		metrics: o.Metrics,
	}, nil
}

// Name returns the name the pool was configured with.
func (p *SharedMemoryPool[T]) Name() string { return p.pool.Name() }

// Capacity returns the total number of chunks.
func (p *SharedMemoryPool[T]) Capacity() int { return p.pool.Capacity() }

// Size returns the number of free chunks. The value may be stale by the
// time the caller looks at it.
func (p *SharedMemoryPool[T]) Size() int { return int(p.sem.Value()) }

// Empty reports whether every chunk is handed out.
func (p *SharedMemoryPool[T]) Empty() bool { return p.Size() == 0 }

// Storage returns the chunk backing of the pool.
func (p *SharedMemoryPool[T]) Storage() Storage { return p.pool.Storage() }

// Allocate blocks until a chunk is free and returns it. It never returns
// nil.
func (p *SharedMemoryPool[T]) Allocate() *T {
	start := p.clock.Now()
	p.sem.Wait()
	p.metrics.ObserveWaitDuration(p.clock.Now().Sub(start))
	return p.take()
}

// AllocateContext is Allocate with cancellation. If ctx is done before a
// chunk becomes free, it returns the context's error and the pool is
// unchanged.
func (p *SharedMemoryPool[T]) AllocateContext(ctx context.Context) (*T, error) {
	start := p.clock.Now()
	if err := p.sem.WaitContext(ctx); err != nil {
		p.metrics.IncrementAllocationMisses()
		return nil, errors.Annotatef(err, "pool %q", p.Name())
	}
	p.metrics.ObserveWaitDuration(p.clock.Now().Sub(start))
	return p.take(), nil
}

// TryAllocate returns a free chunk without blocking, or nil if there is none.
func (p *SharedMemoryPool[T]) TryAllocate() *T {
	if !p.sem.TryWait() {
		p.metrics.IncrementAllocationMisses()
		return nil
	}
	return p.take()
}

// TryAllocateFor waits at most d for a free chunk, measured on the pool's
// clock. It returns nil on timeout and leaves the pool unchanged.
func (p *SharedMemoryPool[T]) TryAllocateFor(d time.Duration) *T {
	start := p.clock.Now()
	if !p.sem.TryWaitFor(d) {
		p.metrics.IncrementAllocationMisses()
		logger.Debugf("pool %q: no chunk free after %v", p.Name(), d)
		return nil
	}
	p.metrics.ObserveWaitDuration(p.clock.Now().Sub(start))
	return p.take()
}

// Free returns chunk to the pool and wakes one blocked allocator. Foreign
// chunks and double frees are rejected as by MemoryPool.Free; a rejected
// Free does not post the semaphore.
func (p *SharedMemoryPool[T]) Free(chunk *T) error {
	p.mu.Lock()
	err := p.pool.Free(chunk)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.sem.Post()
	return nil
}

// Retire marks a held chunk as being torn down; see MemoryPool.Retire.
func (p *SharedMemoryPool[T]) Retire(chunk *T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Retire(chunk)
}

// Owns reports whether chunk is currently handed out by this pool.
func (p *SharedMemoryPool[T]) Owns(chunk *T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Owns(chunk)
}

// ForEachHeld calls fn for every held chunk in ascending address order. The
// pool is locked while fn runs, so fn must not call back into it.
func (p *SharedMemoryPool[T]) ForEachHeld(fn func(chunk *T) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.ForEachHeld(fn)
}

// Check verifies the free list and that the semaphore agrees with it. Call
// it only while no allocation or Free is in flight.
func (p *SharedMemoryPool[T]) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pool.Check(); err != nil {
		return err
	}
	if free, value := p.pool.Size(), p.Size(); free != value {
		return errors.Errorf("pool %q: %d free chunks but semaphore at %d", p.Name(), free, value)
	}
	return nil
}

// Close releases the pool's storage. It fails with ErrInUse while chunks are
// handed out. The pool must not be used after a successful Close.
func (p *SharedMemoryPool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Close()
}

// take pops a chunk after the caller has won a semaphore unit.
func (p *SharedMemoryPool[T]) take() *T {
	p.mu.Lock()
	chunk := p.pool.TryAllocate()
	p.mu.Unlock()
	if chunk == nil {
		panic(errors.Errorf("pool %q: semaphore granted a chunk but the free list is empty", p.Name()))
	}
	return chunk
}
