package objpool

import (
	"context"
	"time"

	"github.com/ombre5733/weos-sub002/pool/mempool"
)

// SharedObjectPool is an ObjectPool that is safe for concurrent use and can
// block until room for an object becomes available. Constructors and
// destructors run without any pool lock held.
type SharedObjectPool[T any] struct {
	pool *mempool.SharedMemoryPool[T]
}

// NewShared creates a shared object pool with room for capacity objects.
// Options may be nil.
func NewShared[T any](capacity int, opts *mempool.Options) (*SharedObjectPool[T], error) {
	pool, err := mempool.NewShared[T](capacity, opts)
	if err != nil {
		return nil, err
	}
	return &SharedObjectPool[T]{pool: pool}, nil
}

// Capacity returns the number of objects the pool can hold.
func (p *SharedObjectPool[T]) Capacity() int { return p.pool.Capacity() }

// Empty reports whether no further object can be constructed right now.
func (p *SharedObjectPool[T]) Empty() bool { return p.pool.Empty() }

// Size returns the number of objects that can still be constructed.
func (p *SharedObjectPool[T]) Size() int { return p.pool.Size() }

// Owns reports whether obj is a live object of this pool.
func (p *SharedObjectPool[T]) Owns(obj *T) bool { return p.pool.Owns(obj) }

// Construct blocks until there is room, then constructs an object with ctor.
// It returns an error only if the constructor fails.
func (p *SharedObjectPool[T]) Construct(ctor Constructor[T]) (*T, error) {
	return construct(p.pool.Name(), p.pool.Allocate(), ctor, p.pool.Free)
}

// ConstructContext is Construct with cancellation. If ctx is done before
// there is room, it returns the context's error.
func (p *SharedObjectPool[T]) ConstructContext(ctx context.Context, ctor Constructor[T]) (*T, error) {
	chunk, err := p.pool.AllocateContext(ctx)
	if err != nil {
		return nil, err
	}
	return construct(p.pool.Name(), chunk, ctor, p.pool.Free)
}

// TryConstruct is like ObjectPool.TryConstruct: (nil, nil) when there is no
// room.
func (p *SharedObjectPool[T]) TryConstruct(ctor Constructor[T]) (*T, error) {
	chunk := p.pool.TryAllocate()
	if chunk == nil {
		return nil, nil
	}
	return construct(p.pool.Name(), chunk, ctor, p.pool.Free)
}

// TryConstructFor waits at most d for room. It returns (nil, nil) on
// timeout.
func (p *SharedObjectPool[T]) TryConstructFor(d time.Duration, ctor Constructor[T]) (*T, error) {
	chunk := p.pool.TryAllocateFor(d)
	if chunk == nil {
		return nil, nil
	}
	return construct(p.pool.Name(), chunk, ctor, p.pool.Free)
}

// Destroy runs obj's destructor and returns its storage to the pool,
// waking one blocked constructor. See ObjectPool.Destroy for the errors.
func (p *SharedObjectPool[T]) Destroy(obj *T) error {
	return destroy(obj, p.pool.Retire, p.pool.Free)
}

// Check verifies the pool's internal bookkeeping. Call it only while no
// construction or destruction is in flight.
func (p *SharedObjectPool[T]) Check() error { return p.pool.Check() }

// Close destroys every live object and releases the pool's storage. No
// other goroutine may use the pool once Close has been called.
func (p *SharedObjectPool[T]) Close() error {
	var live []*T
	p.pool.ForEachHeld(func(obj *T) bool {
		live = append(live, obj)
		return true
	})
	if err := destroyAll(p.pool.Name(), live, p.Destroy); err != nil {
		return err
	}
	return p.pool.Close()
}
