// Package objpool constructs and destroys typed objects in place inside the
// chunks of a fixed-capacity memory pool.
//
// Construction is transactional. A chunk is taken from the pool, zeroed and
// handed to the constructor; if the constructor returns an error or panics,
// the chunk is zeroed again and given back before the failure reaches the
// caller, so a failed construction never leaks a chunk.
//
// Destruction runs the object's Destroy method, if it has one, exactly once.
// The chunk is retired first, which makes a second Destroy of the same
// object fail instead of running the destructor twice.
package objpool

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/ombre5733/weos-sub002/pool/mempool"
)

var logger = loggo.GetLogger("weos.pool.objpool")

// Constructor initialises a zeroed object in place. A nil Constructor
// leaves the zero value.
type Constructor[T any] func(obj *T) error

// Destroyer is implemented by objects that need teardown before their
// storage is reused.
type Destroyer interface {
	Destroy()
}

// ObjectPool is a single-threaded pool of objects of type T.
type ObjectPool[T any] struct {
	pool *mempool.MemoryPool[T]
}

// New creates an object pool with room for capacity objects. Options may
// be nil.
func New[T any](capacity int, opts *mempool.Options) (*ObjectPool[T], error) {
	pool, err := mempool.New[T](capacity, opts)
	if err != nil {
		return nil, err
	}
	return &ObjectPool[T]{pool: pool}, nil
}

// Capacity returns the number of objects the pool can hold.
func (p *ObjectPool[T]) Capacity() int { return p.pool.Capacity() }

// Empty reports whether no further object can be constructed.
func (p *ObjectPool[T]) Empty() bool { return p.pool.Empty() }

// Size returns the number of objects that can still be constructed.
func (p *ObjectPool[T]) Size() int { return p.pool.Size() }

// Owns reports whether obj is a live object of this pool.
func (p *ObjectPool[T]) Owns(obj *T) bool { return p.pool.Owns(obj) }

// TryConstruct constructs an object with ctor. It returns (nil, nil) if the
// pool is exhausted and the constructor's error if construction fails. A
// panicking constructor propagates its panic. On every failure the pool is
// left as it was.
func (p *ObjectPool[T]) TryConstruct(ctor Constructor[T]) (*T, error) {
	chunk := p.pool.TryAllocate()
	if chunk == nil {
		return nil, nil
	}
	return construct(p.pool.Name(), chunk, ctor, p.pool.Free)
}

// Destroy runs obj's destructor and returns its storage to the pool. It
// fails with mempool.ErrForeignChunk for objects of other pools and with
// mempool.ErrDoubleFree for objects that are already destroyed; in both
// cases no destructor runs.
func (p *ObjectPool[T]) Destroy(obj *T) error {
	return destroy(obj, p.pool.Retire, p.pool.Free)
}

// Close destroys every live object and releases the pool's storage.
func (p *ObjectPool[T]) Close() error {
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

// construct runs ctor on chunk and commits the result. Any failure, panics
// included, zeroes the chunk and hands it to release.
func construct[T any](name string, chunk *T, ctor Constructor[T], release func(*T) error) (*T, error) {
	var zero T
	*chunk = zero

	committed := false
	defer func() {
		if committed {
			return
		}
		*chunk = zero
		if err := release(chunk); err != nil {
			logger.Errorf("pool %q: returning chunk after failed construction: %v", name, err)
			return
		}
		logger.Debugf("pool %q: construction rolled back", name)
	}()

	if ctor != nil {
		if err := ctor(chunk); err != nil {
			return nil, errors.Annotatef(err, "pool %q: constructing %T", name, zero)
		}
	}
	committed = true
	return chunk, nil
}

// destroy retires obj, runs its destructor and releases the zeroed chunk.
// The chunk is released even if the destructor panics.
func destroy[T any](obj *T, retire, release func(*T) error) (err error) {
	if err := retire(obj); err != nil {
		return err
	}
	defer func() {
		var zero T
		*obj = zero
		if ferr := release(obj); ferr != nil && err == nil {
			err = ferr
		}
	}()
	if d, ok := any(obj).(Destroyer); ok {
		d.Destroy()
	}
	return nil
}

func destroyAll[T any](name string, live []*T, destroy func(*T) error) error {
	if len(live) > 0 {
		logger.Debugf("pool %q: destroying %d live objects on close", name, len(live))
	}
	for _, obj := range live {
		if err := destroy(obj); err != nil {
			return errors.Annotatef(err, "pool %q: close", name)
		}
	}
	return nil
}
