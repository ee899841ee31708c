package objpool_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"

	"github.com/ombre5733/weos-sub002/pool/mempool"
	"github.com/ombre5733/weos-sub002/pool/objpool"
)

// tracked counts its destructions in a shared counter.
type tracked struct {
	ID        int
	Payload   [4]uint64
	destroyed *int
}

func (t *tracked) Destroy() {
	if t.destroyed != nil {
		*t.destroyed++
	}
}

func withID(id int, destroyed *int) objpool.Constructor[tracked] {
	return func(obj *tracked) error {
		obj.ID = id
		obj.destroyed = destroyed
		return nil
	}
}

var errBoom = errors.ConstError("boom")

func TestObjectPool_ConstructDestroy(t *testing.T) {
	p, err := objpool.New[tracked](3, nil)
	require.NoError(t, err)
	require.Equal(t, 3, p.Capacity())

	destroyed := 0
	var objs []*tracked
	for i := range 3 {
		obj, err := p.TryConstruct(withID(i, &destroyed))
		require.NoError(t, err)
		require.NotNil(t, obj)
		require.Equal(t, i, obj.ID)
		require.True(t, p.Owns(obj))
		objs = append(objs, obj)
	}
	require.True(t, p.Empty())

	obj, err := p.TryConstruct(withID(99, &destroyed))
	require.NoError(t, err, "exhaustion is not an error")
	require.Nil(t, obj)

	require.NoError(t, p.Destroy(objs[1]))
	require.Equal(t, 1, destroyed)
	require.Equal(t, 1, p.Size())
	require.False(t, p.Owns(objs[1]))

	again, err := p.TryConstruct(nil)
	require.NoError(t, err)
	require.Same(t, objs[1], again)
	require.Equal(t, tracked{}, *again, "nil constructor leaves the zero value")

	for _, o := range []*tracked{objs[0], again, objs[2]} {
		require.NoError(t, p.Destroy(o))
	}
	require.Equal(t, 3, p.Size())
	require.NoError(t, p.Close())
}

func TestObjectPool_ConstructorFailureRollsBack(t *testing.T) {
	p, err := objpool.New[tracked](2, nil)
	require.NoError(t, err)

	obj, err := p.TryConstruct(func(obj *tracked) error {
		obj.ID = 7
		return errBoom
	})
	require.Nil(t, obj)
	require.True(t, errors.Is(err, errBoom), "got %v", err)
	require.Equal(t, 2, p.Size(), "failed construction must not leak a chunk")

	// The rolled back chunk is handed out again, zeroed.
	next, err := p.TryConstruct(nil)
	require.NoError(t, err)
	require.Equal(t, 0, next.ID)
	require.NoError(t, p.Destroy(next))
	require.NoError(t, p.Close())
}

func TestObjectPool_ConstructorPanicRollsBack(t *testing.T) {
	p, err := objpool.New[tracked](1, nil)
	require.NoError(t, err)

	require.PanicsWithValue(t, "ctor", func() {
		_, _ = p.TryConstruct(func(obj *tracked) error {
			obj.ID = 1
			panic("ctor")
		})
	})
	require.Equal(t, 1, p.Size())

	obj, err := p.TryConstruct(nil)
	require.NoError(t, err)
	require.NotNil(t, obj)
	require.Equal(t, 0, obj.ID)
	require.NoError(t, p.Destroy(obj))
	require.NoError(t, p.Close())
}

func TestObjectPool_DestroyMisuse(t *testing.T) {
	p, err := objpool.New[tracked](2, nil)
	require.NoError(t, err)

	destroyed := 0
	obj, err := p.TryConstruct(withID(1, &destroyed))
	require.NoError(t, err)

	require.NoError(t, p.Destroy(obj))
	err = p.Destroy(obj)
	require.True(t, errors.Is(err, mempool.ErrDoubleFree), "got %v", err)
	require.Equal(t, 1, destroyed, "destructor must run exactly once")

	outside := &tracked{destroyed: &destroyed}
	err = p.Destroy(outside)
	require.True(t, errors.Is(err, mempool.ErrForeignChunk), "got %v", err)
	require.Equal(t, 1, destroyed)
	require.Equal(t, 2, p.Size())
	require.NoError(t, p.Close())
}

func TestObjectPool_DestructorPanicStillFrees(t *testing.T) {
	p, err := objpool.New[panicky](1, nil)
	require.NoError(t, err)

	obj, err := p.TryConstruct(nil)
	require.NoError(t, err)
	require.Panics(t, func() { _ = p.Destroy(obj) })
	require.Equal(t, 1, p.Size())
	require.NoError(t, p.Close())
}

type panicky struct{ N int }

func (*panicky) Destroy() { panic("destroy") }

func TestObjectPool_CloseDestroysLiveObjects(t *testing.T) {
	p, err := objpool.New[tracked](4, nil)
	require.NoError(t, err)

	destroyed := 0
	for i := range 3 {
		_, err := p.TryConstruct(withID(i, &destroyed))
		require.NoError(t, err)
	}
	require.NoError(t, p.Close())
	require.Equal(t, 3, destroyed)
}

func TestObjectPool_PlainValues(t *testing.T) {
	p, err := objpool.New[float64](10, nil)
	require.NoError(t, err)

	var objs []*float64
	for i := range 10 {
		obj, err := p.TryConstruct(func(v *float64) error {
			*v = float64(i) * 1.5
			return nil
		})
		require.NoError(t, err)
		objs = append(objs, obj)
	}
	for i, obj := range objs {
		require.InDelta(t, float64(i)*1.5, *obj, 1e-9)
	}
	require.NoError(t, p.Close(), "close destroys the values left in the pool")
}

func TestObjectPool_New_Rejects(t *testing.T) {
	_, err := objpool.New[struct{}](2, nil)
	require.True(t, errors.Is(err, mempool.ErrZeroSizeElement))

	_, err = objpool.NewShared[uint8](0, nil)
	require.True(t, errors.Is(err, errors.NotValid))
}
