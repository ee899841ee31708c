//go:build unix

package mempool_test

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"

	"github.com/ombre5733/weos-sub002/internal/testutil"
	"github.com/ombre5733/weos-sub002/internal/testutil/poolcheck"
	"github.com/ombre5733/weos-sub002/pool/mempool"
)

func TestMappedStorage(t *testing.T) {
	opts := &mempool.Options{Storage: mempool.StorageMapped}
	p := testutil.SetupPool[point](t, 10, opts)
	require.Equal(t, mempool.StorageMapped, p.Storage())

	chunks := poolcheck.Exhaust[point](t, p)
	for i, c := range chunks {
		*c = point{X: float64(i), Tag: uint8(i)}
	}
	for i, c := range chunks {
		require.Equal(t, uint8(i), c.Tag)
	}
	poolcheck.FreeAll[point](t, p, chunks)
	poolcheck.RandomWalk[point](t, p, 10000, 7)
}

func TestMappedStorage_RejectsPointers(t *testing.T) {
	_, err := mempool.New[string](4, &mempool.Options{Storage: mempool.StorageMapped})
	require.True(t, errors.Is(err, errors.NotValid), "got %v", err)
}

func TestSharedMappedStorage(t *testing.T) {
	p := testutil.SetupSharedPool[[16]uint64](t, 8, &mempool.Options{Storage: mempool.StorageMapped})
	chunks := poolcheck.Exhaust[[16]uint64](t, p)
	poolcheck.FreeAll[[16]uint64](t, p, chunks)
}
