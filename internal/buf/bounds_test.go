package buf

import (
	"math"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/require"
)

func TestMulOverflowSafe(t *testing.T) {
	if p, ok := MulOverflowSafe(10, 8); !ok || p != 80 {
		t.Fatalf("MulOverflowSafe(10,8)=%d,%v want 80,true", p, ok)
	}
	if p, ok := MulOverflowSafe(0, math.MaxInt); !ok || p != 0 {
		t.Fatalf("MulOverflowSafe(0,MaxInt)=%d,%v want 0,true", p, ok)
	}
	if _, ok := MulOverflowSafe(math.MaxInt/2+1, 2); ok {
		t.Fatalf("expected overflow for MaxInt/2+1 * 2")
	}
	if _, ok := MulOverflowSafe(-1, 8); ok {
		t.Fatalf("negative operand should be rejected")
	}
}

func TestRegionSize(t *testing.T) {
	size, err := RegionSize(10, 8)
	require.NoError(t, err)
	require.Equal(t, 80, size)

	_, err = RegionSize(0, 8)
	require.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = RegionSize(4, 0)
	require.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = RegionSize(math.MaxInt/4, 8)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflow")
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{4095, 4096, 4096},
		{4097, 4096, 8192},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, AlignUp(tt.n, tt.align), "AlignUp(%d, %d)", tt.n, tt.align)
	}
}

func TestChunkIndex(t *testing.T) {
	const base = uintptr(0x1000)

	i, ok := ChunkIndex(base, base, 8, 10)
	require.True(t, ok)
	require.Equal(t, 0, i)

	i, ok = ChunkIndex(base, base+9*8, 8, 10)
	require.True(t, ok)
	require.Equal(t, 9, i)

	_, ok = ChunkIndex(base, base+10*8, 8, 10)
	require.False(t, ok, "one past the end")

	_, ok = ChunkIndex(base, base+4, 8, 10)
	require.False(t, ok, "not on a chunk boundary")

	_, ok = ChunkIndex(base, base-8, 8, 10)
	require.False(t, ok, "below the region")

	_, ok = ChunkIndex(base, base, 0, 10)
	require.False(t, ok, "zero stride")
}
