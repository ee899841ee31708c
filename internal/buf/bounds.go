// Package buf contains overflow-safe size arithmetic for fixed chunk regions.
package buf

import (
	"math"

	"github.com/juju/errors"
)

// MulOverflowSafe multiplies two non-negative ints, returning ok = false
// when the product would overflow int or either operand is negative.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// RegionSize returns count*stride, the byte length of a region holding count
// chunks of stride bytes each.
//
//	size, err := buf.RegionSize(capacity, int(unsafe.Sizeof(zero)))
//	if err != nil {
//	    return nil, errors.Annotate(err, "storage")
//	}
func RegionSize(count, stride int) (int, error) {
	if count <= 0 {
		return 0, errors.NotValidf("chunk count %d", count)
	}
	if stride <= 0 {
		return 0, errors.NotValidf("chunk stride %d", stride)
	}
	size, ok := MulOverflowSafe(count, stride)
	if !ok {
		return 0, errors.Errorf("overflow: count=%d * stride=%d", count, stride)
	}
	return size, nil
}

// AlignUp rounds n up to the next multiple of align. align must be a power
// of two.
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// ChunkIndex maps addr to the index of the chunk starting at addr in a region
// of count chunks of stride bytes beginning at base. It reports false for
// addresses outside the region or not on a chunk boundary.
func ChunkIndex(base, addr, stride uintptr, count int) (int, bool) {
	if stride == 0 || addr < base {
		return 0, false
	}
	off := addr - base
	if off%stride != 0 {
		return 0, false
	}
	i := off / stride
	if i >= uintptr(count) {
		return 0, false
	}
	return int(i), true
}
