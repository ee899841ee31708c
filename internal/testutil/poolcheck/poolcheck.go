// Package poolcheck holds invariant checks shared by the pool tests.
package poolcheck

import (
	"math/rand"
	"slices"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// Allocator is the non-blocking surface every pool offers.
type Allocator[T any] interface {
	Capacity() int
	Size() int
	TryAllocate() *T
	Free(chunk *T) error
}

func addr[T any](p *T) uintptr { return uintptr(unsafe.Pointer(p)) }

// RequireDistinct fails unless every chunk is non-nil and no chunk appears
// twice.
//
// Example:
//
//	chunks := poolcheck.Exhaust(t, p)
//	poolcheck.RequireDistinct(t, chunks)
func RequireDistinct[T any](t testing.TB, chunks []*T) {
	t.Helper()
	seen := make(map[*T]int, len(chunks))
	for i, c := range chunks {
		require.NotNil(t, c, "chunk %d is nil", i)
		if j, dup := seen[c]; dup {
			t.Fatalf("chunk %d (%p) was already issued as chunk %d", i, c, j)
		}
		seen[c] = i
	}
}

// RequireAligned fails unless every chunk is aligned for T.
func RequireAligned[T any](t testing.TB, chunks []*T) {
	t.Helper()
	var zero T
	align := unsafe.Alignof(zero)
	for i, c := range chunks {
		require.Zero(t, addr(c)%align, "chunk %d (%p) not aligned to %d", i, c, align)
	}
}

// RequireNonOverlapping fails if any two chunks share a byte.
func RequireNonOverlapping[T any](t testing.TB, chunks []*T) {
	t.Helper()
	var zero T
	size := unsafe.Sizeof(zero)
	addrs := make([]uintptr, len(chunks))
	for i, c := range chunks {
		addrs[i] = addr(c)
	}
	slices.Sort(addrs)
	for i := 1; i < len(addrs); i++ {
		require.GreaterOrEqual(t, addrs[i]-addrs[i-1], size,
			"chunks at %#x and %#x overlap (size %d)", addrs[i-1], addrs[i], size)
	}
}

// RequireConserved fails unless held plus free chunks add up to the
// pool's capacity.
func RequireConserved[T any](t testing.TB, p Allocator[T], held int) {
	t.Helper()
	require.Equal(t, p.Capacity(), held+p.Size(), "held=%d free=%d", held, p.Size())
}

// Exhaust allocates until the pool returns nil and checks that exactly
// Capacity chunks were handed out and that they are distinct, aligned and
// disjoint.
func Exhaust[T any](t testing.TB, p Allocator[T]) []*T {
	t.Helper()
	var chunks []*T
	for {
		c := p.TryAllocate()
		if c == nil {
			break
		}
		chunks = append(chunks, c)
		require.LessOrEqual(t, len(chunks), p.Capacity(), "pool handed out more than its capacity")
		RequireConserved(t, p, len(chunks))
	}
	require.Len(t, chunks, p.Capacity())
	require.Equal(t, 0, p.Size())
	RequireDistinct(t, chunks)
	RequireAligned(t, chunks)
	RequireNonOverlapping(t, chunks)
	return chunks
}

// FreeAll returns every chunk and checks the pool is full afterwards.
func FreeAll[T any](t testing.TB, p Allocator[T], chunks []*T) {
	t.Helper()
	for _, c := range chunks {
		require.NoError(t, p.Free(c))
	}
	require.Equal(t, p.Capacity(), p.Size())
}

// RandomWalk performs steps random allocations and frees against p using a
// fixed seed. A slot is picked at random; if it is empty a chunk is
// allocated into it, which must succeed since fewer than Capacity chunks are
// held, otherwise its chunk is freed. Conservation and distinctness are
// checked after every step, and the walk ends with every chunk freed.
func RandomWalk[T any](t testing.TB, p Allocator[T], steps int, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	slots := make([]*T, p.Capacity())
	owner := make(map[*T]int, p.Capacity())
	held := 0

	for step := range steps {
		i := rng.Intn(len(slots))
		if slots[i] == nil {
			c := p.TryAllocate()
			require.NotNil(t, c, "step %d: allocation failed with %d of %d held", step, held, p.Capacity())
			if j, dup := owner[c]; dup {
				t.Fatalf("step %d: chunk %p issued to slot %d is still held by slot %d", step, c, i, j)
			}
			slots[i] = c
			owner[c] = i
			held++
		} else {
			require.NoError(t, p.Free(slots[i]), "step %d", step)
			delete(owner, slots[i])
			slots[i] = nil
			held--
		}
		RequireConserved(t, p, held)
	}

	for i, c := range slots {
		if c != nil {
			require.NoError(t, p.Free(c), "slot %d", i)
		}
	}
	require.Equal(t, p.Capacity(), p.Size())
}
