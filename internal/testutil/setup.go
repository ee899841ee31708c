// Package testutil sets up pools for tests and tears them down again.
package testutil

import (
	"testing"

	"github.com/ombre5733/weos-sub002/pool/mempool"
)

// SetupPool creates a MemoryPool of capacity chunks and registers a cleanup
// that fails the test if chunks are still held when it ends.
//
// Example:
//
//	p := testutil.SetupPool[uint64](t, 10, nil)
//	chunk := p.TryAllocate()
func SetupPool[T any](t testing.TB, capacity int, opts *mempool.Options) *mempool.MemoryPool[T] {
	t.Helper()
	p, err := mempool.New[T](capacity, opts)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("Pool not drained at end of test: %v", err)
		}
	})
	return p
}

// SetupSharedPool is SetupPool for a SharedMemoryPool.
func SetupSharedPool[T any](t testing.TB, capacity int, opts *mempool.Options) *mempool.SharedMemoryPool[T] {
	t.Helper()
	p, err := mempool.NewShared[T](capacity, opts)
	if err != nil {
		t.Fatalf("Failed to create shared pool: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Check(); err != nil {
			t.Errorf("Shared pool inconsistent at end of test: %v", err)
		}
		if err := p.Close(); err != nil {
			t.Errorf("Shared pool not drained at end of test: %v", err)
		}
	})
	return p
}
