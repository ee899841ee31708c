// Package freelist implements an index-based intrusive free list over a
// fixed number of chunks.
//
// Every chunk owns one link word. While a chunk is free the word holds the
// index of the next free chunk; while it is occupied the word holds a tag
// (held or retired) instead. Allocation and release are O(1) and never
// allocate. The list performs no synchronisation.
package freelist

import (
	"math"

	"github.com/juju/errors"
)

const (
	// end terminates the chain of free chunks.
	end = math.MaxUint32
	// held tags a chunk that was handed out by TryAllocate.
	held = math.MaxUint32 - 1
	// retired tags a held chunk that is on its way back to the list.
	retired = math.MaxUint32 - 2

	// MaxLen is the largest number of chunks a List can manage.
	MaxLen = math.MaxUint32 - 3
)

const (
	// ErrOutOfRange indicates a chunk index outside the list.
	ErrOutOfRange = errors.ConstError("freelist: chunk index out of range")

	// ErrNotHeld indicates an operation on a chunk that is not occupied,
	// e.g. freeing a chunk twice.
	ErrNotHeld = errors.ConstError("freelist: chunk is not held")

	// ErrCorrupt indicates that the chain of free chunks is broken.
	ErrCorrupt = errors.ConstError("freelist: corrupt chain")
)

// List is a free list over n chunks numbered 0..n-1.
type List struct {
	next  []uint32
	first uint32
	avail int
}

// New creates a list over n chunks. All chunks start out free and are threaded
// in ascending order, so the first allocation returns chunk 0.
func New(n int) (*List, error) {
	if n <= 0 || uint64(n) > MaxLen {
		return nil, errors.NotValidf("free list length %d", n)
	}
	l := &List{
		next:  make([]uint32, n),
		first: 0,
		avail: n,
	}
	for i := range n - 1 {
		l.next[i] = uint32(i + 1)
	}
	l.next[n-1] = end
	return l, nil
}

// Cap returns the number of chunks managed by the list.
func (l *List) Cap() int { return len(l.next) }

// Len returns the number of free chunks.
func (l *List) Len() int { return l.avail }

// Empty reports whether no chunk can be allocated.
func (l *List) Empty() bool { return l.first == end }

// TryAllocate removes the first free chunk from the list and returns its
// index. It returns false if the list is empty.
func (l *List) TryAllocate() (int, bool) {
	if l.first == end {
		return 0, false
	}
	i := l.first
	l.first = l.next[i]
	l.next[i] = held
	l.avail--
	return int(i), true
}

// Free pushes chunk i back as the new head of the list. The chunk must be
// held or retired.
func (l *List) Free(i int) error {
	if i < 0 || i >= len(l.next) {
		return errors.Annotatef(ErrOutOfRange, "chunk %d", i)
	}
	if tag := l.next[i]; tag != held && tag != retired {
		return errors.Annotatef(ErrNotHeld, "chunk %d", i)
	}
	l.next[i] = l.first
	l.first = uint32(i)
	l.avail++
	return nil
}

// Retire marks held chunk i as retired. A retired chunk can only be freed;
// retiring it again fails.
func (l *List) Retire(i int) error {
	if i < 0 || i >= len(l.next) {
		return errors.Annotatef(ErrOutOfRange, "chunk %d", i)
	}
	if l.next[i] != held {
		return errors.Annotatef(ErrNotHeld, "chunk %d", i)
	}
	l.next[i] = retired
	return nil
}

// Held reports whether chunk i is handed out and not retired.
func (l *List) Held(i int) bool {
	return i >= 0 && i < len(l.next) && l.next[i] == held
}

// Retired reports whether chunk i is retired.
func (l *List) Retired(i int) bool {
	return i >= 0 && i < len(l.next) && l.next[i] == retired
}

// Walk calls fn for every free chunk in list order until fn returns false.
// It returns ErrCorrupt if the chain contains a cycle, links to an occupied
// or out-of-range chunk, or disagrees with Len.
func (l *List) Walk(fn func(i int) bool) error {
	visited := 0
	for i := l.first; i != end; i = l.next[i] {
		if int(i) >= len(l.next) {
			return errors.Annotatef(ErrCorrupt, "link to chunk %d", i)
		}
		if visited == len(l.next) {
			return errors.Annotatef(ErrCorrupt, "cycle after %d chunks", visited)
		}
		visited++
		if fn != nil && !fn(int(i)) {
			return nil
		}
	}
	if visited != l.avail {
		return errors.Annotatef(ErrCorrupt, "visited %d free chunks, expected %d", visited, l.avail)
	}
	return nil
}
