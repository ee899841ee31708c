// Package storage provides the contiguous chunk region behind a pool.
//
// A Region holds a fixed number of slots of one element type. Slots are laid
// out back to back, so slot i lives at base + i*sizeof(T) and every slot is
// aligned for T. The region is allocated once and never grows.
//
// Two backings are available: Heap uses an ordinary Go slice, Mapped uses an
// anonymous private mapping outside the Go heap. Mapped regions may only hold
// element types without pointers, since the garbage collector does not scan
// them.
package storage

import (
	"reflect"
	"strings"
	"unsafe"

	"github.com/juju/errors"

	"github.com/ombre5733/weos-sub002/internal/buf"
)

// Kind selects the backing of a Region.
type Kind int

const (
	// Heap backs the region with a Go slice.
	Heap Kind = iota
	// Mapped backs the region with an anonymous memory mapping.
	Mapped
)

func (k Kind) String() string {
	switch k {
	case Heap:
		return "heap"
	case Mapped:
		return "mapped"
	}
	return "unknown"
}

// Validate reports whether k names a known backing.
func (k Kind) Validate() error {
	switch k {
	case Heap, Mapped:
		return nil
	}
	return errors.NotValidf("storage kind %d", int(k))
}

// ParseKind converts "heap" or "mapped" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "heap", "":
		return Heap, nil
	case "mapped", "mmap":
		return Mapped, nil
	}
	return 0, errors.NotValidf("storage kind %q", s)
}

// Region is a fixed array of slots of type T.
type Region[T any] struct {
	slots   []T
	base    uintptr
	stride  uintptr
	kind    Kind
	release func() error
}

// New allocates a region of n slots. The slot contents start out zeroed.
func New[T any](kind Kind, n int) (*Region[T], error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	var zero T
	stride := unsafe.Sizeof(zero)
	if stride == 0 {
		return nil, errors.NotValidf("zero-sized element type %T", zero)
	}
	size, err := buf.RegionSize(n, int(stride))
	if err != nil {
		return nil, errors.Annotatef(err, "storage for %d x %T", n, zero)
	}

	r := &Region[T]{stride: stride, kind: kind}
	switch kind {
	case Heap:
		r.slots = make([]T, n)
		r.release = func() error { return nil }
	case Mapped:
		if typ := reflect.TypeFor[T](); HasPointers(typ) {
			return nil, errors.NotValidf("mapped storage for %s (type contains pointers)", typ)
		}
		data, cleanup, err := mapAnon(size)
		if err != nil {
			return nil, errors.Annotatef(err, "mapping %d bytes", size)
		}
		r.slots = unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), n)
		r.release = cleanup
	}
	r.base = uintptr(unsafe.Pointer(unsafe.SliceData(r.slots)))
	return r, nil
}

// Len returns the number of slots, or 0 after Release.
func (r *Region[T]) Len() int { return len(r.slots) }

// Kind returns the backing of the region.
func (r *Region[T]) Kind() Kind { return r.kind }

// Stride returns the distance in bytes between consecutive slots.
func (r *Region[T]) Stride() uintptr { return r.stride }

// Base returns the address of slot 0.
func (r *Region[T]) Base() uintptr { return r.base }

// Slot returns a pointer to slot i.
func (r *Region[T]) Slot(i int) *T { return &r.slots[i] }

// Index maps p back to its slot number. It reports false for nil, for
// pointers outside the region and for pointers into the middle of a slot.
func (r *Region[T]) Index(p *T) (int, bool) {
	if p == nil || len(r.slots) == 0 {
		return 0, false
	}
	return buf.ChunkIndex(r.base, uintptr(unsafe.Pointer(p)), r.stride, len(r.slots))
}

// Release gives the region's memory back. Slots must not be used afterwards.
// Calling Release more than once is a no-op.
func (r *Region[T]) Release() error {
	if r.slots == nil {
		return nil
	}
	r.slots = nil
	release := r.release
	r.release = nil
	if release == nil {
		return nil
	}
	return release()
}

// HasPointers reports whether values of typ contain pointers the garbage
// collector would need to see.
func HasPointers(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return typ.Len() > 0 && HasPointers(typ.Elem())
	case reflect.Struct:
		for i := range typ.NumField() {
			if HasPointers(typ.Field(i).Type) {
				return true
			}
		}
		return false
	}
	return true
}
