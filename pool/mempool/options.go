package mempool

import (
	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/ombre5733/weos-sub002/internal/storage"
)

// Storage selects where a pool keeps its chunks.
type Storage = storage.Kind

const (
	// StorageHeap keeps chunks in a Go slice.
	StorageHeap = storage.Heap
	// StorageMapped keeps chunks in an anonymous memory mapping. Only
	// element types without pointers are accepted.
	StorageMapped = storage.Mapped
)

// ParseStorage converts "heap" or "mapped" into a Storage.
func ParseStorage(s string) (Storage, error) {
	return storage.ParseKind(s)
}

// Options configures a pool. A nil *Options means DefaultOptions.
type Options struct {
	// Name identifies the pool in log messages.
	Name string

	// Storage selects the chunk backing.
	Storage Storage

	// Clock measures timed waits of shared pools.
	Clock clock.Clock

	// Metrics receives allocation statistics.
	Metrics MetricsProvider
}

// DefaultOptions returns heap storage, the wall clock and no metrics.
func DefaultOptions() *Options {
	return &Options{
		Name:    "pool",
		Storage: StorageHeap,
		Clock:   clock.WallClock,
		Metrics: NewNoopMetricsProvider(),
	}
}

// Validate checks the options. Unset fields are valid and take their
// defaults.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	if err := o.Storage.Validate(); err != nil {
		return errors.Trace(err)
	}
	return nil
}

// resolve returns a copy of o with every unset field defaulted.
func (o *Options) resolve() (Options, error) {
	def := DefaultOptions()
	if o == nil {
		return *def, nil
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	out := *o
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.Clock == nil {
		out.Clock = def.Clock
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	return out, nil
}
