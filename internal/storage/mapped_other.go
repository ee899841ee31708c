//go:build !unix

package storage

import (
	"runtime"

	"github.com/juju/errors"
)

// mapAnon is unavailable without mmap; callers fall back to Heap.
func mapAnon(size int) ([]byte, func() error, error) {
	return nil, nil, errors.NotSupportedf("mapped storage on %s", runtime.GOOS)
}
