//go:build unix

package storage

import (
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// mapAnon maps size bytes of zeroed, private, read-write memory.
func mapAnon(size int) ([]byte, func() error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	cleanup := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return errors.Trace(err)
	}
	return data, cleanup, nil
}
