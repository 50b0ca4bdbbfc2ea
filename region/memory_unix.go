//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package region

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// mapLinearMemory reserves size bytes of private, zeroed, page-aligned memory outside the Go heap
func mapLinearMemory(size int) ([]byte, error) {
	memory, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map %d bytes of linear memory", size)
	}
	return memory, nil
}

func unmapLinearMemory(memory []byte) error {
	return errors.Wrap(unix.Munmap(memory), "failed to unmap linear memory")
}
