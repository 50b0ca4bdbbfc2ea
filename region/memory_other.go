//go:build !(darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd)

package region

// Without mmap the region falls back to a byte slice from the Go heap, which the collector
// never moves.
func mapLinearMemory(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapLinearMemory(memory []byte) error {
	return nil
}
