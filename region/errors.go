package region

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory is returned when no free span in the region can hold the requested allocation
	ErrOutOfMemory = errors.New("region is out of memory")
	// ErrInvalidPointer is returned when a pointer passed to Free, Realloc or Resolve was not
	// allocated by the region, or has already been freed
	ErrInvalidPointer = errors.New("pointer was not allocated by this region")
	// ErrRegionDestroyed is returned by every operation on a region after Destroy succeeds
	ErrRegionDestroyed = errors.New("region has been destroyed")
	// ErrCorruptionDetectionDisabled is returned from CheckCorruption unless the debug_linmem
	// build tag is present
	ErrCorruptionDetectionDisabled = errors.New("corruption detection requires the debug_linmem build tag")
)
