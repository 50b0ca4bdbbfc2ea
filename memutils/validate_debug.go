//go:build debug_linmem

package memutils

import (
	"unsafe"

	"github.com/vkngwrapper/linmem/pointer"
)

const (
	// DebugMargin is the number of bytes of debug data that should be placed after allocations in regions managed
	// by memutils
	DebugMargin int = 16
	// corruptionDetectionMagicValue is a 4-byte pattern that should be copied into debug data placed after
	// allocations in regions managed by memutils
	corruptionDetectionMagicValue uint32 = 0x7F84E666
)

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes at the provided pointer and offset.
// This method no-ops unless the debug_linmem build tag is present.
func WriteMagicValue(base pointer.RawPtr, offset int) {
	dest := base.Offset(offset)
	marginSize := DebugMargin / int(unsafe.Sizeof(uint32(0)))
	for i := 0; i < marginSize; i++ {
		pointer.Downcast[uint32](dest).Store(corruptionDetectionMagicValue)
		dest = dest.Offset(int(unsafe.Sizeof(uint32(0))))
	}
}

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method always returns true unless the debug_linmem build tag is present.
func ValidateMagicValue(base pointer.RawPtr, offset int) bool {
	source := base.Offset(offset)
	marginSize := DebugMargin / int(unsafe.Sizeof(uint32(0)))
	for i := 0; i < marginSize; i++ {
		if pointer.Downcast[uint32](source).Load() != corruptionDetectionMagicValue {
			return false
		}
		source = source.Offset(int(unsafe.Sizeof(uint32(0))))
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_linmem build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_linmem build tag is present.
func DebugCheckPow2(value uint, name string) {
	err := CheckPow2(value, name)
	if err != nil {
		panic(err)
	}
}
