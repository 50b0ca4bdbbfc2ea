//go:build !debug_linmem

package memutils

import "github.com/vkngwrapper/linmem/pointer"

const (
	// DebugMargin is the number of bytes of debug data that should be placed after allocations in regions managed
	// by memutils
	DebugMargin int = 0
)

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method always returns true unless the debug_linmem build tag is present.
func ValidateMagicValue(base pointer.RawPtr, offset int) bool {
	return true
}

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes at the provided pointer and offset.
// This method no-ops unless the debug_linmem build tag is present.
func WriteMagicValue(base pointer.RawPtr, offset int) {
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_linmem build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_linmem build tag is present.
func DebugCheckPow2(value uint, name string) {
}
