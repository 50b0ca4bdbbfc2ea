package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// IsPow2 returns true if number is a nonzero power of two
func IsPow2[T constraints.Integer](number T) bool {
	return number > 0 && number&(number-1) == 0
}

// CheckPow2 returns an error wrapping ErrPowerOfTwo if number is not a nonzero power of two. name is
// used to identify the offending value in the error message.
func CheckPow2[T constraints.Integer](number T, name string) error {
	if !IsPow2(number) {
		return cerrors.Wrapf(ErrPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two
func AlignUp[T constraints.Integer](value T, alignment uint) T {
	DebugCheckPow2(alignment, "alignment")
	return (value + T(alignment) - 1) & ^(T(alignment) - 1)
}

// AlignDown rounds value down to the previous multiple of alignment, which must be a power of two
func AlignDown[T constraints.Integer](value T, alignment uint) T {
	DebugCheckPow2(alignment, "alignment")
	return value & ^(T(alignment) - 1)
}
