package pointer

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind identifies how the bits below a pointer's tag should be interpreted. A Kind's value is the
// full word pattern with only the tag bits set, so a pointer's kind can be read with a single mask.
//
// The set of kinds is open-ended: layouts for other targets may claim tag values that are unused
// today. Code that switches on a Kind should always carry a default arm.
type Kind Word

const (
	// KindNative pointers hold a real, dereferenceable process address in their value bits.
	KindNative Kind = 0
	// KindUnknown is a recognized tag whose decode and arithmetic semantics are not implemented yet.
	// Region allocators use it to carry a handle/offset pair that must be resolved before use.
	KindUnknown Kind = Kind(Word(0xfffe) << TagShift)
	// KindDangling is the kind of the all-ones word: a valid, non-null pointer that must never be
	// dereferenced. It is what zero-sized allocations return.
	KindDangling Kind = Kind(Word(0xffff) << TagShift)
)

// Tag returns the kind's tag bits shifted down into a Tag
func (k Kind) Tag() Tag {
	return Tag((Word(k) & KindMask) >> TagShift)
}

// Known returns true if the kind is one of the kinds this layout defines
func (k Kind) Known() bool {
	switch k {
	case KindNative, KindUnknown, KindDangling:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "Native"
	case KindUnknown:
		return "Unknown"
	case KindDangling:
		return "Dangling"
	default:
		return fmt.Sprintf("Kind(%#04x)", k.Tag())
	}
}

// KindFromTag reconstructs a Kind from raw tag bits. Tags that arrive from outside this package
// (deserialized words, foreign memory) may not match any kind, so unlike the rest of this package
// this conversion reports a *BadKindError instead of panicking.
func KindFromTag(tag Tag) (Kind, error) {
	kind := Kind(Word(tag) << TagShift)
	switch kind {
	case KindNative, KindDangling, KindUnknown:
		return kind, nil
	}

	return KindNative, errors.WithStack(&BadKindError{Tag: tag})
}

// BadKindError is returned by KindFromTag when the tag value does not identify any known Kind
type BadKindError struct {
	Tag Tag
}

// Value returns the offending tag in its in-word position
func (e *BadKindError) Value() Word {
	return Word(e.Tag) << TagShift
}

func (e *BadKindError) Error() string {
	return fmt.Sprintf("bad pointer kind: tag %#04x (word pattern %#016x) matches no known kind", e.Tag, e.Value())
}
