package pointer

import "fmt"

// Pointer is the capability allocator code is written against. T is the pointee type and P is the
// implementing pointer type itself, so that constructors and comparisons stay statically typed.
//
// Pointer is only meant to be used as a type constraint. Allocator code is instantiated against
// exactly one implementation for the target, which keeps every pointer operation down to its bit
// manipulation with no interface dispatch:
//
//	func push[P pointer.Pointer[node, P]](head P, n P) { ... }
//
// Constructors that take no pointer (Null, Dangling, ConstInit) ignore their receiver; call them on
// a zero value.
type Pointer[T any, P any] interface {
	comparable
	ConstInit[P]
	fmt.Stringer

	// Equal returns true if both pointers have exactly the same bits
	Equal(other P) bool
	// Compare orders pointers by their bits, returning -1, 0 or 1
	Compare(other P) int
	// Hash returns a hash of the pointer's bits
	Hash() uint64

	// Load reads the pointee. The pointer must be a valid, aligned KindNative pointer to a T.
	Load() T
	// Store writes the pointee. The pointer must be a valid, aligned KindNative pointer to a T.
	Store(value T)

	// Null returns the all-zero pointer
	Null() P
	// Dangling returns the reserved non-null, non-dereferenceable sentinel
	Dangling() P
	// IsNull returns true for the all-zero pointer
	IsNull() bool

	// AsPtr decodes the pointer into a Go pointer
	AsPtr() *T
	// AsMutPtr decodes the pointer into a Go pointer the caller intends to write through
	AsMutPtr() *T
	// Upcast returns the untyped representation of the pointer
	Upcast() RawPtr
}

func implementsPointer[T any, P Pointer[T, P]]() {}

var (
	_ = implementsPointer[byte, RawPtr]
	_ = implementsPointer[uint64, Ptr[uint64]]
)
