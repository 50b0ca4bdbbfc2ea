package pointer

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Ptr is a RawPtr that is known to point at a T. The type parameter exists only at compile time:
// a Ptr has exactly the size and bits of the RawPtr it wraps, and all comparisons and hashing are
// done on those bits.
//
// Ptr does not own its pointee. Whoever allocated the memory is responsible for it outliving every
// Ptr that refers to it.
type Ptr[T any] struct {
	_   [0]*T
	raw RawPtr
}

// Of converts a Go pointer into a Ptr. The pointee must not live on a goroutine stack: stacks are
// copied when they grow, and the Ptr keeps the old address. Only heap, global, or region memory is
// safe, and the caller must keep heap pointees reachable some other way.
func Of[T any](p *T) Ptr[T] {
	return Ptr[T]{raw: New(unsafe.Pointer(p))}
}

// FromUnsafe converts a system pointer into a Ptr. The caller asserts that p addresses a T in
// memory the Go runtime will not move, which excludes goroutine stacks.
func FromUnsafe[T any](p unsafe.Pointer) Ptr[T] {
	return Ptr[T]{raw: New(p)}
}

// Downcast declares that raw points at a T. Nothing about the pointee is checked.
func Downcast[T any](raw RawPtr) Ptr[T] {
	return Ptr[T]{raw: raw}
}

// NullPtr returns the all-zero Ptr, which is also Ptr's zero value
func NullPtr[T any]() Ptr[T] {
	return Ptr[T]{}
}

// DanglingPtr returns a Ptr holding the all-ones sentinel. It is never equal to NullPtr.
func DanglingPtr[T any]() Ptr[T] {
	return Ptr[T]{raw: DanglingRaw}
}

func (p Ptr[T]) ConstInit() Ptr[T] { return Ptr[T]{} }
func (p Ptr[T]) Null() Ptr[T]      { return Ptr[T]{} }
func (p Ptr[T]) Dangling() Ptr[T]  { return DanglingPtr[T]() }

func (p Ptr[T]) IsNull() bool {
	return p.raw.IsNull()
}

// Kind returns the kind of the underlying RawPtr
func (p Ptr[T]) Kind() Kind {
	return p.raw.Kind()
}

// AsPtr decodes the pointer. It panics if the pointer is not KindNative.
func (p Ptr[T]) AsPtr() *T {
	return (*T)(p.raw.Unsafe())
}

// AsMutPtr is AsPtr for call sites that intend to write through the result
func (p Ptr[T]) AsMutPtr() *T {
	return (*T)(p.raw.Unsafe())
}

// Load reads the pointee. The address must hold a valid, correctly aligned T.
func (p Ptr[T]) Load() T {
	return *p.AsPtr()
}

// Store overwrites the pointee. The address must hold a valid, correctly aligned T.
func (p Ptr[T]) Store(value T) {
	*p.AsMutPtr() = value
}

// Upcast discards the type and returns the underlying RawPtr
func (p Ptr[T]) Upcast() RawPtr {
	return p.raw
}

func (p Ptr[T]) Equal(other Ptr[T]) bool {
	return p.raw == other.raw
}

func (p Ptr[T]) Compare(other Ptr[T]) int {
	return p.raw.Compare(other.raw)
}

func (p Ptr[T]) Hash() uint64 {
	return p.raw.Hash()
}

func (p Ptr[T]) String() string {
	return fmt.Sprintf("Ptr[%s]%s", reflect.TypeOf((*T)(nil)).Elem(), p.raw.String()[len("Ptr"):])
}
