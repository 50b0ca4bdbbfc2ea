package region

import (
	"fmt"
	"unsafe"

	"github.com/vkngwrapper/linmem/pointer"
)

// NewObject allocates a zeroed T in the region. T must not contain Go pointers, since the
// garbage collector does not scan region memory. Zero-sized types return pointer.DanglingPtr.
func NewObject[T any](r *Region) (pointer.Ptr[T], error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return pointer.DanglingPtr[T](), nil
	}

	raw, err := r.alloc(size, uint(unsafe.Alignof(zero)), fmt.Sprintf("%T", zero))
	if err != nil {
		return pointer.NullPtr[T](), err
	}

	ptr := pointer.Downcast[T](raw)
	ptr.Store(zero)
	return ptr, nil
}

// FreeObject returns an object allocated by NewObject to the region
func FreeObject[T any](r *Region, p pointer.Ptr[T]) error {
	return r.Free(p.Upcast())
}
