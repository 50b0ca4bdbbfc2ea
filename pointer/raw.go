package pointer

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/maphash"
)

// RawPtr is an untyped tagged pointer: a single Word holding a kind tag, a reserved region handle,
// and an address or region-relative offset. See the layout constants for the exact bit positions.
//
// RawPtr is plain data. It does not own the memory it may reference and it is not tracked by the Go
// garbage collector, so it must only ever address memory whose lifetime is managed elsewhere.
type RawPtr Word

const (
	// NullRaw is the all-zero word
	NullRaw RawPtr = 0
	// DanglingRaw is the all-ones word, the reserved non-null, non-dereferenceable sentinel
	DanglingRaw RawPtr = RawPtr(^Word(0))
)

var wordHasher = maphash.NewHasher[RawPtr]()

// New tags a process address as KindNative. Addresses on this target never use the tag bits, so
// the address is stored verbatim.
// As with Of, p must not point into a goroutine stack.
func New(p unsafe.Pointer) RawPtr {
	return RawPtr(uintptr(p))
}

// FromAddr tags a numeric process address as KindNative
func FromAddr(addr uintptr) RawPtr {
	return RawPtr(addr)
}

// Compose builds a pointer from its kind, region handle, and region offset.
func Compose(kind Kind, handle uint16, offset uint32) RawPtr {
	return RawPtr(Word(kind)&KindMask | Word(handle)<<HandleShift&HandleMask | Word(offset)<<OffsetShift&OffsetMask)
}

// Null returns the all-zero pointer
func Null() RawPtr { return NullRaw }

// NullMut returns the all-zero pointer. It is identical to Null.
func NullMut() RawPtr { return NullRaw }

// Dangling returns the all-ones pointer, which is never equal to Null
func Dangling() RawPtr { return DanglingRaw }

func (p RawPtr) ConstInit() RawPtr { return NullRaw }
func (p RawPtr) Null() RawPtr      { return NullRaw }
func (p RawPtr) Dangling() RawPtr  { return DanglingRaw }

// IsNull compares the whole word against zero; it does not consult the kind
func (p RawPtr) IsNull() bool {
	return p == NullRaw
}

// Kind extracts the kind tag. It never fails: tag values that match no known kind are returned as-is
// and will be rejected by any operation that needs to interpret them.
func (p RawPtr) Kind() Kind {
	return Kind(Word(p) & KindMask)
}

// Word returns the raw bits of the pointer
func (p RawPtr) Word() Word {
	return Word(p)
}

// Data returns every bit below the kind tag
func (p RawPtr) Data() Word {
	return Word(p) & ValueMask
}

// HandleOffset splits the value bits into the reserved region handle and the region-relative offset.
// The result is only meaningful for kinds that use segmented addressing.
func (p RawPtr) HandleOffset() (handle uint16, offset uint32) {
	handle = uint16((Word(p) & HandleMask) >> HandleShift)
	offset = uint32((Word(p) & OffsetMask) >> OffsetShift)
	return handle, offset
}

// Uintptr decodes the pointer into a process address. It panics for any kind other than KindNative.
func (p RawPtr) Uintptr() uintptr {
	switch kind := p.Kind(); kind {
	case KindNative:
		return uintptr(p)
	case KindUnknown:
		panic(errors.AssertionFailedf("pointer.RawPtr.Uintptr: bad or unimplemented pointer kind %s", kind))
	default:
		panic(errors.AssertionFailedf("pointer.RawPtr.Uintptr: pointer %s cannot be decoded to an address", p))
	}
}

// Unsafe decodes the pointer into a system pointer. It panics for any kind other than KindNative.
func (p RawPtr) Unsafe() unsafe.Pointer {
	word := p.Uintptr()
	return *(*unsafe.Pointer)(unsafe.Pointer(&word))
}

// AsPtr decodes the pointer into a byte pointer. It panics for any kind other than KindNative.
func (p RawPtr) AsPtr() *byte {
	return (*byte)(p.Unsafe())
}

// AsMutPtr is AsPtr for call sites that intend to write through the result
func (p RawPtr) AsMutPtr() *byte {
	return p.AsPtr()
}

// AsNonNull is AsPtr for pointers the caller knows are not null. It panics on null.
func (p RawPtr) AsNonNull() *byte {
	if p.IsNull() {
		panic(errors.AssertionFailedf("pointer.RawPtr.AsNonNull: pointer is null"))
	}
	return p.AsPtr()
}

// Load reads the byte the pointer addresses
func (p RawPtr) Load() byte {
	return *p.AsPtr()
}

// Store writes a byte to the address the pointer holds
func (p RawPtr) Store(value byte) {
	*p.AsPtr() = value
}

// Offset moves a KindNative pointer by n bytes. The caller is responsible for the resulting address
// being valid; builds with the debug_linmem tag verify it is still a KindNative address.
//
// Offset panics for any other kind, since arithmetic on their value bits could corrupt the tag.
func (p RawPtr) Offset(n int) RawPtr {
	switch kind := p.Kind(); kind {
	case KindNative:
		result := RawPtr(Word(p) + Word(n))
		debugCheckOffset(p, n, result)
		return result
	default:
		panic(errors.AssertionFailedf("pointer.RawPtr.Offset: bad or unimplemented pointer kind %s", kind))
	}
}

// CheckedAdd adds n bytes to a KindNative pointer. It returns false if the sum overflows the word
// or carries into the tag bits. The second condition is stricter than a plain checked add: a sum
// that reaches the tag bits would no longer decode as KindNative, so it is reported as a failure
// rather than returned as a pointer of another kind. It panics for any other kind.
func (p RawPtr) CheckedAdd(n uintptr) (RawPtr, bool) {
	switch kind := p.Kind(); kind {
	case KindNative:
		sum, carry := bits.Add64(uint64(p), uint64(n), 0)
		if carry != 0 || Word(sum)&KindMask != 0 {
			return NullRaw, false
		}
		return RawPtr(sum), true
	default:
		panic(errors.AssertionFailedf("pointer.RawPtr.CheckedAdd: bad or unimplemented pointer kind %s", kind))
	}
}

// Upcast returns the pointer itself; it exists so RawPtr satisfies Pointer
func (p RawPtr) Upcast() RawPtr {
	return p
}

func (p RawPtr) Equal(other RawPtr) bool {
	return p == other
}

// Compare orders pointers by their raw bits. It returns -1, 0 or 1.
func (p RawPtr) Compare(other RawPtr) int {
	switch {
	case p < other:
		return -1
	case p > other:
		return 1
	default:
		return 0
	}
}

// Hash hashes the raw bits of the pointer. Hashes are stable for the life of the process only.
func (p RawPtr) Hash() uint64 {
	return wordHasher.Hash(p)
}

func (p RawPtr) String() string {
	switch kind := p.Kind(); kind {
	case KindDangling:
		return "Ptr(Dangling)"
	case KindNative:
		return fmt.Sprintf("Ptr(Native, %#x)", Word(p))
	case KindUnknown:
		return fmt.Sprintf("Ptr(Unknown, %#x)", Word(p))
	default:
		return fmt.Sprintf("Ptr(kind=%#x, %#x)", Word(kind), Word(p))
	}
}
