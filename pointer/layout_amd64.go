//go:build amd64

package pointer

import (
	"math"
	"unsafe"
)

// Word is the machine word every pointer value is stored in.
type Word = uintptr

// Tag is the raw value of the kind bits once they have been shifted down out of a Word.
type Tag = uint16

const (
	// TagShift is the position of the lowest kind tag bit within a Word
	TagShift = 64 - 16
	// KindMask covers the kind tag bits, `0xffff_0000_0000_0000`
	KindMask Word = Word(math.MaxUint16) << TagShift

	// HandleShift is the position of the lowest handle bit within a Word
	HandleShift = 32
	// HandleMask covers the bits reserved for region handles, `0x0000_ffff_0000_0000`
	HandleMask Word = Word(math.MaxUint16) << HandleShift

	// ValueMask covers every bit below the kind tag, `0x0000_ffff_ffff_ffff`. For KindNative pointers
	// these are the address bits.
	ValueMask Word = ^KindMask

	// OffsetShift is the position of the lowest region offset bit within a Word
	OffsetShift = 0
	// OffsetMask covers the region-relative offset bits, `0x0000_0000_ffff_ffff`
	OffsetMask Word = ^(KindMask | HandleMask)
	// OffsetMax is the largest region-relative offset that can be encoded
	OffsetMax = 1<<32 - 1
)

// Layout sanity checks. Each of these fails to compile if the masks above drift out of agreement
// with one another or with the size of Word.
var (
	_ [unsafe.Sizeof(Word(0)) - 8]struct{}
	_ [8 - unsafe.Sizeof(Word(0))]struct{}
	_ [unsafe.Sizeof(unsafe.Pointer(nil)) - unsafe.Sizeof(Word(0))]struct{}

	_ = [1]struct{}{}[KindMask&HandleMask]
	_ = [1]struct{}{}[HandleMask&OffsetMask]
	_ = [1]struct{}{}[KindMask&OffsetMask]
	_ = [1]struct{}{}[(KindMask|HandleMask|OffsetMask)^^Word(0)]
	_ = [1]struct{}{}[OffsetMask^OffsetMax]
)
