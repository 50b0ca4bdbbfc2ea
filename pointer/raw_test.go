package pointer_test

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/linmem/pointer"
)

func requireAssertionPanic(t *testing.T, f func()) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")

		err, isErr := r.(error)
		require.True(t, isErr)
		require.True(t, errors.IsAssertionFailure(err), "unexpected panic: %v", err)
	}()

	f()
}

var roundTripAddresses = []uintptr{
	0,
	1,
	8,
	0x1000,
	0x00007f0000001000,
	0x0000_7fff_ffff_f000,
	0x0000_ffff_ffff_ffff,
}

func TestRawRoundTrip(t *testing.T) {
	for _, addr := range roundTripAddresses {
		p := pointer.FromAddr(addr)
		require.Equal(t, pointer.KindNative, p.Kind())
		require.Equal(t, addr, p.Uintptr())
		require.Equal(t, addr, uintptr(p.Data()))
	}
}

func TestRawConcreteScenario(t *testing.T) {
	p := pointer.FromAddr(0x00007f0000001000)
	require.Equal(t, pointer.KindNative, p.Kind())
	require.Equal(t, uintptr(0x00007f0000001000), p.Uintptr())

	moved := p.Offset(8)
	require.Equal(t, uintptr(0x00007f0000001008), moved.Uintptr())
	require.Equal(t, p, moved.Offset(-8))

	added, ok := p.CheckedAdd(8)
	require.True(t, ok)
	require.Equal(t, moved, added)

	_, ok = p.CheckedAdd(math.MaxUint64)
	require.False(t, ok)
}

func TestRawCheckedAddIntoTagBits(t *testing.T) {
	top := pointer.FromAddr(uintptr(pointer.ValueMask))

	_, ok := top.CheckedAdd(1)
	require.False(t, ok)

	same, ok := top.CheckedAdd(0)
	require.True(t, ok)
	require.Equal(t, top, same)
}

func TestRawNullAndDangling(t *testing.T) {
	require.True(t, pointer.Null().IsNull())
	require.True(t, pointer.NullMut().IsNull())
	require.Equal(t, pointer.Null(), pointer.NullMut())
	require.Equal(t, pointer.RawPtr(0), pointer.Null())

	dangling := pointer.Dangling()
	require.False(t, dangling.IsNull())
	require.NotEqual(t, pointer.Null(), dangling)
	require.Equal(t, pointer.Word(math.MaxUint64), dangling.Word())
	require.Equal(t, pointer.KindDangling, dangling.Kind())

	var zero pointer.RawPtr
	require.Equal(t, pointer.Null(), zero.Null())
	require.Equal(t, pointer.Dangling(), zero.Dangling())
	require.Equal(t, zero, zero.ConstInit())
}

func TestRawIsNullIgnoresKind(t *testing.T) {
	nonNull := []pointer.RawPtr{
		pointer.FromAddr(1),
		pointer.Compose(pointer.KindUnknown, 0, 0),
		pointer.Compose(pointer.KindDangling, 0, 0),
		pointer.Compose(pointer.KindNative, 1, 0),
		pointer.Compose(pointer.Kind(pointer.Word(0x1234)<<pointer.TagShift), 0, 0),
		pointer.Dangling(),
	}

	for _, p := range nonNull {
		require.False(t, p.IsNull(), p.String())
	}

	require.True(t, pointer.Compose(pointer.KindNative, 0, 0).IsNull())
}

func TestRawComposeHandleOffset(t *testing.T) {
	p := pointer.Compose(pointer.KindUnknown, 0xbeef, 0xdeadc0de)
	require.Equal(t, pointer.KindUnknown, p.Kind())
	require.Equal(t, pointer.Word(0xfffe_beef_dead_c0de), p.Word())

	handle, offset := p.HandleOffset()
	require.Equal(t, uint16(0xbeef), handle)
	require.Equal(t, uint32(0xdeadc0de), offset)
	require.Equal(t, pointer.Word(0xbeef_dead_c0de), p.Data())
}

func TestRawNonNativeIsFatal(t *testing.T) {
	unknown := pointer.Compose(pointer.KindUnknown, 1, 64)
	unmapped := pointer.Compose(pointer.Kind(pointer.Word(0x00ff)<<pointer.TagShift), 1, 64)

	for name, p := range map[string]pointer.RawPtr{
		"Unknown":  unknown,
		"Dangling": pointer.Dangling(),
		"Unmapped": unmapped,
	} {
		t.Run(name, func(t *testing.T) {
			requireAssertionPanic(t, func() { p.AsPtr() })
			requireAssertionPanic(t, func() { p.Uintptr() })
			requireAssertionPanic(t, func() { p.Offset(8) })
			requireAssertionPanic(t, func() { p.CheckedAdd(8) })
			requireAssertionPanic(t, func() { p.CheckedAdd(math.MaxUint64) })
			requireAssertionPanic(t, func() { p.Load() })
		})
	}
}

func TestRawAsNonNullPanicsOnNull(t *testing.T) {
	requireAssertionPanic(t, func() { pointer.Null().AsNonNull() })
}

func TestRawLoadStore(t *testing.T) {
	buffer := *pin([]byte{1, 2, 3, 4})
	p := pointer.New(unsafePointerOf(&buffer[0]))

	require.Equal(t, byte(1), p.Load())
	require.Equal(t, byte(3), p.Offset(2).Load())

	p.Offset(3).Store(42)
	require.Equal(t, byte(42), buffer[3])
	require.Equal(t, &buffer[1], p.Offset(1).AsPtr())
	require.Equal(t, &buffer[1], p.Offset(1).AsMutPtr())
	require.Equal(t, &buffer[0], p.AsNonNull())
}

func TestRawOffsetLeavingNativeRange(t *testing.T) {
	top := pointer.FromAddr(uintptr(pointer.OffsetMax) | uintptr(pointer.HandleMask))
	require.Equal(t, pointer.KindNative, top.Kind())

	if pointer.DebugChecks {
		requireAssertionPanic(t, func() { top.Offset(1) })
	} else {
		require.NotEqual(t, pointer.KindNative, top.Offset(1).Kind())
	}

	_, ok := top.CheckedAdd(1)
	require.False(t, ok)
}

func TestRawOrderingAndHash(t *testing.T) {
	low := pointer.FromAddr(0x1000)
	high := pointer.FromAddr(0x2000)

	require.Equal(t, -1, low.Compare(high))
	require.Equal(t, 1, high.Compare(low))
	require.Equal(t, 0, low.Compare(pointer.FromAddr(0x1000)))
	require.True(t, low.Equal(pointer.FromAddr(0x1000)))
	require.False(t, low.Equal(high))

	require.Equal(t, low.Hash(), pointer.FromAddr(0x1000).Hash())
	require.Equal(t, low, low.Upcast())
}

func TestRawString(t *testing.T) {
	require.Equal(t, "Ptr(Native, 0x7f0000001000)", pointer.FromAddr(0x00007f0000001000).String())
	require.Equal(t, "Ptr(Dangling)", pointer.Dangling().String())
	require.Equal(t, "Ptr(Unknown, 0xfffe000100000040)", pointer.Compose(pointer.KindUnknown, 1, 64).String())
	require.Equal(t, "Ptr(kind=0xff000000000000, 0xff000000000040)",
		pointer.Compose(pointer.Kind(pointer.Word(0x00ff)<<pointer.TagShift), 0, 64).String())
}
