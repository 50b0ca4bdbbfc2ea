package pointer_test

import (
	"sort"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/linmem/pointer"
)

func unsafePointerOf[T any](p *T) unsafe.Pointer {
	return unsafe.Pointer(p)
}

type listNode struct {
	next  pointer.Ptr[listNode]
	value int
}

var globalHead pointer.Ptr[listNode]

// pinned keeps test pointees reachable from a package variable, which forces them onto the heap.
// Stack memory is copied when a goroutine's stack grows, and a Ptr would keep the old address.
var pinned []any

func pin[T any](value T) *T {
	p := new(T)
	*p = value
	pinned = append(pinned, p)
	return p
}

func swapPointees[T any, P pointer.Pointer[T, P]](left, right P) {
	value := left.Load()
	left.Store(right.Load())
	right.Store(value)
}

func firstNonNull[T any, P pointer.Pointer[T, P]](pointers ...P) P {
	for _, p := range pointers {
		if !p.IsNull() {
			return p
		}
	}

	var zero P
	return zero.Null()
}

func TestPtrHasNoRuntimeOverhead(t *testing.T) {
	require.Equal(t, unsafe.Sizeof(pointer.RawPtr(0)), unsafe.Sizeof(pointer.Ptr[listNode]{}))
	require.Equal(t, unsafe.Sizeof(pointer.RawPtr(0)), unsafe.Sizeof(pointer.Ptr[[64]byte]{}))
}

func TestPtrConstInit(t *testing.T) {
	require.True(t, globalHead.IsNull())
	require.Equal(t, globalHead, globalHead.ConstInit())
	require.Equal(t, pointer.NullPtr[listNode](), globalHead)
	require.Equal(t, pointer.Null(), globalHead.Upcast())
}

func TestPtrNullAndDanglingAreDistinct(t *testing.T) {
	null := pointer.NullPtr[uint64]()
	dangling := pointer.DanglingPtr[uint64]()

	require.True(t, null.IsNull())
	require.False(t, dangling.IsNull())
	require.NotEqual(t, null, dangling)
	require.Equal(t, pointer.Dangling(), dangling.Upcast())
	require.Equal(t, pointer.KindDangling, dangling.Kind())
	require.Equal(t, dangling, null.Dangling())
	require.Equal(t, null, dangling.Null())

	requireAssertionPanic(t, func() { dangling.Load() })
}

func TestPtrConstructionPathsAgree(t *testing.T) {
	value := pin(uint64(0x1122334455667788))

	fromMut := pointer.Of(value)
	fromUnsafe := pointer.FromUnsafe[uint64](unsafe.Pointer(value))
	fromRaw := pointer.Downcast[uint64](pointer.New(unsafe.Pointer(value)))

	require.True(t, fromMut == fromUnsafe)
	require.True(t, fromMut.Equal(fromRaw))
	require.Equal(t, 0, fromMut.Compare(fromUnsafe))
	require.Equal(t, fromMut.Hash(), fromRaw.Hash())
	require.Equal(t, value, fromMut.AsPtr())
	require.Equal(t, value, fromUnsafe.AsMutPtr())
	require.Equal(t, uint64(0x1122334455667788), fromRaw.Load())
}

func TestPtrLoadStore(t *testing.T) {
	first := pin(listNode{value: 1})
	second := pin(listNode{value: 2})

	head := pointer.Of(first)
	head.AsMutPtr().next = pointer.Of(second)

	require.Equal(t, 1, head.Load().value)
	require.Equal(t, 2, head.Load().next.Load().value)
	require.True(t, head.Load().next.Load().next.IsNull())

	head.Load().next.Store(listNode{value: 3})
	require.Equal(t, 3, second.value)
}

func growStack(depth int) int {
	var frame [256]byte
	frame[0] = byte(depth)
	if depth == 0 {
		return int(frame[0])
	}
	return growStack(depth-1) + int(frame[0])
}

func TestPtrSurvivesStackGrowth(t *testing.T) {
	node := pin(listNode{value: 1})
	p := pointer.Of(node)

	growStack(200)

	p.Store(listNode{value: 7})
	require.Equal(t, 7, node.value)
}

func TestPtrGenericCapability(t *testing.T) {
	a, b := pin(10), pin(20)
	swapPointees[int](pointer.Of(a), pointer.Of(b))
	require.Equal(t, 20, *a)
	require.Equal(t, 10, *b)

	bytes := *pin([]byte{'x', 'y'})
	swapPointees[byte](pointer.New(unsafe.Pointer(&bytes[0])), pointer.New(unsafe.Pointer(&bytes[1])))
	require.Equal(t, []byte{'y', 'x'}, bytes)

	require.Equal(t, pointer.Of(b), firstNonNull[int](pointer.NullPtr[int](), pointer.Of(b), pointer.Of(a)))
	require.True(t, firstNonNull[int](pointer.NullPtr[int]()).IsNull())
	require.True(t, firstNonNull[byte, pointer.RawPtr]().IsNull())
}

func TestPtrOrderingLaws(t *testing.T) {
	addresses := []uintptr{0x3000, 0x1000, 0x2000, 0x1000, 0}
	pointers := make([]pointer.Ptr[uint32], 0, len(addresses))
	for _, addr := range addresses {
		pointers = append(pointers, pointer.Downcast[uint32](pointer.FromAddr(addr)))
	}

	for _, a := range pointers {
		require.Equal(t, 0, a.Compare(a))
		require.True(t, a.Equal(a))

		for _, b := range pointers {
			require.Equal(t, -a.Compare(b), b.Compare(a))
			require.Equal(t, a.Upcast().Compare(b.Upcast()), a.Compare(b))
			require.Equal(t, a == b, a.Compare(b) == 0)

			for _, c := range pointers {
				if a.Compare(b) <= 0 && b.Compare(c) <= 0 {
					require.LessOrEqual(t, a.Compare(c), 0)
				}
			}
		}
	}

	sort.Slice(pointers, func(i, j int) bool { return pointers[i].Compare(pointers[j]) < 0 })
	require.True(t, pointers[0].IsNull())
	require.Equal(t, uintptr(0x3000), pointers[4].Upcast().Uintptr())
}

func TestPtrString(t *testing.T) {
	p := pointer.Downcast[uint32](pointer.FromAddr(0x00007f0000001000))
	require.Equal(t, "Ptr[uint32](Native, 0x7f0000001000)", p.String())
	require.Equal(t, "Ptr[uint32](Dangling)", pointer.DanglingPtr[uint32]().String())
}
