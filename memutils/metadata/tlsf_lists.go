package metadata

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
)

const (
	smallSpanSize         = 256
	secondLevelBits uint8 = 5
	memoryClassShift      = 7
	maxMemoryClasses      = 65 - memoryClassShift
)

// memoryClassOf returns the first-level bucket for a span size: 0 for small spans, otherwise the
// position of the most significant bit above memoryClassShift.
func memoryClassOf(size int) uint8 {
	if size <= smallSpanSize {
		return 0
	}
	return uint8(63-bits.LeadingZeros64(uint64(size))) - memoryClassShift
}

// secondIndexOf returns the second-level bucket within a memory class. Small spans are split into
// 64-byte steps; larger classes are split linearly into 2^secondLevelBits parts.
func secondIndexOf(size int, class uint8) uint16 {
	if class == 0 {
		return uint16((size - 1) / 64)
	}
	return uint16((uint(size) >> (class + memoryClassShift - secondLevelBits)) ^ (uint(1) << secondLevelBits))
}

func listIndex(class uint8, second uint16) int {
	if class == 0 {
		return int(second)
	}
	return int(class-1)<<secondLevelBits + int(second) + smallSpanSize/64
}

func listIndexOf(size int) int {
	class := memoryClassOf(size)
	return listIndex(class, secondIndexOf(size, class))
}

// nextListSize rounds size up far enough that any span found in the resulting list is guaranteed
// to be at least size bytes long.
func nextListSize(size int) int {
	switch {
	case size > smallSpanSize:
		return size + 1<<(63-bits.LeadingZeros64(uint64(size))-int(secondLevelBits))
	case size > smallSpanSize-smallSpanSize/4:
		return smallSpanSize + 1
	default:
		return size + smallSpanSize/4
	}
}

// freeLists indexes free spans by size. Each list holds spans of one size bucket, and two levels of
// bitmaps record which lists are non-empty so a suitable list is found without scanning.
type freeLists struct {
	heads        []*tlsfSpan
	classBitmap  uint32
	indexBitmaps [maxMemoryClasses]uint32

	count int
	bytes int
}

func (l *freeLists) init(regionSize int) {
	*l = freeLists{
		heads: make([]*tlsfSpan, listIndexOf(regionSize)+1),
	}
}

func (l *freeLists) insert(span *tlsfSpan) {
	if span.free {
		panic("span is already free")
	}

	class := memoryClassOf(span.size)
	second := secondIndexOf(span.size, class)
	index := listIndex(class, second)

	span.free = true
	span.prevFree = nil
	span.nextFree = l.heads[index]
	if span.nextFree != nil {
		span.nextFree.prevFree = span
	}
	l.heads[index] = span

	l.indexBitmaps[class] |= 1 << second
	l.classBitmap |= 1 << class
	l.count++
	l.bytes += span.size
}

func (l *freeLists) remove(span *tlsfSpan) {
	if !span.free {
		panic("span is not free")
	}

	if span.prevFree != nil {
		span.prevFree.nextFree = span.nextFree
	} else {
		class := memoryClassOf(span.size)
		second := secondIndexOf(span.size, class)
		index := listIndex(class, second)

		if l.heads[index] != span {
			panic("span was not in the free list for its size")
		}

		l.heads[index] = span.nextFree
		if span.nextFree == nil {
			l.indexBitmaps[class] &^= 1 << second
			if l.indexBitmaps[class] == 0 {
				l.classBitmap &^= 1 << class
			}
		}
	}

	if span.nextFree != nil {
		span.nextFree.prevFree = span.prevFree
	}

	span.free = false
	span.prevFree = nil
	span.nextFree = nil
	l.count--
	l.bytes -= span.size
}

// findAtLeast returns the head of the first non-empty list whose bucket starts at or above size,
// and that list's index. It returns nil if every such list is empty.
func (l *freeLists) findAtLeast(size int) (*tlsfSpan, int) {
	class := memoryClassOf(size)
	indexMap := l.indexBitmaps[class] & (uint32(math.MaxUint32) << secondIndexOf(size, class))

	if indexMap == 0 {
		classMap := l.classBitmap & (uint32(math.MaxUint32) << (class + 1))
		if classMap == 0 {
			return nil, 0
		}

		class = uint8(bits.TrailingZeros32(classMap))
		indexMap = l.indexBitmaps[class]
		if indexMap == 0 {
			panic("free list bitmaps are out of sync")
		}
	}

	index := listIndex(class, uint16(bits.TrailingZeros32(indexMap)))
	if l.heads[index] == nil {
		panic("free list bitmaps are out of sync")
	}

	return l.heads[index], index
}

func (l *freeLists) validate() error {
	var count, bytes int

	for index, span := range l.heads {
		class := memoryClassOf(1)
		if span != nil {
			class = memoryClassOf(span.size)
		}

		for prev := (*tlsfSpan)(nil); span != nil; prev, span = span, span.nextFree {
			if !span.free {
				return errors.Errorf("span at offset %d is in a free list but is not free", span.offset)
			}
			if span.prevFree != prev {
				return errors.Errorf("span at offset %d has a broken free list back reference", span.offset)
			}
			if listIndexOf(span.size) != index {
				return errors.Errorf("span at offset %d with size %d is in free list %d", span.offset, span.size, index)
			}

			count++
			bytes += span.size
		}

		if l.heads[index] != nil {
			second := secondIndexOf(l.heads[index].size, class)
			if l.indexBitmaps[class]&(1<<second) == 0 || l.classBitmap&(1<<class) == 0 {
				return errors.Errorf("free list %d is not empty but is not marked in the bitmaps", index)
			}
		}
	}

	if count != l.count {
		return errors.Errorf("free lists hold %d spans but %d were counted", count, l.count)
	}
	if bytes != l.bytes {
		return errors.Errorf("free lists hold %d bytes but %d were counted", bytes, l.bytes)
	}

	return nil
}
