package metadata

import (
	"fmt"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/linmem/memutils"
	"github.com/vkngwrapper/linmem/pointer"
)

// MaxRegionSize is the largest region a Metadata will manage. Every offset within the region must
// fit in the offset field of a pointer.RawPtr.
const MaxRegionSize = pointer.OffsetMax + 1

// Metadata tracks the spans within a single contiguous region of memory. It manages suballocations
// within the region, allowing allocations to be requested and freed, as well as enumerated and
// queried. It never touches the memory itself, with the exception of CheckCorruption.
type Metadata interface {
	// Init must be called before the Metadata is used. It gives the implementation an opportunity
	// to ensure that metadata structures are prepared for allocations, as well as informs the
	// implementation of the size in bytes of the region it will be managing.
	Init(size int) error
	// Size retrieves the size in bytes that the region was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks may be expensive, depending
	// on the implementation. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error, but this may assist in diagnosing issues with the implementation.
	Validate() error
	// AllocationCount returns the number of suballocations currently live in the implementation.
	AllocationCount() int
	// FreeRegionsCount returns the number of distinct free ranges in the region. Adjacent free ranges are
	// always merged, so they are counted once.
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes of memory in the region.
	SumFreeSize() int
	// IsEmpty will return true if this region has no live suballocations
	IsEmpty() bool

	// VisitAllRegions will call the provided callback once for each allocation and free range in
	// the region, from the highest offset to the lowest. Returning an error from the callback stops
	// the iteration and returns that error.
	VisitAllRegions(handleSpan func(span Span) error) error
	// AllocationListBegin will retrieve the handle of the allocation at the lowest offset, if any. If none
	// exist, NoSpan is returned.
	AllocationListBegin() (SpanHandle, error)
	// FindNextAllocation accepts the handle of a live allocation and returns the handle of the live
	// allocation at the next higher offset, or NoSpan. It returns an error if the handle does not map to
	// a live allocation.
	FindNextAllocation(handle SpanHandle) (SpanHandle, error)

	// AllocationOffset returns the offset in bytes of a span within the region.
	AllocationOffset(handle SpanHandle) (int, error)
	// AllocationSize returns the size in bytes of a live allocation, not including any debug margin.
	AllocationSize(handle SpanHandle) (int, error)
	// AllocationUserData returns the userdata value provided by the consumer for a live allocation.
	AllocationUserData(handle SpanHandle) (any, error)
	// SetAllocationUserData replaces the userdata value of a live allocation.
	SetAllocationUserData(handle SpanHandle, userData any) error

	// AddDetailedStatistics sums this region's allocation statistics into the provided object.
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this region's allocation statistics into the provided object.
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// WriteJSON populates a json object with a summary of the region and every span in it
	WriteJSON(json *jwriter.ObjectState)

	// CheckCorruption accepts a pointer to the start of the region's memory. It will return
	// nil if anti-corruption memory markers are present after every allocation in the region. Markers
	// are only written when built with the debug_linmem tag, and it is the consumer's responsibility
	// to write them with memutils.WriteMagicValue after each allocation.
	CheckCorruption(base pointer.RawPtr) error

	// CreateAllocationRequest finds a location for an allocation of size bytes aligned to alignment.
	// It returns false without an error if there is no room in the region.
	CreateAllocationRequest(size int, alignment uint, strategy AllocationStrategy) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest. The implementation returns an error if the request no
	// longer matches the state of the metadata.
	Alloc(request AllocationRequest, userData any) error
	// Free frees a suballocation, causing it to become a free range once again.
	Free(handle SpanHandle) error
}

// metadataBase holds the fields shared by Metadata implementations
type metadataBase struct {
	size int
}

func (m *metadataBase) Size() int { return m.size }

func (m *metadataBase) writeJSONHeader(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.size)
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}

func writeJSONSpan(json *jwriter.ArrayState, span Span) {
	obj := json.Object()
	defer obj.End()

	obj.Name("Offset").Int(span.Offset)
	obj.Name("Size").Int(span.Size)
	if span.Free {
		obj.Name("Type").String("Free")
	} else {
		obj.Name("Type").String("Allocation")
	}

	if span.UserData != nil {
		obj.Name("CustomData").String(fmt.Sprintf("%+v", span.UserData))
	}
}
