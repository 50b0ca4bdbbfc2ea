package metadata

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/linmem/memutils"
	"github.com/vkngwrapper/linmem/pointer"
)

var spanPool = sync.Pool{
	New: func() any {
		return &tlsfSpan{}
	},
}

// tlsfSpan is one contiguous range of the region. Every span sits in the physical list ordered by
// offset. Free spans other than the top span are also linked into one of the free lists.
type tlsfSpan struct {
	offset int
	size   int
	free   bool

	prev *tlsfSpan
	next *tlsfSpan

	prevFree *tlsfSpan
	nextFree *tlsfSpan

	userData any
	handle   SpanHandle
}

// TLSFMetadata is a two-level segregated fit implementation of Metadata. Free spans are bucketed
// first by the position of their most significant bit (the memory class) and then linearly within
// that class, with a bitmap at each level so that a suitable bucket can be found in constant time.
//
// The highest span in the region, the top span, is free space that has never been split. It is
// not kept in any free list, and it may be empty once the region is full.
type TLSFMetadata struct {
	metadataBase

	allocCount int
	lists      freeLists

	nextHandle SpanHandle
	handles    *swiss.Map[SpanHandle, *tlsfSpan]

	first *tlsfSpan
	top   *tlsfSpan
}

var _ Metadata = &TLSFMetadata{}

func NewTLSFMetadata() *TLSFMetadata {
	return &TLSFMetadata{}
}

func (m *TLSFMetadata) newSpan(offset, size int) *tlsfSpan {
	s := spanPool.Get().(*tlsfSpan)
	m.nextHandle++
	*s = tlsfSpan{
		offset: offset,
		size:   size,
		handle: m.nextHandle,
	}
	m.handles.Put(s.handle, s)
	return s
}

func (m *TLSFMetadata) releaseSpan(s *tlsfSpan) {
	m.handles.Delete(s.handle)
	s.userData = nil
	spanPool.Put(s)
}

func (m *TLSFMetadata) getSpan(handle SpanHandle) (*tlsfSpan, error) {
	span, ok := m.handles.Get(handle)
	if !ok {
		return nil, errors.Newf("span handle %d does not belong to this metadata", handle)
	}
	return span, nil
}

func (m *TLSFMetadata) getTakenSpan(handle SpanHandle, action string) (*tlsfSpan, error) {
	span, err := m.getSpan(handle)
	if err != nil {
		return nil, err
	}
	if span.free {
		return nil, errors.Newf("cannot %s for the free span at offset %d", action, span.offset)
	}
	return span, nil
}

// Init prepares the metadata to manage a region of size bytes. size must be between 1 and MaxRegionSize.
func (m *TLSFMetadata) Init(size int) error {
	if size < 1 || size > MaxRegionSize {
		return errors.Newf("region size %d is outside the supported range 1-%d", size, MaxRegionSize)
	}

	m.size = size
	m.handles = swiss.NewMap[SpanHandle, *tlsfSpan](42)
	m.reset()

	return nil
}

func (m *TLSFMetadata) reset() {
	m.allocCount = 0
	m.lists.init(m.size)

	m.top = m.newSpan(0, m.size)
	m.top.free = true
	m.first = m.top
}

// userSize is the number of bytes of a taken span visible to the caller
func userSize(span *tlsfSpan) int {
	if span.free {
		return span.size
	}
	return span.size - memutils.DebugMargin
}

func (m *TLSFMetadata) Validate() error {
	var offset, takenCount, freeCount, freeBytes int
	var prev *tlsfSpan

	for span := m.first; span != nil; prev, span = span, span.next {
		if span.prev != prev {
			return errors.Errorf("span at offset %d has a broken link to its physical predecessor", span.offset)
		}
		if span.offset != offset {
			return errors.Errorf("span at offset %d should start at offset %d", span.offset, offset)
		}
		offset += span.size

		switch {
		case span == m.top:
			if !span.free {
				return errors.New("top span is marked as taken")
			}
		case span.free:
			freeCount++
			freeBytes += span.size
		default:
			takenCount++
		}
	}

	if prev != m.top {
		return errors.New("top span is not the last span in the region")
	}
	if offset != m.size {
		return errors.Errorf("spans cover %d bytes of a %d byte region", offset, m.size)
	}
	if takenCount != m.allocCount {
		return errors.Errorf("found %d taken spans but %d allocations were counted", takenCount, m.allocCount)
	}
	if freeCount != m.lists.count || freeBytes != m.lists.bytes {
		return errors.Errorf("found %d free spans holding %d bytes, but the free lists hold %d spans and %d bytes",
			freeCount, freeBytes, m.lists.count, m.lists.bytes)
	}

	return m.lists.validate()
}

func (m *TLSFMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.RegionCount++
	stats.RegionBytes += m.size

	for span := m.first; span != nil; span = span.next {
		switch {
		case !span.free:
			stats.AddAllocation(userSize(span))
		case span.size > 0:
			stats.AddUnusedRange(span.size)
		}
	}
}

func (m *TLSFMetadata) AddStatistics(stats *memutils.Statistics) {
	stats.RegionCount++
	stats.AllocationCount += m.allocCount
	stats.RegionBytes += m.size
	stats.AllocationBytes += m.size - m.SumFreeSize() - m.allocCount*memutils.DebugMargin
}

func (m *TLSFMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *TLSFMetadata) FreeRegionsCount() int {
	if m.top.size > 0 {
		return m.lists.count + 1
	}
	return m.lists.count
}

func (m *TLSFMetadata) SumFreeSize() int {
	return m.lists.bytes + m.top.size
}

func (m *TLSFMetadata) IsEmpty() bool {
	return m.top.offset == 0
}

type searchStep uint8

const (
	// searchLargerHead tries only the first span of the smallest list that is guaranteed to fit
	searchLargerHead searchStep = iota
	// searchLarger walks the smallest list that is guaranteed to fit
	searchLarger
	// searchBestFit walks the list the request's size falls into, where spans may be too small
	searchBestFit
	searchTop
	// searchLowestOffset walks the physical list from offset 0
	searchLowestOffset
)

// searchPlan is the order in which a strategy tries candidate spans. When exhaustive is set and
// every step fails, all lists above the searchLarger list are walked as a last resort.
type searchPlan struct {
	steps      []searchStep
	exhaustive bool
}

var (
	minTimeSearch   = searchPlan{steps: []searchStep{searchLargerHead, searchTop, searchLarger, searchBestFit}, exhaustive: true}
	minMemorySearch = searchPlan{steps: []searchStep{searchBestFit, searchTop, searchLarger}, exhaustive: true}
	minOffsetSearch = searchPlan{steps: []searchStep{searchLowestOffset, searchTop}}
	balancedSearch  = searchPlan{steps: []searchStep{searchLarger, searchTop, searchBestFit}, exhaustive: true}
)

func searchOrder(strategy AllocationStrategy) searchPlan {
	switch {
	case strategy&AllocationStrategyMinTime != 0:
		return minTimeSearch
	case strategy&AllocationStrategyMinMemory != 0:
		return minMemorySearch
	case strategy&AllocationStrategyMinOffset != 0:
		return minOffsetSearch
	default:
		return balancedSearch
	}
}

// spanSearch carries one CreateAllocationRequest call through its search steps
type spanSearch struct {
	m         *TLSFMetadata
	allocSize int
	alignment uint

	larger      *tlsfSpan
	largerIndex int

	request AllocationRequest
}

// fits fills in the request and returns true if an allocation can be placed in span
func (s *spanSearch) fits(span *tlsfSpan) bool {
	alignedOffset := memutils.AlignUp(span.offset, s.alignment)
	if span.size < s.allocSize+alignedOffset-span.offset {
		return false
	}

	s.request = AllocationRequest{
		Handle: span.handle,
		Offset: alignedOffset,
		Size:   s.allocSize - memutils.DebugMargin,
	}
	return true
}

func (s *spanSearch) walkList(span *tlsfSpan) bool {
	for ; span != nil; span = span.nextFree {
		if s.fits(span) {
			return true
		}
	}
	return false
}

func (s *spanSearch) run(step searchStep) bool {
	switch step {
	case searchLargerHead:
		return s.larger != nil && s.fits(s.larger)
	case searchLarger:
		return s.walkList(s.larger)
	case searchBestFit:
		head, _ := s.m.lists.findAtLeast(s.allocSize)
		return s.walkList(head)
	case searchTop:
		return s.fits(s.m.top)
	case searchLowestOffset:
		for span := s.m.first; span != s.m.top; span = span.next {
			if span.free && span.size >= s.allocSize && s.fits(span) {
				return true
			}
		}
	}
	return false
}

// exhaust walks every list above the one searchLarger started from
func (s *spanSearch) exhaust() bool {
	if s.larger == nil {
		return false
	}
	for index := s.largerIndex + 1; index < len(s.m.lists.heads); index++ {
		if s.walkList(s.m.lists.heads[index]) {
			return true
		}
	}
	return false
}

func (m *TLSFMetadata) CreateAllocationRequest(
	size int,
	alignment uint,
	strategy AllocationStrategy,
) (bool, AllocationRequest, error) {
	if size < 1 {
		return false, AllocationRequest{}, errors.Errorf("invalid allocation size: %d", size)
	}

	if err := memutils.CheckPow2(alignment, "alignment"); err != nil {
		return false, AllocationRequest{}, err
	}

	memutils.DebugValidate(m)

	search := spanSearch{
		m:         m,
		allocSize: size + memutils.DebugMargin,
		alignment: alignment,
	}

	if search.allocSize > m.SumFreeSize() {
		return false, search.request, nil
	}

	if m.lists.count == 0 {
		success := search.fits(m.top)
		return success, search.request, nil
	}

	search.larger, search.largerIndex = m.lists.findAtLeast(nextListSize(search.allocSize))

	plan := searchOrder(strategy)
	for _, step := range plan.steps {
		if search.run(step) {
			return true, search.request, nil
		}
	}

	if !plan.exhaustive {
		return false, search.request, nil
	}

	success := search.exhaust()
	return success, search.request, nil
}

func (m *TLSFMetadata) WriteJSON(json *jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	m.AddDetailedStatistics(&stats)

	m.writeJSONHeader(json, m.SumFreeSize(), stats.AllocationCount, stats.UnusedRangeCount)

	spans := json.Name("Spans").Array()
	defer spans.End()

	for span := m.first; span != nil; span = span.next {
		if span.size > 0 {
			writeJSONSpan(&spans, m.describe(span))
		}
	}
}

func (m *TLSFMetadata) CheckCorruption(base pointer.RawPtr) error {
	for span := m.first; span != nil; span = span.next {
		if !span.free && !memutils.ValidateMagicValue(base, span.offset+userSize(span)) {
			return errors.Newf("memory corruption detected after the allocation at offset %d", span.offset)
		}
	}

	return nil
}

// link inserts span into the physical list directly after prev
func (m *TLSFMetadata) link(prev, span *tlsfSpan) {
	span.prev = prev
	span.next = prev.next
	if span.next != nil {
		span.next.prev = span
	}
	prev.next = span
}

// absorbPrev grows span downward over its physical predecessor, which must not be in a free list,
// and releases the predecessor
func (m *TLSFMetadata) absorbPrev(span *tlsfSpan) {
	prev := span.prev
	if prev.free {
		panic("cannot absorb a span that is still in a free list")
	}

	span.offset = prev.offset
	span.size += prev.size
	span.prev = prev.prev
	if span.prev != nil {
		span.prev.next = span
	} else {
		m.first = span
	}

	m.releaseSpan(prev)
}

func (m *TLSFMetadata) Alloc(request AllocationRequest, userData any) error {
	span, err := m.getSpan(request.Handle)
	if err != nil {
		return err
	}
	if !span.free {
		return errors.New("allocation request refers to a span that is no longer free")
	}

	size := request.Size + memutils.DebugMargin
	padding := request.Offset - span.offset
	if padding < 0 {
		return errors.New("allocation request offset lies before the start of its span")
	}
	if span.size < size+padding {
		return errors.New("allocation request had a span too small for the request")
	}
	if padding > 0 && span.prev == nil {
		return errors.New("allocation request has alignment padding at offset 0")
	}

	if span != m.top {
		m.lists.remove(span)
	}

	// Alignment padding goes to the predecessor if it is free, otherwise it becomes its own free span
	if padding > 0 {
		prev := span.prev
		if prev.free {
			m.lists.remove(prev)
			prev.size += padding
			m.lists.insert(prev)
		} else {
			pad := m.newSpan(span.offset, padding)
			m.link(prev, pad)
			m.lists.insert(pad)
		}

		span.offset += padding
		span.size -= padding
	}

	remainder := span.size - size
	switch {
	case remainder > 0:
		rest := m.newSpan(span.offset+size, remainder)
		m.link(span, rest)
		span.size = size

		if span == m.top {
			rest.free = true
			m.top = rest
		} else {
			m.lists.insert(rest)
		}
	case span == m.top:
		// The region is full up to here; keep an empty top span after the allocation
		top := m.newSpan(span.offset+size, 0)
		top.free = true
		m.link(span, top)
		m.top = top
	}

	span.free = false
	span.userData = userData
	m.allocCount++

	return nil
}

func (m *TLSFMetadata) Free(handle SpanHandle) error {
	span, err := m.getSpan(handle)
	if err != nil {
		return err
	}
	if span.free {
		return errors.Newf("span at offset %d is already free", span.offset)
	}

	span.userData = nil
	m.allocCount--

	if prev := span.prev; prev != nil && prev.free {
		m.lists.remove(prev)
		m.absorbPrev(span)
	}

	next := span.next
	switch {
	case next == m.top:
		m.absorbPrev(next)
	case next.free:
		m.lists.remove(next)
		m.absorbPrev(next)
		m.lists.insert(next)
	default:
		m.lists.insert(span)
	}

	return nil
}

func (m *TLSFMetadata) describe(span *tlsfSpan) Span {
	return Span{
		Handle:   span.handle,
		Offset:   span.offset,
		Size:     userSize(span),
		UserData: span.userData,
		Free:     span.free,
	}
}

func (m *TLSFMetadata) VisitAllRegions(handleSpan func(span Span) error) error {
	for span := m.top; span != nil; span = span.prev {
		if span.size == 0 {
			continue
		}

		err := handleSpan(m.describe(span))
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *TLSFMetadata) nextTaken(span *tlsfSpan) SpanHandle {
	for ; span != nil; span = span.next {
		if !span.free {
			return span.handle
		}
	}
	return NoSpan
}

func (m *TLSFMetadata) AllocationListBegin() (SpanHandle, error) {
	handle := m.nextTaken(m.first)
	if handle == NoSpan && m.allocCount > 0 {
		return NoSpan, errors.New("the metadata has an allocation but none could be found in the physical spans")
	}
	return handle, nil
}

func (m *TLSFMetadata) FindNextAllocation(handle SpanHandle) (SpanHandle, error) {
	span, err := m.getTakenSpan(handle, "find the next allocation")
	if err != nil {
		return NoSpan, err
	}

	return m.nextTaken(span.next), nil
}

func (m *TLSFMetadata) Clear() {
	for span := m.first; span != nil; {
		next := span.next
		m.releaseSpan(span)
		span = next
	}

	m.reset()
}

func (m *TLSFMetadata) AllocationOffset(handle SpanHandle) (int, error) {
	span, err := m.getSpan(handle)
	if err != nil {
		return 0, err
	}

	return span.offset, nil
}

func (m *TLSFMetadata) AllocationSize(handle SpanHandle) (int, error) {
	span, err := m.getTakenSpan(handle, "retrieve the size")
	if err != nil {
		return 0, err
	}

	return userSize(span), nil
}

func (m *TLSFMetadata) AllocationUserData(handle SpanHandle) (any, error) {
	span, err := m.getTakenSpan(handle, "retrieve user data")
	if err != nil {
		return nil, err
	}

	return span.userData, nil
}

func (m *TLSFMetadata) SetAllocationUserData(handle SpanHandle, userData any) error {
	span, err := m.getTakenSpan(handle, "set user data")
	if err != nil {
		return err
	}

	span.userData = userData
	return nil
}
