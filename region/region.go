package region

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/linmem/internal/utils"
	"github.com/vkngwrapper/linmem/memutils"
	"github.com/vkngwrapper/linmem/memutils/metadata"
	"github.com/vkngwrapper/linmem/pointer"
	"golang.org/x/exp/slog"
)

// Region hands out KindNative pointers into a single contiguous block of linear memory.
//
// Region memory is invisible to the garbage collector: values stored in it must not contain Go
// pointers.
type Region struct {
	logger       *slog.Logger
	mutex        utils.OptionalRWMutex
	handle       uint16
	strategy     metadata.AllocationStrategy
	maxAlignment uint

	memory []byte
	mapped bool
	base   pointer.RawPtr

	metadata metadata.Metadata
	spans    *swiss.Map[pointer.RawPtr, metadata.SpanHandle]
}

// Base returns a pointer to the first byte of the region's memory
func (r *Region) Base() pointer.RawPtr {
	return r.base
}

// Size returns the number of bytes of linear memory managed by the region
func (r *Region) Size() int {
	return len(r.memory)
}

// Handle returns the handle used by RegionPtr to identify this region
func (r *Region) Handle() uint16 {
	return r.handle
}

// MaxAlignment returns the largest alignment Alloc will accept
func (r *Region) MaxAlignment() uint {
	return r.maxAlignment
}

func (r *Region) checkAlive() error {
	if r.metadata == nil {
		return ErrRegionDestroyed
	}
	return nil
}

func (r *Region) checkAlignment(alignment uint) error {
	err := memutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return err
	}

	if alignment > r.maxAlignment {
		return errors.Newf("alignment %d exceeds the region's maximum alignment of %d", alignment, r.maxAlignment)
	}

	return nil
}

func (r *Region) offsetOf(p pointer.RawPtr) int {
	return int(p.Word() - r.base.Word())
}

// Alloc reserves size bytes aligned to alignment, which must be a power of two no larger than
// MaxAlignment. The memory is not cleared. A zero-size allocation returns pointer.Dangling().
func (r *Region) Alloc(size int, alignment uint) (pointer.RawPtr, error) {
	return r.alloc(size, alignment, nil)
}

func (r *Region) alloc(size int, alignment uint, userData any) (pointer.RawPtr, error) {
	if size < 0 {
		return pointer.Null(), errors.Newf("invalid allocation size: %d", size)
	}

	err := r.checkAlignment(alignment)
	if err != nil {
		return pointer.Null(), err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	err = r.checkAlive()
	if err != nil {
		return pointer.Null(), err
	}

	if size == 0 {
		return pointer.Dangling(), nil
	}

	return r.allocLocked(size, alignment, userData)
}

func (r *Region) allocLocked(size int, alignment uint, userData any) (pointer.RawPtr, error) {
	success, request, err := r.metadata.CreateAllocationRequest(size, alignment, r.strategy)
	if err != nil {
		return pointer.Null(), err
	}

	if !success {
		r.logger.LogAttrs(context.Background(), slog.LevelDebug, "region allocation failed",
			slog.Int("handle", int(r.handle)),
			slog.Int("size", size),
			slog.Int("alignment", int(alignment)),
			slog.Int("freeBytes", r.metadata.SumFreeSize()),
		)
		return pointer.Null(), errors.Wrapf(ErrOutOfMemory, "failed to allocate %d bytes", size)
	}

	err = r.metadata.Alloc(request, userData)
	if err != nil {
		return pointer.Null(), err
	}

	if memutils.DebugMargin > 0 {
		memutils.WriteMagicValue(r.base, request.Offset+request.Size)
	}

	ptr := r.base.Offset(request.Offset)
	r.spans.Put(ptr, request.Handle)
	return ptr, nil
}

func (r *Region) lookup(p pointer.RawPtr) (metadata.SpanHandle, error) {
	if p.IsNull() {
		return metadata.NoSpan, errors.Wrap(ErrInvalidPointer, "pointer is null")
	}

	handle, ok := r.spans.Get(p)
	if !ok {
		return metadata.NoSpan, errors.Wrapf(ErrInvalidPointer, "%s", p)
	}

	return handle, nil
}

// Free returns an allocation to the region. Freeing pointer.Dangling() does nothing; freeing a null
// pointer, a pointer the region did not return, or a pointer that was already freed is an error.
func (r *Region) Free(p pointer.RawPtr) error {
	if p == pointer.DanglingRaw {
		return nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.checkAlive()
	if err != nil {
		return err
	}

	handle, err := r.lookup(p)
	if err != nil {
		return err
	}

	return r.freeLocked(p, handle)
}

func (r *Region) freeLocked(p pointer.RawPtr, handle metadata.SpanHandle) error {
	err := r.metadata.Free(handle)
	if err != nil {
		return err
	}

	r.spans.Delete(p)
	return nil
}

// Realloc resizes an allocation, moving it if it has to grow. Reallocating a null or dangling
// pointer is an Alloc, and reallocating to size 0 is a Free that returns pointer.Dangling().
// Shrinking never moves the allocation unless it does not satisfy the new alignment.
func (r *Region) Realloc(p pointer.RawPtr, newSize int, alignment uint) (pointer.RawPtr, error) {
	if p == pointer.DanglingRaw || p.IsNull() {
		return r.Alloc(newSize, alignment)
	}

	if newSize == 0 {
		err := r.Free(p)
		if err != nil {
			return pointer.Null(), err
		}
		return pointer.Dangling(), nil
	}

	if newSize < 0 {
		return pointer.Null(), errors.Newf("invalid allocation size: %d", newSize)
	}

	err := r.checkAlignment(alignment)
	if err != nil {
		return pointer.Null(), err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	err = r.checkAlive()
	if err != nil {
		return pointer.Null(), err
	}

	handle, err := r.lookup(p)
	if err != nil {
		return pointer.Null(), err
	}

	oldSize, err := r.metadata.AllocationSize(handle)
	if err != nil {
		return pointer.Null(), err
	}

	if newSize <= oldSize && p.Word()&pointer.Word(alignment-1) == 0 {
		return p, nil
	}

	userData, err := r.metadata.AllocationUserData(handle)
	if err != nil {
		return pointer.Null(), err
	}

	newPtr, err := r.allocLocked(newSize, alignment, userData)
	if err != nil {
		return pointer.Null(), err
	}

	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}

	oldOffset := r.offsetOf(p)
	newOffset := r.offsetOf(newPtr)
	copy(r.memory[newOffset:newOffset+copySize], r.memory[oldOffset:oldOffset+copySize])

	err = r.freeLocked(p, handle)
	if err != nil {
		return pointer.Null(), err
	}

	return newPtr, nil
}

// Contains returns true if p is a native pointer into this region's memory
func (r *Region) Contains(p pointer.RawPtr) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.containsLocked(p)
}

func (r *Region) containsLocked(p pointer.RawPtr) bool {
	if p.Kind() != pointer.KindNative || r.memory == nil {
		return false
	}

	return p.Word() >= r.base.Word() && p.Word()-r.base.Word() < pointer.Word(len(r.memory))
}

// RegionPtr converts a native pointer into this region to its KindUnknown handle/offset form,
// which is independent of where the region is mapped.
func (r *Region) RegionPtr(p pointer.RawPtr) (pointer.RawPtr, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.containsLocked(p) {
		return pointer.Null(), errors.Wrapf(ErrInvalidPointer, "%s is outside region %d", p, r.handle)
	}

	return pointer.Compose(pointer.KindUnknown, r.handle, uint32(r.offsetOf(p))), nil
}

// Resolve converts a handle/offset pointer produced by RegionPtr back to a native pointer
func (r *Region) Resolve(p pointer.RawPtr) (pointer.RawPtr, error) {
	if p.Kind() != pointer.KindUnknown {
		return pointer.Null(), errors.Wrapf(ErrInvalidPointer, "%s is not a region pointer", p)
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	err := r.checkAlive()
	if err != nil {
		return pointer.Null(), err
	}

	handle, offset := p.HandleOffset()
	if handle != r.handle {
		return pointer.Null(), errors.Wrapf(ErrInvalidPointer, "%s belongs to region %d, not region %d", p, handle, r.handle)
	}

	if int(offset) >= len(r.memory) {
		return pointer.Null(), errors.Wrapf(ErrInvalidPointer, "%s is past the end of region %d", p, r.handle)
	}

	return r.base.Offset(int(offset)), nil
}

// Statistics returns a cheap summary of the region's usage
func (r *Region) Statistics() memutils.Statistics {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var stats memutils.Statistics
	if r.metadata != nil {
		r.metadata.AddStatistics(&stats)
	}
	return stats
}

// DetailedStatistics visits every span in the region to collect size distributions
func (r *Region) DetailedStatistics() memutils.DetailedStatistics {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var stats memutils.DetailedStatistics
	stats.Clear()
	if r.metadata != nil {
		r.metadata.AddDetailedStatistics(&stats)
	}
	return stats
}

// BuildStatsString returns a json document describing the region. If detailed is true, every
// span in the region is listed.
func (r *Region) BuildStatsString(detailed bool) string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Handle").Int(int(r.handle))
	obj.Name("Strategy").String(r.strategy.String())

	if r.metadata != nil {
		var stats memutils.DetailedStatistics
		stats.Clear()
		r.metadata.AddDetailedStatistics(&stats)

		total := obj.Name("Total").Object()
		stats.WriteJSON(&total)
		total.End()

		if detailed {
			detailedMap := obj.Name("DetailedMap").Object()
			r.metadata.WriteJSON(&detailedMap)
			detailedMap.End()
		}
	}

	obj.End()
	return string(writer.Bytes())
}

// CheckCorruption verifies the debug margin after every allocation. It is only available when
// the debug_linmem build tag is present.
func (r *Region) CheckCorruption() error {
	if memutils.DebugMargin == 0 {
		return ErrCorruptionDetectionDisabled
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	err := r.checkAlive()
	if err != nil {
		return err
	}

	return r.metadata.CheckCorruption(r.base)
}

// Validate checks the region's bookkeeping for consistency
func (r *Region) Validate() error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	err := r.checkAlive()
	if err != nil {
		return err
	}

	if r.spans.Count() != r.metadata.AllocationCount() {
		return errors.Errorf("region tracks %d pointers but its metadata has %d allocations", r.spans.Count(), r.metadata.AllocationCount())
	}

	r.spans.Iter(func(ptr pointer.RawPtr, handle metadata.SpanHandle) bool {
		var offset int
		offset, err = r.metadata.AllocationOffset(handle)
		if err != nil {
			return true
		}

		if r.base.Offset(offset) != ptr {
			err = errors.Errorf("pointer %s is tracked for the span at offset %d", ptr, offset)
			return true
		}

		return false
	})
	if err != nil {
		return err
	}

	return r.metadata.Validate()
}

// Destroy releases the region's memory. It fails, logging every unreleased allocation, if any
// allocations are still live.
func (r *Region) Destroy() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.checkAlive()
	if err != nil {
		return err
	}

	if !r.metadata.IsEmpty() {
		// Log all remaining allocations
		err = r.metadata.VisitAllRegions(func(span metadata.Span) error {
			if span.Free {
				return nil
			}

			r.logUnreleasedMemory(span)
			return nil
		})
		if err != nil {
			r.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		return errors.Newf("%d allocations were not freed before the destruction of region %d", r.metadata.AllocationCount(), r.handle)
	}

	err = r.release()
	r.metadata = nil
	return err
}

func (r *Region) release() error {
	memory := r.memory
	r.memory = nil
	if r.mapped {
		return unmapLinearMemory(memory)
	}
	return nil
}

func (r *Region) logUnreleasedMemory(span metadata.Span) {
	userData := span.UserData
	if userData == nil {
		userData = "empty"
	}

	r.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("region", int(r.handle)),
		slog.Int("offset", span.Offset),
		slog.Int("size", span.Size),
		slog.Any("userData", userData),
	)
}
