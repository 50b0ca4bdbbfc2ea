package trace

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/linmem/pointer"
	"golang.org/x/exp/slices"
)

// ReplayAlignment is the alignment requested for every allocation during a replay
const ReplayAlignment uint = 8

//go:generate mockgen -source replay.go -destination ./mocks/allocator.go -package mock_trace

// Allocator is the allocation surface a trace is replayed against. *region.Region satisfies it.
type Allocator interface {
	Alloc(size int, alignment uint) (pointer.RawPtr, error)
	Realloc(p pointer.RawPtr, newSize int, alignment uint) (pointer.RawPtr, error)
	Free(p pointer.RawPtr) error
}

// RunWithAllocator replays the trace against the allocator. Objects still live when the replay
// ends, whether it reached the end of the trace or stopped on an error, are freed in creation
// order, so the allocator is left as it was found.
func (o Operations) RunWithAllocator(a Allocator) error {
	live := swiss.NewMap[uint32, pointer.RawPtr](uint32(len(o)/2 + 1))

	err := o.replay(a, live)
	return errors.CombineErrors(err, freeLive(a, live))
}

func (o Operations) replay(a Allocator, live *swiss.Map[uint32, pointer.RawPtr]) error {
	for i, op := range o {
		id := uint32(i)

		switch op.Op {
		case OpAlloc:
			p, err := a.Alloc(int(op.Size), ReplayAlignment)
			if err != nil {
				return errors.Wrapf(err, "record %d: failed to allocate %d bytes", i, op.Size)
			}
			live.Put(id, p)
		case OpFree:
			p, ok := live.Get(op.ID)
			if !ok {
				return errors.Newf("record %d frees object %d, which is not live", i, op.ID)
			}
			err := a.Free(p)
			if err != nil {
				return errors.Wrapf(err, "record %d: failed to free object %d", i, op.ID)
			}
			live.Delete(op.ID)
		case OpRealloc:
			p, ok := live.Get(op.ID)
			if !ok {
				return errors.Newf("record %d reallocates object %d, which is not live", i, op.ID)
			}
			newPtr, err := a.Realloc(p, int(op.Size), ReplayAlignment)
			if err != nil {
				return errors.Wrapf(err, "record %d: failed to reallocate object %d to %d bytes", i, op.ID, op.Size)
			}
			live.Delete(op.ID)
			live.Put(id, newPtr)
		default:
			return errors.Newf("record %d has unknown op code %d", i, op.Op)
		}
	}

	return nil
}

// freeLive frees every object left in live in creation order. It keeps going past failures and
// returns the first one.
func freeLive(a Allocator, live *swiss.Map[uint32, pointer.RawPtr]) error {
	leftovers := make([]uint32, 0, live.Count())
	live.Iter(func(id uint32, _ pointer.RawPtr) bool {
		leftovers = append(leftovers, id)
		return false
	})
	slices.Sort(leftovers)

	var firstErr error
	for _, id := range leftovers {
		p, _ := live.Get(id)
		err := a.Free(p)
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to free leftover object %d", id)
		}
		live.Delete(id)
	}

	return firstErr
}
