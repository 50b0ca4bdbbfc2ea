package region

import (
	"context"
	"io"
	"math/bits"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/linmem/memutils/metadata"
	"github.com/vkngwrapper/linmem/pointer"
	"golang.org/x/exp/slog"
)

const (
	// defaultRegionSize is the region size used when none is provided via CreateOptions. It is
	// equal to 16Mb.
	defaultRegionSize int = 16 * 1024 * 1024
	// maxBaseAlignment is the largest alignment a region will honor, even if its base address
	// happens to be aligned more strictly
	maxBaseAlignment uint = 4096
)

// CreateOptions contains optional settings when creating a region
type CreateOptions struct {
	// Size is the number of bytes of linear memory the region manages. It defaults to 16Mb and
	// may not exceed metadata.MaxRegionSize.
	Size int
	// Handle identifies this region inside the handle/offset pointers produced by RegionPtr
	Handle uint16
	// Strategy is the placement strategy used for every allocation in this region
	Strategy metadata.AllocationStrategy
	// ExternallySynchronized ensures that this region will not be synchronized internally. The
	// consumer must guarantee it is used from only one goroutine at a time or is synchronized by
	// some other mechanism, but performance may improve because internal mutexes are not used.
	ExternallySynchronized bool
	// HeapBacked takes the region's memory from the Go heap instead of mapping it from the OS
	HeapBacked bool
}

// New creates a new Region
//
// logger - Receives diagnostics, most importantly allocations that were never freed when the
// region is destroyed. If nil, diagnostics are discarded.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Region, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	size := options.Size
	if size == 0 {
		size = defaultRegionSize
	}

	if size < 0 || size > metadata.MaxRegionSize {
		return nil, errors.Newf("region size %d is outside the supported range 1-%d", size, metadata.MaxRegionSize)
	}

	var memory []byte
	var err error
	if options.HeapBacked {
		memory = make([]byte, size)
	} else {
		memory, err = mapLinearMemory(size)
		if err != nil {
			return nil, err
		}
	}

	region := &Region{
		logger:   logger,
		handle:   options.Handle,
		strategy: options.Strategy,
		memory:   memory,
		mapped:   !options.HeapBacked,
		base:     pointer.New(unsafe.Pointer(&memory[0])),
		spans:    swiss.NewMap[pointer.RawPtr, metadata.SpanHandle](42),
	}
	region.mutex.UseMutex = !options.ExternallySynchronized

	region.maxAlignment = uint(1) << bits.TrailingZeros64(uint64(region.base.Word()))
	if region.maxAlignment > maxBaseAlignment {
		region.maxAlignment = maxBaseAlignment
	}

	tlsf := metadata.NewTLSFMetadata()
	err = tlsf.Init(size)
	if err != nil {
		_ = region.release()
		return nil, err
	}
	region.metadata = tlsf

	logger.LogAttrs(context.Background(), slog.LevelDebug, "created region",
		slog.Int("handle", int(options.Handle)),
		slog.Int("size", size),
		slog.Bool("heapBacked", options.HeapBacked),
		slog.String("strategy", options.Strategy.String()),
	)

	return region, nil
}
