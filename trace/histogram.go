package trace

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

const histogramBarWidth = 60

// Histogram counts values in power-of-two buckets. Bucket k holds values in [2^k, 2^(k+1)), and
// bucket 0 also holds zero.
type Histogram struct {
	counts []int
}

func log2Bucket(value uint64) int {
	if value == 0 {
		return 0
	}
	return bits.Len64(value) - 1
}

// Add counts a single value
func (h *Histogram) Add(value uint64) {
	bucket := log2Bucket(value)
	for len(h.counts) <= bucket {
		h.counts = append(h.counts, 0)
	}
	h.counts[bucket]++
}

// Buckets returns the number of buckets up to and including the highest non-empty one
func (h *Histogram) Buckets() int {
	return len(h.counts)
}

// Count returns the number of values in the bucket
func (h *Histogram) Count(bucket int) int {
	if bucket < 0 || bucket >= len(h.counts) {
		return 0
	}
	return h.counts[bucket]
}

// Total returns the number of values added to the histogram
func (h *Histogram) Total() int {
	var total int
	for _, count := range h.counts {
		total += count
	}
	return total
}

// String renders the histogram as a text bar chart, one bucket per line
func (h *Histogram) String() string {
	var maxCount int
	for _, count := range h.counts {
		if count > maxCount {
			maxCount = count
		}
	}

	var builder strings.Builder
	for bucket, count := range h.counts {
		barLength := 0
		if maxCount > 0 {
			barLength = (count*histogramBarWidth + maxCount - 1) / maxCount
		}

		fmt.Fprintf(&builder, "%-5s %10d : %s\n",
			fmt.Sprintf("2^%d", bucket),
			count,
			strings.Repeat("#", barLength),
		)
	}
	return builder.String()
}

// WriteJSON writes the histogram as an array of {"Log2", "Count"} objects
func (h *Histogram) WriteJSON(writer *jwriter.Writer) {
	arr := writer.Array()
	defer arr.End()

	for bucket, count := range h.counts {
		obj := arr.Object()
		obj.Name("Log2").Int(bucket)
		obj.Name("Count").Int(count)
		obj.End()
	}
}

// SizeHistogram buckets every OpAlloc and OpRealloc record by its requested size
func (o Operations) SizeHistogram() *Histogram {
	var histogram Histogram
	for _, op := range o {
		if op.Op == OpAlloc || op.Op == OpRealloc {
			histogram.Add(uint64(op.Size))
		}
	}
	return &histogram
}

// LifetimeHistogram buckets every object created by the trace by the number of records between its
// creation and the record that consumes it. Objects that are never consumed live until the end
// of the trace.
func (o Operations) LifetimeHistogram() *Histogram {
	var histogram Histogram
	consumed := make([]bool, len(o))

	for i, op := range o {
		if op.Op == OpFree || op.Op == OpRealloc {
			if int(op.ID) < i {
				histogram.Add(uint64(i - int(op.ID)))
				consumed[op.ID] = true
			}
		}
	}

	for i, op := range o {
		if op.Op != OpFree && !consumed[i] {
			histogram.Add(uint64(len(o) - i))
		}
	}

	return &histogram
}
