package metadata

import "math"

// SpanHandle identifies a single span (allocated or free) within a Metadata. Handles are never
// reused by the Metadata that issued them.
type SpanHandle uint64

const (
	// NoSpan is returned by iteration methods when there are no further allocations
	NoSpan SpanHandle = math.MaxUint64
)

// Span describes a single region of memory tracked by a Metadata
type Span struct {
	Handle   SpanHandle
	Offset   int
	Size     int
	UserData any
	Free     bool
}
