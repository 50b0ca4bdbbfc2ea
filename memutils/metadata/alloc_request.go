package metadata

// AllocationRequest is a type returned from Metadata.CreateAllocationRequest which indicates where
// the metadata intends to place a new allocation. It can be inspected and then committed with
// Metadata.Alloc. A request is only valid until the next call that mutates the metadata.
type AllocationRequest struct {
	// Handle identifies the free span the allocation will be carved out of
	Handle SpanHandle
	// Offset is the aligned offset in bytes the allocation will be placed at
	Offset int
	// Size is the size in bytes that was requested, not including any debug margin
	Size int
}
