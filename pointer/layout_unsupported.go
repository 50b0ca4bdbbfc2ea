//go:build !amd64

package pointer

// There is no tagged pointer layout for this target. Add a layout_<arch>.go defining Word, Tag and
// the mask/shift constants before building here.
var _ = noTaggedPointerLayoutForThisTarget
