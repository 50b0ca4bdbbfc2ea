//go:build !debug_linmem

package pointer

// DebugChecks is true when the package is built with the debug_linmem tag
const DebugChecks = false

func debugCheckOffset(p RawPtr, n int, result RawPtr) {}
