//go:build debug_linmem

package pointer

import "github.com/cockroachdb/errors"

// DebugChecks is true when the package is built with the debug_linmem tag
const DebugChecks = true

func debugCheckOffset(p RawPtr, n int, result RawPtr) {
	if result.Kind() != KindNative {
		panic(errors.AssertionFailedf("pointer.RawPtr.Offset: %s offset by %d left the native address range: %s", p, n, result))
	}
}
