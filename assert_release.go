//go:build !valuestore_debug

package valuestore

// assertf is a no-op in release builds. See assert_debug.go.
func assertf(cond bool, format string, args ...any) {}
