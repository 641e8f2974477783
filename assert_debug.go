//go:build valuestore_debug

package valuestore

import "fmt"

// assertf panics if cond is false. It mirrors the original implementation's
// debug-only Assert/AssertRel macros: compiled in only under the
// valuestore_debug build tag, so release builds pay nothing for it and
// callers must never rely on its side effects.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("valuestore: assertion failed: "+format, args...))
	}
}
