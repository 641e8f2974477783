package valuestore

import "errors"

// Sentinel errors, matched by callers with errors.Is. Each is wrapped with
// fmt.Errorf("...: %w", ErrX) at the call site so an error carries context
// (which key, which slot) without losing the sentinel identity.
var (
	// ErrCorrupt is returned when a stored chunk, key, or stats entry does
	// not decode to a value this package could have written itself.
	ErrCorrupt = errors.New("valuestore: database corrupt")

	// ErrRange is returned when a value's magnitude (a stats field, a slot
	// number, a docid) exceeds what the on-disk encoding can represent.
	ErrRange = errors.New("valuestore: value out of representable range")

	// ErrFeatureUnavailable is returned by operations that need a table
	// this manager was not opened with (GetAllValues needs the termlist
	// table).
	ErrFeatureUnavailable = errors.New("valuestore: feature unavailable")

	// ErrDatabaseClosed is returned by operations attempted on a manager
	// with no open tables at all.
	ErrDatabaseClosed = errors.New("valuestore: database closed")

	// ErrNotFound is returned by a cursor's ReadTag when the key it is
	// positioned on has no live entry in the table. It is not a corruption
	// signal. Lookups by docid or slot that find nothing (GetValue, for
	// instance) do not return it; they return a nil value.
	ErrNotFound = errors.New("valuestore: not found")
)
