package valuestore

// Table is the external, ordered key/value collaborator this package is
// built on top of: something that stores opaque byte-string keys mapped to
// opaque byte-string tags (values), iterable in ascending byte order of
// key. Two independent Tables back this package: the postlist table (value
// chunks and stats) and the termlist table (per-document slot blobs).
//
// Table implementations are assumed single-threaded from this package's
// point of view: this package never calls a Table method concurrently with
// another on the same Table.
type Table interface {
	// Add inserts or overwrites the tag stored under key.
	Add(key, tag []byte) error

	// Del removes key, if present. Deleting an absent key is not an error.
	Del(key []byte) error

	// GetExactEntry looks up key and reports whether it was present.
	GetExactEntry(key []byte) (tag []byte, found bool, err error)

	// Cursor returns a new read cursor over the table's current committed
	// state. The cursor's view is a snapshot: further mutation of the
	// table through Add/Del does not have to be visible to cursors already
	// obtained, and this package never relies on it being visible.
	Cursor() (Cursor, error)

	// IsOpen reports whether the table is available for use. A closed or
	// absent table (as with an optional termlist table) makes IsOpen
	// return false without erroring.
	IsOpen() bool
}

// Cursor iterates a Table's key/tag pairs in ascending key order and
// supports seeking to (or just before) an arbitrary key. Its position is
// undefined after any mutation of the underlying table and must not be
// used past that point.
type Cursor interface {
	// FindEntry positions the cursor at key if present (returning exact
	// true). Otherwise it positions at the greatest key strictly less than
	// key (a "floor" seek: exact false), which is what lets a caller
	// recover "the chunk that would contain this docid" when no chunk
	// starts exactly there. If no such smaller key exists, the cursor has
	// no current entry (AfterEnd reports true) until the next Next() call,
	// which then lands on the smallest key in the table, if any.
	FindEntry(key []byte) (exact bool, err error)

	// CurrentKey returns the key at the cursor's current position. It must
	// not be called when AfterEnd is true.
	CurrentKey() []byte

	// ReadTag ensures the tag at the current position is loaded and
	// decompressed/decrypted as needed; some implementations load tags
	// lazily so a seek-only scan can avoid the cost.
	ReadTag() error

	// CurrentTag returns the tag at the cursor's current position. ReadTag
	// must have been called first (FindEntry calls it implicitly for the
	// entry it lands on).
	CurrentTag() []byte

	// Next advances to the following key in ascending order, returning
	// false if there is no such key (either because the cursor was already
	// past the last entry, or the table has none after the current
	// position).
	Next() (bool, error)

	// AfterEnd reports whether the cursor currently has no entry to read:
	// either it was advanced past the last one, or a floor FindEntry found
	// no key small enough and Next has not yet been called to recover.
	AfterEnd() bool
}
