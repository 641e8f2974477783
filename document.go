package valuestore

// Document is the external collaborator that knows a document's slot
// values while it is being added or replaced, before those values have
// been committed to any chunk. The manager pulls values from Document
// rather than pushing them, so callers can supply values lazily (e.g.
// decoded from a wire format only when actually read).
type Document interface {
	// Did returns the document's id.
	Did() Did

	// Value returns the raw bytes stored in the given slot, or nil if the
	// document has no value in that slot. A nil and an empty non-nil value
	// are both treated as "no value" by this package.
	Value(slot Slot) ([]byte, error)

	// Slots returns the set of slots the document has a non-empty value
	// in, in ascending order.
	Slots() ([]Slot, error)
}
