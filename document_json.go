package valuestore

import "sort"

// JSONDocument is a simple, in-memory Document backed by a slot-to-value
// map, useful for callers building a document from a decoded JSON object
// (or any other source that already has raw slot values in hand) rather
// than adapting an existing storage-backed type.
type JSONDocument struct {
	did    Did
	values map[Slot][]byte
}

// NewJSONDocument returns a Document for did with the given slot values.
// Slots present in values with an empty byte slice are treated the same as
// slots absent from the map: AddDocument skips both.
func NewJSONDocument(did Did, values map[Slot][]byte) *JSONDocument {
	return &JSONDocument{did: did, values: values}
}

// Did implements Document.
func (d *JSONDocument) Did() Did { return d.did }

// Value implements Document.
func (d *JSONDocument) Value(slot Slot) ([]byte, error) {
	return d.values[slot], nil
}

// Slots implements Document, returning the populated slots in ascending
// order.
func (d *JSONDocument) Slots() ([]Slot, error) {
	slots := make([]Slot, 0, len(d.values))
	for slot, value := range d.values {
		if len(value) == 0 {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots, nil
}
