package valuestore

// Did identifies a document. Zero is never a valid document id; the space
// of live document ids is dense-ish but not required to be contiguous.
type Did uint32

// Slot identifies a value slot within a document. BadSlot marks "no slot".
type Slot uint32

// BadSlot is the sentinel slot number, the largest value a Slot can hold.
// It never holds a real value.
const BadSlot Slot = ^Slot(0)

// MaxDid is the largest representable document id, used by the chunk
// updater as the effective upper bound on a chunk with no following
// neighbour.
const MaxDid Did = ^Did(0)

// ChunkSizeThreshold is the target maximum size, in bytes, of a single
// value chunk's serialized tag before the chunk writer splits it into two.
// A chunk may exceed this transiently while a single document's value is
// being appended; it is enforced at chunk-boundary decisions, not as a hard
// cap. It is a var, not a const, so a deployment's configuration can adjust
// it at startup before opening any Manager.
var ChunkSizeThreshold = 2000

// ValueStats holds the aggregate statistics tracked per slot: how many
// documents currently have a non-empty value in the slot, and the
// lexicographic bounds (as raw bytes) of those values.
type ValueStats struct {
	Freq       uint32
	LowerBound []byte
	UpperBound []byte
}

// Clone returns a deep copy, so callers can mutate the result without
// aliasing cache state.
func (s ValueStats) Clone() ValueStats {
	out := ValueStats{Freq: s.Freq}
	if s.LowerBound != nil {
		out.LowerBound = append([]byte(nil), s.LowerBound...)
	}
	if s.UpperBound != nil {
		out.UpperBound = append([]byte(nil), s.UpperBound...)
	}
	return out
}

// Empty reports whether the stats reflect a slot with no documents at all.
func (s ValueStats) Empty() bool {
	return s.Freq == 0
}
