package valuestore

import "github.com/oarkflow/valuestore/internal/varint"

// ChunkUpdater merges a stream of edits for one slot into that slot's
// existing chunks, preserving the chunk-size invariant and first-did
// identity. One instance is scoped to one slot within one merge_changes
// call; Finish must be called exactly once when the caller is done feeding
// it edits — it is the load-bearing step that flushes the last chunk, the
// explicit stand-in for the original implementation's destructor.
type ChunkUpdater struct {
	table  Table
	slot   Slot
	cursor Cursor

	reader   *ChunkReader
	ctag     []byte
	firstDid Did // first-did of the input chunk still owed a delete, 0 if none

	tag         []byte
	newFirstDid Did
	prevDid     Did

	lastAllowedDid Did
	finished       bool

	observer MetricsObserver
}

// ChunkUpdaterOption configures a ChunkUpdater at construction.
type ChunkUpdaterOption func(*ChunkUpdater)

// WithChunkUpdaterObserver installs a MetricsObserver that receives
// OnChunkSplit events as this updater writes chunks mid-stream.
func WithChunkUpdaterObserver(obs MetricsObserver) ChunkUpdaterOption {
	return func(u *ChunkUpdater) { u.observer = obs }
}

// NewChunkUpdater constructs an updater for slot over table. table must be
// open; the caller is expected to feed it strictly increasing docids via
// Update and finish with Finish.
func NewChunkUpdater(table Table, slot Slot, opts ...ChunkUpdaterOption) (*ChunkUpdater, error) {
	cursor, err := table.Cursor()
	if err != nil {
		return nil, err
	}
	u := &ChunkUpdater{table: table, slot: slot, cursor: cursor}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// Update applies one edit. did values passed across the updater's lifetime
// must be strictly increasing; value empty means delete the (did, slot)
// pair.
func (u *ChunkUpdater) Update(did Did, value []byte) error {
	if u.lastAllowedDid != 0 && did > u.lastAllowedDid {
		if err := u.drainReader(); err != nil {
			return err
		}
		if err := u.writeTag(); err != nil {
			return err
		}
		u.lastAllowedDid = 0
	}

	if u.lastAllowedDid == 0 {
		if err := u.openChunkFor(did); err != nil {
			return err
		}
	}

	for !u.reader.AtEnd() && u.reader.GetDocid() < did {
		if err := u.appendToStream(u.reader.GetDocid(), u.reader.GetValue()); err != nil {
			return err
		}
		if err := u.reader.Next(); err != nil {
			return err
		}
	}

	if !u.reader.AtEnd() && u.reader.GetDocid() == did {
		if err := u.reader.Next(); err != nil {
			return err
		}
	}

	if len(value) > 0 {
		if err := u.appendToStream(did, value); err != nil {
			return err
		}
	}
	return nil
}

// Finish drains any remaining reader entries into the output and writes
// the final chunk. It must be called exactly once, after the last Update.
// Callers must propagate its error: a dropped error here silently loses
// the last chunk's write.
func (u *ChunkUpdater) Finish() error {
	if u.finished {
		return nil
	}
	u.finished = true
	if u.reader == nil {
		// No Update call ever ran; nothing was opened, nothing to flush.
		return nil
	}
	if err := u.drainReader(); err != nil {
		return err
	}
	return u.writeTag()
}

func (u *ChunkUpdater) drainReader() error {
	for !u.reader.AtEnd() {
		if err := u.appendToStream(u.reader.GetDocid(), u.reader.GetValue()); err != nil {
			return err
		}
		if err := u.reader.Next(); err != nil {
			return err
		}
	}
	return nil
}

// openChunkFor locates the chunk that would contain did (its floor by
// first-did), opens a reader over it (or an empty, already-exhausted
// reader if none exists), and determines last_allowed_did from whichever
// chunk follows.
func (u *ChunkUpdater) openChunkFor(did Did) error {
	key := ValueChunkKey(u.slot, did)
	exact, err := u.cursor.FindEntry(key)
	if err != nil {
		return err
	}

	opened := false
	if exact {
		u.firstDid = did
		opened = true
	} else if !u.cursor.AfterEnd() {
		prevDid, err := DocidFromKey(u.slot, u.cursor.CurrentKey())
		if err != nil {
			return err
		}
		if prevDid != 0 {
			u.firstDid = prevDid
			opened = true
		}
	}

	if opened {
		if err := u.cursor.ReadTag(); err != nil {
			return err
		}
		u.ctag = append([]byte(nil), u.cursor.CurrentTag()...)
	} else {
		u.firstDid = 0
		u.ctag = nil
	}

	reader, err := NewChunkReader(u.ctag, u.firstDid)
	if err != nil {
		return err
	}
	u.reader = reader

	hasNext, err := u.cursor.Next()
	if err != nil {
		return err
	}
	u.lastAllowedDid = MaxDid
	if hasNext {
		if slot, _, ok := decodeChunkKeySlot(u.cursor.CurrentKey()); ok && slot == u.slot {
			nextFirstDid, err := DocidFromKey(u.slot, u.cursor.CurrentKey())
			if err != nil {
				return err
			}
			if nextFirstDid != 0 {
				u.lastAllowedDid = nextFirstDid - 1
			}
		}
	}
	return nil
}

// appendToStream appends one (did, value) pair to the output chunk being
// built. The first append of a fresh output chunk records new_first_did
// with no delta; later ones assert strict increase and delta-code biased
// by one. Crossing the size threshold forces an immediate write.
func (u *ChunkUpdater) appendToStream(did Did, value []byte) error {
	if len(u.tag) == 0 {
		u.newFirstDid = did
	} else {
		assertf(did > u.prevDid, "docid %d did not strictly increase past %d", did, u.prevDid)
		u.tag = varint.PackUint(u.tag, uint64(did-u.prevDid-1))
	}
	u.tag = varint.PackString(u.tag, value)
	u.prevDid = did

	if len(u.tag) >= ChunkSizeThreshold {
		if err := u.writeTag(); err != nil {
			return err
		}
		if u.observer != nil {
			u.observer.OnChunkSplit(u.slot)
		}
		return nil
	}
	return nil
}

// writeTag flushes the output chunk built so far: it deletes the old key
// for the input chunk being replaced (once, the first time a write
// happens for it), inserts the new key if the output is non-empty, and
// resets the output state so a following append starts a fresh chunk.
func (u *ChunkUpdater) writeTag() error {
	if u.firstDid != 0 {
		if err := u.table.Del(ValueChunkKey(u.slot, u.firstDid)); err != nil {
			return err
		}
		u.firstDid = 0
	}
	if len(u.tag) != 0 {
		if err := u.table.Add(ValueChunkKey(u.slot, u.newFirstDid), u.tag); err != nil {
			return err
		}
	}
	u.tag = nil
	u.prevDid = 0
	return nil
}
