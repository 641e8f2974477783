package valuestore

import (
	"bytes"
	"fmt"
	"sort"
	"time"
)

// Materializer is an optional capability a Document can implement: when
// present, ReplaceDocument calls it before deleting the old document, so a
// document whose Value/Slots reads are backed by the very storage about to
// be deleted gets a chance to pull its values into memory first.
type Materializer interface {
	Materialize() error
}

// Manager is the value manager facade (component F): it buffers pending
// edits, serves point lookups that consult the buffer before the disk, and
// orchestrates the key encodings, chunk reader/updater, slot codec, and
// stats store during document add/delete/replace and during merge.
//
// A Manager is not safe for concurrent use; per the single-threaded
// cooperative model, all methods must be called from one goroutine at a
// time with no overlap.
type Manager struct {
	postlist Table
	termlist Table // may be nil, or IsOpen() == false

	changes map[Slot]map[Did][]byte // pending-change buffer
	slots   map[Did][]byte          // per-document encoded-slots scratch for this batch

	mruValid bool
	mruSlot  Slot
	mruStats ValueStats

	readCursor Cursor
	bitmaps    *docidBitmaps
	observer   MetricsObserver
}

// ManagerOption configures a Manager at construction.
type ManagerOption func(*Manager)

// WithMetricsObserver installs a MetricsObserver that receives instrumentation
// events from this Manager and every ChunkUpdater it drives during
// MergeChanges.
func WithMetricsObserver(obs MetricsObserver) ManagerOption {
	return func(m *Manager) { m.observer = obs }
}

// NewManager constructs a Manager over the given postlist table (value
// chunks and stats) and termlist table (per-document slot blobs). termlist
// may be nil if the caller has no termlist table open; operations that
// need it then report ErrFeatureUnavailable or ErrDatabaseClosed as
// appropriate.
func NewManager(postlist, termlist Table, opts ...ManagerOption) *Manager {
	m := &Manager{
		postlist: postlist,
		termlist: termlist,
		changes:  make(map[Slot]map[Did][]byte),
		slots:    make(map[Did][]byte),
		bitmaps:  newDocidBitmaps(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddValue upserts a pending edit for (did, slot). An empty value marks
// the pair for deletion; it takes effect only once MergeChanges runs.
func (m *Manager) AddValue(did Did, slot Slot, value []byte) {
	edits, ok := m.changes[slot]
	if !ok {
		edits = make(map[Did][]byte)
		m.changes[slot] = edits
	}
	if len(value) == 0 {
		edits[did] = []byte{}
	} else {
		edits[did] = append([]byte(nil), value...)
	}
}

// RemoveValue marks (did, slot) for deletion in the pending-change buffer.
func (m *Manager) RemoveValue(did Did, slot Slot) {
	m.AddValue(did, slot, nil)
}

// GetValue returns the value of (did, slot), consulting the pending-change
// buffer first and falling back to the on-disk chunk otherwise. A nil
// result (with no error) means the pair has no value.
func (m *Manager) GetValue(did Did, slot Slot) ([]byte, error) {
	if edits, ok := m.changes[slot]; ok {
		if v, pending := edits[did]; pending {
			if len(v) == 0 {
				return nil, nil
			}
			return v, nil
		}
	}

	firstDid, tag, err := m.getChunkContainingDid(slot, did)
	if err != nil {
		return nil, err
	}
	if firstDid == 0 {
		return nil, nil
	}
	reader, err := NewChunkReader(tag, firstDid)
	if err != nil {
		return nil, err
	}
	if err := reader.SkipTo(did); err != nil {
		return nil, err
	}
	if !reader.AtEnd() && reader.GetDocid() == did {
		return reader.GetValue(), nil
	}
	return nil, nil
}

// getChunkContainingDid finds the chunk (if any) whose docid range covers
// did, returning its first-did and tag, or (0, nil) if no such chunk
// exists.
func (m *Manager) getChunkContainingDid(slot Slot, did Did) (Did, []byte, error) {
	cur, err := m.cursor()
	if err != nil {
		return 0, nil, err
	}
	exact, err := cur.FindEntry(ValueChunkKey(slot, did))
	if err != nil {
		return 0, nil, err
	}
	if exact {
		if err := cur.ReadTag(); err != nil {
			return 0, nil, err
		}
		return did, cur.CurrentTag(), nil
	}
	if cur.AfterEnd() {
		return 0, nil, nil
	}
	firstDid, err := DocidFromKey(slot, cur.CurrentKey())
	if err != nil {
		return 0, nil, err
	}
	if firstDid == 0 {
		return 0, nil, nil
	}
	if err := cur.ReadTag(); err != nil {
		return 0, nil, err
	}
	return firstDid, cur.CurrentTag(), nil
}

func (m *Manager) cursor() (Cursor, error) {
	if m.readCursor != nil {
		return m.readCursor, nil
	}
	c, err := m.postlist.Cursor()
	if err != nil {
		return nil, err
	}
	m.readCursor = c
	return c, nil
}

// GetValueStats returns slot's aggregate stats, serving from the one-entry
// MRU cache when it already holds this slot.
func (m *Manager) GetValueStats(slot Slot) (ValueStats, error) {
	if m.mruValid && m.mruSlot == slot {
		return m.mruStats.Clone(), nil
	}
	m.mruValid = false
	s, err := GetValueStats(m.postlist, slot)
	if err != nil {
		return ValueStats{}, err
	}
	m.mruSlot = slot
	m.mruStats = s
	m.mruValid = true
	return s.Clone(), nil
}

// SetValueStats writes back a batch of per-slot stats and invalidates the
// MRU cache, since it may now hold a stale entry for one of the slots
// written.
func (m *Manager) SetValueStats(stats map[Slot]ValueStats) error {
	m.mruValid = false
	return SetValueStats(m.postlist, stats)
}

// AddDocument folds doc's (slot, value) pairs into valStats (loading any
// slot not already present in the map from disk) and into the
// pending-change buffer, then returns the variable-form encoded slot-set
// blob for the caller to persist to the termlist table, or nil if the
// termlist table is not open.
func (m *Manager) AddDocument(did Did, doc Document, valStats map[Slot]ValueStats) (blob []byte, err error) {
	if m.observer != nil {
		start := time.Now()
		defer func() { m.observer.OnAddDocument(time.Since(start), err) }()
	}

	slotList, err := doc.Slots()
	if err != nil {
		return nil, err
	}

	touched := make([]Slot, 0, len(slotList))
	for _, slot := range slotList {
		value, err := doc.Value(slot)
		if err != nil {
			return nil, err
		}
		if len(value) == 0 {
			continue
		}

		s, existed := valStats[slot]
		firstObservation := !existed
		if !existed {
			loaded, err := m.GetValueStats(slot)
			if err != nil {
				return nil, err
			}
			s = loaded
		}

		s.Freq++
		switch {
		case firstObservation:
			s.LowerBound = append([]byte(nil), value...)
			s.UpperBound = append([]byte(nil), value...)
		case bytes.Compare(value, s.UpperBound) > 0:
			s.UpperBound = append([]byte(nil), value...)
		case bytes.Compare(value, s.LowerBound) < 0:
			s.LowerBound = append([]byte(nil), value...)
		}
		valStats[slot] = s

		m.AddValue(did, slot, value)
		if err := m.bitmaps.markPresent(m, slot, did); err != nil {
			return nil, err
		}
		touched = append(touched, slot)
	}

	if m.termlist == nil || !m.termlist.IsOpen() {
		return nil, nil
	}

	if len(touched) == 0 {
		if _, had := m.slots[did]; had {
			m.slots[did] = []byte{}
			return []byte{}, nil
		}
	}

	blob = EncodeSlotBlob(touched)
	m.slots[did] = blob
	return blob, nil
}

// DeleteDocument removes did's contribution from every slot it previously
// populated, decrementing freq (and resetting bounds once freq reaches
// zero) and staging a removal edit for each. It looks up did's previously
// encoded slot-set blob first from this batch's scratch buffer, then from
// the termlist table; if neither has one, it returns silently, since the
// document had neither terms nor values.
func (m *Manager) DeleteDocument(did Did, valStats map[Slot]ValueStats) (err error) {
	if m.observer != nil {
		start := time.Now()
		defer func() { m.observer.OnDeleteDocument(time.Since(start), err) }()
	}

	var blob []byte
	if b, ok := m.slots[did]; ok {
		blob = b
	} else if m.termlist != nil && m.termlist.IsOpen() {
		tag, found, err := m.termlist.GetExactEntry(TermlistKey(did))
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		blob = tag
	} else {
		return nil
	}

	slotList, err := DecodeSlotBlob(blob)
	if err != nil {
		return err
	}
	for _, slot := range slotList {
		s, existed := valStats[slot]
		if !existed {
			loaded, err := m.GetValueStats(slot)
			if err != nil {
				return err
			}
			s = loaded
		}
		assertf(s.Freq > 0, "slot %d freq is zero before decrement for did %d", slot, did)
		s.Freq--
		if s.Freq == 0 {
			s.LowerBound = nil
			s.UpperBound = nil
		}
		valStats[slot] = s
		m.RemoveValue(did, slot)
		if err := m.bitmaps.markAbsent(m, slot, did); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceDocument replaces did's stored values with doc's, observationally
// equivalent to DeleteDocument followed by AddDocument, including when doc
// is the very document already stored under did.
func (m *Manager) ReplaceDocument(did Did, doc Document, valStats map[Slot]ValueStats) ([]byte, error) {
	if doc.Did() == did {
		if mz, ok := doc.(Materializer); ok {
			if err := mz.Materialize(); err != nil {
				return nil, err
			}
		}
	}
	if err := m.DeleteDocument(did, valStats); err != nil {
		return nil, err
	}
	return m.AddDocument(did, doc, valStats)
}

// MergeChanges drives a ChunkUpdater per slot in the pending-change
// buffer, applying that slot's edits in ascending docid order, then clears
// the buffer. It invalidates the cursor cache, since every slot's updater
// mutates the postlist table.
func (m *Manager) MergeChanges() (err error) {
	if m.observer != nil {
		start := time.Now()
		slots := len(m.changes)
		defer func() { m.observer.OnMergeChanges(time.Since(start), slots, err) }()
	}

	for slot, edits := range m.changes {
		dids := make([]Did, 0, len(edits))
		for did := range edits {
			dids = append(dids, did)
		}
		sort.Slice(dids, func(i, j int) bool { return dids[i] < dids[j] })

		var updaterOpts []ChunkUpdaterOption
		if m.observer != nil {
			updaterOpts = append(updaterOpts, WithChunkUpdaterObserver(m.observer))
		}
		updater, err := NewChunkUpdater(m.postlist, slot, updaterOpts...)
		if err != nil {
			return err
		}
		for _, did := range dids {
			if err := updater.Update(did, edits[did]); err != nil {
				return err
			}
		}
		if err := updater.Finish(); err != nil {
			return err
		}
	}
	if err := m.bitmaps.flush(m); err != nil {
		return err
	}
	m.changes = make(map[Slot]map[Did][]byte)
	m.slots = make(map[Did][]byte)
	m.readCursor = nil
	m.mruValid = false
	return nil
}

// GetAllValues returns every slot's value for did, requiring the termlist
// table to be open (ErrFeatureUnavailable if not, or ErrDatabaseClosed if
// the postlist table is not open either).
func (m *Manager) GetAllValues(did Did) (map[Slot][]byte, error) {
	if m.termlist == nil || !m.termlist.IsOpen() {
		if m.postlist == nil || !m.postlist.IsOpen() {
			return nil, fmt.Errorf("get all values for did %d: %w", did, ErrDatabaseClosed)
		}
		return nil, fmt.Errorf("get all values for did %d: %w", did, ErrFeatureUnavailable)
	}

	tag, found, err := m.termlist.GetExactEntry(TermlistKey(did))
	if err != nil {
		return nil, err
	}
	out := make(map[Slot][]byte)
	if !found {
		return out, nil
	}

	slotList, err := DecodeSlotBlob(tag)
	if err != nil {
		return nil, err
	}
	for _, slot := range slotList {
		v, err := m.GetValue(did, slot)
		if err != nil {
			return nil, err
		}
		out[slot] = v
	}
	return out, nil
}
