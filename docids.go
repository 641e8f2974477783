package valuestore

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"
)

// docidBitmaps tracks, per slot, the set of docids that currently hold a
// live value in that slot. It is a supplementary index over the same data
// AddDocument/DeleteDocument already maintain via ValueStats.Freq: where
// Freq only counts how many documents populate a slot, a bitmap answers
// "which ones" without a full chunk scan.
type docidBitmaps struct {
	loaded map[Slot]*roaring.Bitmap
	dirty  map[Slot]bool
}

func newDocidBitmaps() *docidBitmaps {
	return &docidBitmaps{
		loaded: make(map[Slot]*roaring.Bitmap),
		dirty:  make(map[Slot]bool),
	}
}

func (b *docidBitmaps) get(m *Manager, slot Slot) (*roaring.Bitmap, error) {
	if bm, ok := b.loaded[slot]; ok {
		return bm, nil
	}
	bm := roaring.New()
	tag, found, err := m.postlist.GetExactEntry(ValueBitmapKey(slot))
	if err != nil {
		return nil, err
	}
	if found {
		if _, err := bm.ReadFrom(bytes.NewReader(tag)); err != nil {
			return nil, err
		}
	}
	b.loaded[slot] = bm
	return bm, nil
}

func (b *docidBitmaps) markPresent(m *Manager, slot Slot, did Did) error {
	bm, err := b.get(m, slot)
	if err != nil {
		return err
	}
	if !bm.CheckedAdd(uint32(did)) {
		return nil
	}
	b.dirty[slot] = true
	return nil
}

func (b *docidBitmaps) markAbsent(m *Manager, slot Slot, did Did) error {
	bm, err := b.get(m, slot)
	if err != nil {
		return err
	}
	if !bm.CheckedRemove(uint32(did)) {
		return nil
	}
	b.dirty[slot] = true
	return nil
}

// flush persists every bitmap touched since the last flush to the postlist
// table, deleting a slot's stored bitmap once it is empty.
func (b *docidBitmaps) flush(m *Manager) error {
	for slot := range b.dirty {
		bm := b.loaded[slot]
		if bm.IsEmpty() {
			if err := m.postlist.Del(ValueBitmapKey(slot)); err != nil {
				return err
			}
			continue
		}
		bm.RunOptimize()
		var buf bytes.Buffer
		if _, err := bm.WriteTo(&buf); err != nil {
			return err
		}
		if err := m.postlist.Add(ValueBitmapKey(slot), buf.Bytes()); err != nil {
			return err
		}
	}
	b.dirty = make(map[Slot]bool)
	return nil
}

// SlotDocids returns a snapshot of the docids currently holding a live
// value in slot. The returned bitmap is a clone; mutating it has no effect
// on the manager's state.
func (m *Manager) SlotDocids(slot Slot) (*roaring.Bitmap, error) {
	bm, err := m.bitmaps.get(m, slot)
	if err != nil {
		return nil, err
	}
	return bm.Clone(), nil
}
