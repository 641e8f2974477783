package engine

import (
	"bytes"

	"github.com/oarkflow/valuestore"
)

// Cursor is a valuestore.Cursor over the sorted keys of one Table
// namespace as of the moment it was created. It implements the floor
// FindEntry contract that ChunkUpdater and Manager rely on: a non-exact
// find lands on the greatest key strictly less than the target, or leaves
// the cursor "before the beginning" (AfterEnd true) if no such key exists,
// from which the next Next() recovers the smallest key in the table.
type Cursor struct {
	table *Table
	keys  [][]byte
	pos   int // -1 means "before the beginning"; len(keys) means "past the end"
	tag   []byte
}

// FindEntry implements valuestore.Cursor.
func (c *Cursor) FindEntry(key []byte) (bool, error) {
	// index of the first key >= target
	lo, hi := 0, len(c.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if bytes.Compare(c.keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	exact := lo < len(c.keys) && bytes.Equal(c.keys[lo], key)
	if exact {
		c.pos = lo
	} else {
		// floor: the greatest key strictly less than target is at lo-1
		c.pos = lo - 1
	}
	c.tag = nil
	if !c.AfterEnd() {
		if err := c.ReadTag(); err != nil {
			return false, err
		}
	}
	return exact, nil
}

// CurrentKey implements valuestore.Cursor.
func (c *Cursor) CurrentKey() []byte {
	if c.AfterEnd() {
		return nil
	}
	return c.keys[c.pos]
}

// ReadTag implements valuestore.Cursor.
func (c *Cursor) ReadTag() error {
	if c.AfterEnd() {
		return valuestore.ErrRange
	}
	if c.tag == nil {
		value, ok, err := c.table.GetExactEntry(c.keys[c.pos])
		if err != nil {
			return err
		}
		if !ok {
			return valuestore.ErrNotFound
		}
		c.tag = value
	}
	return nil
}

// CurrentTag implements valuestore.Cursor.
func (c *Cursor) CurrentTag() []byte {
	return c.tag
}

// Next implements valuestore.Cursor. Called from "before the beginning"
// (pos == -1) it advances to the smallest key, if any.
func (c *Cursor) Next() (bool, error) {
	if c.pos < len(c.keys) {
		c.pos++
	}
	c.tag = nil
	if c.AfterEnd() {
		return false, nil
	}
	if err := c.ReadTag(); err != nil {
		return false, err
	}
	return true, nil
}

// AfterEnd implements valuestore.Cursor.
func (c *Cursor) AfterEnd() bool {
	return c.pos < 0 || c.pos >= len(c.keys)
}
