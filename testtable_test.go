package valuestore

import "sort"

// memTable is a minimal in-memory Table used by this package's tests: an
// ordered map good enough to exercise floor-seek Cursor semantics without
// needing a real on-disk engine.
type memTable struct {
	entries map[string][]byte
	open    bool
}

func newMemTable() *memTable {
	return &memTable{entries: make(map[string][]byte), open: true}
}

func (t *memTable) Add(key, tag []byte) error {
	t.entries[string(key)] = append([]byte(nil), tag...)
	return nil
}

func (t *memTable) Del(key []byte) error {
	delete(t.entries, string(key))
	return nil
}

func (t *memTable) GetExactEntry(key []byte) ([]byte, bool, error) {
	v, ok := t.entries[string(key)]
	return v, ok, nil
}

func (t *memTable) IsOpen() bool { return t.open }

func (t *memTable) Cursor() (Cursor, error) {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &memCursor{table: t, keys: keys, pos: -1}, nil
}

type memCursor struct {
	table *memTable
	keys  []string
	pos   int
	tag   []byte
}

func (c *memCursor) FindEntry(key []byte) (bool, error) {
	target := string(key)
	i := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= target })
	if i < len(c.keys) && c.keys[i] == target {
		c.pos = i
		return true, c.ReadTag()
	}
	c.pos = i - 1
	if c.pos >= 0 {
		return false, c.ReadTag()
	}
	return false, nil
}

func (c *memCursor) CurrentKey() []byte {
	return []byte(c.keys[c.pos])
}

func (c *memCursor) ReadTag() error {
	if c.AfterEnd() {
		return nil
	}
	c.tag = c.table.entries[c.keys[c.pos]]
	return nil
}

func (c *memCursor) CurrentTag() []byte {
	return c.tag
}

func (c *memCursor) Next() (bool, error) {
	c.pos++
	if c.AfterEnd() {
		return false, nil
	}
	return true, c.ReadTag()
}

func (c *memCursor) AfterEnd() bool {
	return c.pos < 0 || c.pos >= len(c.keys)
}

var _ Table = (*memTable)(nil)
var _ Cursor = (*memCursor)(nil)
