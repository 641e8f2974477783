package engine

import (
	"github.com/oarkflow/valuestore"
)

// Table adapts a shared Engine into a valuestore.Table over one namespace
// of it, identified by a single-byte prefix. This lets one physical engine
// (one WAL, one set of segments) back both the postlist and termlist
// tables the valuestore package expects as distinct collaborators.
type Table struct {
	engine *Engine
	prefix byte
}

// NewTable returns a Table restricted to keys under prefix.
func NewTable(e *Engine, prefix byte) *Table {
	return &Table{engine: e, prefix: prefix}
}

func (t *Table) namespaced(key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = t.prefix
	copy(out[1:], key)
	return out
}

// Add stores value under key.
func (t *Table) Add(key, value []byte) error {
	return t.engine.Put(t.namespaced(key), value)
}

// Del removes key, if present.
func (t *Table) Del(key []byte) error {
	return t.engine.Delete(t.namespaced(key))
}

// GetExactEntry returns the value for key, or (nil, false) if absent.
func (t *Table) GetExactEntry(key []byte) ([]byte, bool, error) {
	return t.engine.Get(t.namespaced(key))
}

// IsOpen reports whether the underlying engine is open.
func (t *Table) IsOpen() bool {
	return t.engine.IsOpen()
}

// Cursor returns a cursor over this table's namespace, snapshotting the
// current set of live keys under the prefix at call time.
func (t *Table) Cursor() (valuestore.Cursor, error) {
	if !t.engine.IsOpen() {
		return nil, ErrClosed
	}

	var keys [][]byte
	err := t.engine.Ascend(func(key, _ []byte) bool {
		if len(key) > 0 && key[0] == t.prefix {
			keys = append(keys, append([]byte(nil), key[1:]...))
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return &Cursor{table: t, keys: keys, pos: -1}, nil
}
