package engine

import "testing"

func TestMemTablePutGet(t *testing.T) {
	m := NewMemTable()
	m.Put([]byte("a"), []byte("1"), 1)
	m.Put([]byte("b"), []byte("2"), 2)

	e := m.Get([]byte("a"))
	if e == nil || string(e.Value) != "1" {
		t.Fatalf("Get(a): got %+v", e)
	}
	if m.Get([]byte("missing")) != nil {
		t.Fatalf("expected nil for missing key")
	}
}

func TestMemTablePutOverwrites(t *testing.T) {
	m := NewMemTable()
	m.Put([]byte("a"), []byte("1"), 1)
	m.Put([]byte("a"), []byte("2"), 2)

	e := m.Get([]byte("a"))
	if string(e.Value) != "2" {
		t.Fatalf("expected overwritten value, got %q", e.Value)
	}
}

func TestMemTableDeleteRecordsTombstone(t *testing.T) {
	m := NewMemTable()
	m.Put([]byte("a"), []byte("1"), 1)
	m.Delete([]byte("a"), 2)

	e := m.Get([]byte("a"))
	if e == nil || !e.Deleted {
		t.Fatalf("expected a tombstone entry, got %+v", e)
	}
}

func TestMemTableAscendOrdersByKey(t *testing.T) {
	m := NewMemTable()
	for _, k := range []string{"banana", "apple", "cherry", "date"} {
		m.Put([]byte(k), []byte(k), 1)
	}

	var order []string
	m.Ascend(func(e *Entry) bool {
		order = append(order, string(e.Key))
		return true
	})
	want := []string{"apple", "banana", "cherry", "date"}
	if len(order) != len(want) {
		t.Fatalf("got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestMemTableAscendStopsEarly(t *testing.T) {
	m := NewMemTable()
	for _, k := range []string{"a", "b", "c"} {
		m.Put([]byte(k), nil, 1)
	}
	count := 0
	m.Ascend(func(e *Entry) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Fatalf("expected ascend to stop after 2 entries, stopped after %d", count)
	}
}

func TestMemTableSizeTracksBytes(t *testing.T) {
	m := NewMemTable()
	if m.Size() != 0 {
		t.Fatalf("expected zero size for empty memtable")
	}
	m.Put([]byte("ab"), []byte("cde"), 1)
	if m.Size() != 5 {
		t.Fatalf("expected size 5, got %d", m.Size())
	}
	m.Delete([]byte("xy"), 2)
	if m.Size() != 7 {
		t.Fatalf("expected size 7 after tombstone, got %d", m.Size())
	}
}
