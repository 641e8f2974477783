package engine

import "testing"

func TestTableIsNamespacedByPrefix(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	a := NewTable(e, 0x01)
	b := NewTable(e, 0x02)

	if err := a.Add([]byte("k"), []byte("from-a")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Add([]byte("k"), []byte("from-b")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	va, ok, err := a.GetExactEntry([]byte("k"))
	if err != nil || !ok || string(va) != "from-a" {
		t.Fatalf("a.GetExactEntry: got %q, %v, %v", va, ok, err)
	}
	vb, ok, err := b.GetExactEntry([]byte("k"))
	if err != nil || !ok || string(vb) != "from-b" {
		t.Fatalf("b.GetExactEntry: got %q, %v, %v", vb, ok, err)
	}
}

func TestTableDel(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	tbl := NewTable(e, 0x01)
	if err := tbl.Add([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := tbl.Del([]byte("k")); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := tbl.GetExactEntry([]byte("k")); ok {
		t.Fatalf("expected key removed after Del")
	}
}

func TestCursorFindEntryExactMatch(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	tbl := NewTable(e, 0x01)
	for _, kv := range [][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}} {
		if err := tbl.Add([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	cur, err := tbl.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	exact, err := cur.FindEntry([]byte("c"))
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if !exact {
		t.Fatalf("expected an exact match for c")
	}
	if err := cur.ReadTag(); err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if string(cur.CurrentTag()) != "3" {
		t.Fatalf("CurrentTag: got %q", cur.CurrentTag())
	}
}

func TestCursorFindEntryFloorSemantics(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	tbl := NewTable(e, 0x01)
	for _, kv := range [][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}} {
		if err := tbl.Add([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	cur, err := tbl.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	exact, err := cur.FindEntry([]byte("d"))
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if exact {
		t.Fatalf("expected no exact match for d")
	}
	if string(cur.CurrentKey()) != "c" {
		t.Fatalf("expected floor to land on c, got %q", cur.CurrentKey())
	}
}

func TestCursorFindEntryBeforeFirstKey(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	tbl := NewTable(e, 0x01)
	if err := tbl.Add([]byte("m"), []byte("1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cur, err := tbl.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	exact, err := cur.FindEntry([]byte("a"))
	if err != nil {
		t.Fatalf("FindEntry: %v", err)
	}
	if exact {
		t.Fatalf("expected no exact match")
	}
	if !cur.AfterEnd() {
		t.Fatalf("expected AfterEnd (before-the-beginning) when no floor key exists")
	}

	ok, err := cur.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok || string(cur.CurrentKey()) != "m" {
		t.Fatalf("expected Next to recover the smallest key, got %q, %v", cur.CurrentKey(), ok)
	}
}

func TestCursorNextIteratesAllKeys(t *testing.T) {
	e := openTestEngine(t, t.TempDir())
	defer e.Close()

	tbl := NewTable(e, 0x01)
	for _, k := range []string{"a", "b", "c"} {
		if err := tbl.Add([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	cur, err := tbl.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	var got []string
	for {
		ok, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(cur.CurrentKey()))
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("Next iteration: got %v", got)
	}
}
