package valuestore

import "testing"

func newTestManager() (*Manager, *memTable, *memTable) {
	postlist := newMemTable()
	termlist := newMemTable()
	return NewManager(postlist, termlist), postlist, termlist
}

func TestManagerAddAndGetValue(t *testing.T) {
	mgr, _, _ := newTestManager()
	doc := NewJSONDocument(1, map[Slot][]byte{0: []byte("hello"), 2: []byte("world")})

	valStats := make(map[Slot]ValueStats)
	if _, err := mgr.AddDocument(doc.Did(), doc, valStats); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := mgr.SetValueStats(valStats); err != nil {
		t.Fatalf("SetValueStats: %v", err)
	}
	if err := mgr.MergeChanges(); err != nil {
		t.Fatalf("MergeChanges: %v", err)
	}

	got, err := mgr.GetValue(1, 0)
	if err != nil || string(got) != "hello" {
		t.Fatalf("GetValue(1, 0): got %q, err %v", got, err)
	}
	got, err = mgr.GetValue(1, 2)
	if err != nil || string(got) != "world" {
		t.Fatalf("GetValue(1, 2): got %q, err %v", got, err)
	}
	if got, _ := mgr.GetValue(1, 1); got != nil {
		t.Fatalf("GetValue(1, 1): expected no value, got %q", got)
	}
}

func TestManagerGetValueBeforeMergeSeesPendingEdit(t *testing.T) {
	mgr, _, _ := newTestManager()
	mgr.AddValue(1, 0, []byte("pending"))

	got, err := mgr.GetValue(1, 0)
	if err != nil || string(got) != "pending" {
		t.Fatalf("GetValue before merge: got %q, err %v", got, err)
	}
}

func TestManagerDeleteDocument(t *testing.T) {
	mgr, _, _ := newTestManager()
	doc := NewJSONDocument(1, map[Slot][]byte{0: []byte("hello")})
	valStats := make(map[Slot]ValueStats)
	blob, err := mgr.AddDocument(doc.Did(), doc, valStats)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := mgr.termlist.Add(TermlistKey(1), blob); err != nil {
		t.Fatalf("writing termlist blob: %v", err)
	}
	if err := mgr.SetValueStats(valStats); err != nil {
		t.Fatalf("SetValueStats: %v", err)
	}
	if err := mgr.MergeChanges(); err != nil {
		t.Fatalf("MergeChanges: %v", err)
	}

	valStats = make(map[Slot]ValueStats)
	if err := mgr.DeleteDocument(1, valStats); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if err := mgr.SetValueStats(valStats); err != nil {
		t.Fatalf("SetValueStats: %v", err)
	}
	if err := mgr.MergeChanges(); err != nil {
		t.Fatalf("MergeChanges: %v", err)
	}

	if got, _ := mgr.GetValue(1, 0); got != nil {
		t.Fatalf("expected value removed, got %q", got)
	}
	stats, err := mgr.GetValueStats(0)
	if err != nil {
		t.Fatalf("GetValueStats: %v", err)
	}
	if !stats.Empty() {
		t.Fatalf("expected empty stats after deleting the only document, got %+v", stats)
	}
}

func TestManagerValueStatsBoundsTrackMinMax(t *testing.T) {
	mgr, _, _ := newTestManager()
	valStats := make(map[Slot]ValueStats)
	for did, v := range map[Did]string{1: "mango", 2: "apple", 3: "zebra"} {
		doc := NewJSONDocument(did, map[Slot][]byte{0: []byte(v)})
		if _, err := mgr.AddDocument(did, doc, valStats); err != nil {
			t.Fatalf("AddDocument(%d): %v", did, err)
		}
	}
	s := valStats[0]
	if s.Freq != 3 {
		t.Fatalf("expected freq 3, got %d", s.Freq)
	}
	if string(s.LowerBound) != "apple" {
		t.Fatalf("expected lower bound apple, got %q", s.LowerBound)
	}
	if string(s.UpperBound) != "zebra" {
		t.Fatalf("expected upper bound zebra, got %q", s.UpperBound)
	}
}

func TestManagerReplaceDocumentIsEquivalentToDeleteThenAdd(t *testing.T) {
	mgr, _, _ := newTestManager()
	valStats := make(map[Slot]ValueStats)
	original := NewJSONDocument(1, map[Slot][]byte{0: []byte("old")})
	if _, err := mgr.AddDocument(1, original, valStats); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := mgr.SetValueStats(valStats); err != nil {
		t.Fatalf("SetValueStats: %v", err)
	}
	if err := mgr.MergeChanges(); err != nil {
		t.Fatalf("MergeChanges: %v", err)
	}

	valStats = make(map[Slot]ValueStats)
	replacement := NewJSONDocument(1, map[Slot][]byte{0: []byte("new")})
	if _, err := mgr.ReplaceDocument(1, replacement, valStats); err != nil {
		t.Fatalf("ReplaceDocument: %v", err)
	}
	if err := mgr.SetValueStats(valStats); err != nil {
		t.Fatalf("SetValueStats: %v", err)
	}
	if err := mgr.MergeChanges(); err != nil {
		t.Fatalf("MergeChanges: %v", err)
	}

	got, err := mgr.GetValue(1, 0)
	if err != nil || string(got) != "new" {
		t.Fatalf("GetValue after replace: got %q, err %v", got, err)
	}
}

func TestManagerGetAllValuesRequiresTermlist(t *testing.T) {
	postlist := newMemTable()
	mgr := NewManager(postlist, nil)
	if _, err := mgr.GetAllValues(1); err == nil {
		t.Fatalf("expected an error when no termlist table is open")
	}
}

func TestManagerGetAllValues(t *testing.T) {
	mgr, _, _ := newTestManager()
	valStats := make(map[Slot]ValueStats)
	doc := NewJSONDocument(1, map[Slot][]byte{0: []byte("a"), 3: []byte("b")})
	blob, err := mgr.AddDocument(1, doc, valStats)
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := mgr.termlist.Add(TermlistKey(1), blob); err != nil {
		t.Fatalf("writing termlist blob: %v", err)
	}
	if err := mgr.SetValueStats(valStats); err != nil {
		t.Fatalf("SetValueStats: %v", err)
	}
	if err := mgr.MergeChanges(); err != nil {
		t.Fatalf("MergeChanges: %v", err)
	}

	values, err := mgr.GetAllValues(1)
	if err != nil {
		t.Fatalf("GetAllValues: %v", err)
	}
	if string(values[0]) != "a" || string(values[3]) != "b" {
		t.Fatalf("GetAllValues: got %v", values)
	}
}

func TestManagerObserverFiresOnAddAndDelete(t *testing.T) {
	mgr, _, _ := newTestManager()
	obs := &recordingObserver{}
	mgr.observer = obs

	valStats := make(map[Slot]ValueStats)
	doc := NewJSONDocument(1, map[Slot][]byte{0: []byte("x")})
	if _, err := mgr.AddDocument(1, doc, valStats); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := mgr.DeleteDocument(1, valStats); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if obs.addCalls != 1 || obs.deleteCalls != 1 {
		t.Fatalf("expected one add and one delete observation, got %+v", obs)
	}
}
