package journal

import "testing"

func TestJournal_RecordAndDump_PreservesOrder(t *testing.T) {
	j := New(4)
	j.Record(Entry{Kind: Requested})
	j.Record(Entry{Kind: Granted})
	j.Record(Entry{Kind: Released})

	got := j.Dump()
	want := []Kind{Requested, Granted, Released}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("entry %d: expected %v, got %v", i, k, got[i].Kind)
		}
	}
	if j.Len() != 3 {
		t.Errorf("expected Len 3, got %d", j.Len())
	}
}

func TestJournal_EvictsOldestOnceFull(t *testing.T) {
	j := New(2)
	j.Record(Entry{Kind: Requested})
	j.Record(Entry{Kind: Granted})
	j.Record(Entry{Kind: Released})

	got := j.Dump()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries retained, got %d", len(got))
	}
	if got[0].Kind != Granted || got[1].Kind != Released {
		t.Errorf("expected [Granted Released] after eviction, got %v", got)
	}
	if j.Len() != 2 {
		t.Errorf("expected Len capped at capacity 2, got %d", j.Len())
	}
}

func TestJournal_ZeroCapacityDefaults(t *testing.T) {
	j := New(0)
	if j.capacity != 64 {
		t.Fatalf("expected a default capacity of 64, got %d", j.capacity)
	}
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		Requested:   "Requested",
		Granted:     "Granted",
		Denied:      "Denied",
		Released:    "Released",
		HolderLost:  "HolderLost",
		PeerAdded:   "PeerAdded",
		PeerRemoved: "PeerRemoved",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
