package handler

import (
	"testing"

	"github.com/deepnoodle-ai/effectvm/value"
)

func TestStoreGetPutDefaults(t *testing.T) {
	s := NewStore()
	if got := s.Get("missing"); got != value.Nil {
		t.Fatalf("Get on missing key = %v, want value.Nil", got)
	}
	old := s.Put("k", value.NewInt(1))
	if old != value.Nil {
		t.Fatalf("first Put's returned old value = %v, want value.Nil", old)
	}
	old = s.Put("k", value.NewInt(2))
	if !old.Equals(value.NewInt(1)) {
		t.Fatalf("second Put's returned old value = %v, want 1", old)
	}
	if got := s.Get("k"); !got.Equals(value.NewInt(2)) {
		t.Fatalf("Get after Put = %v, want 2", got)
	}
}

func TestStoreSnapshotIsolatesStateButSharesLog(t *testing.T) {
	parent := NewStore()
	parent.Put("x", value.NewInt(1))
	parent.Tell(value.NewString("parent-1"))

	child := parent.Snapshot()
	child.Put("x", value.NewInt(2))
	child.Tell(value.NewString("child-1"))

	if got := parent.Get("x"); !got.Equals(value.NewInt(1)) {
		t.Fatalf("child's Put leaked into parent state: parent.Get(x) = %v", got)
	}
	if got := child.Get("x"); !got.Equals(value.NewInt(2)) {
		t.Fatalf("child.Get(x) = %v, want 2", got)
	}

	startLen := len(parent.Log)
	parent.MergeLogs(child, startLen)
	if len(parent.Log) != startLen+1 {
		t.Fatalf("parent log after merge has %d entries, want %d", len(parent.Log), startLen+1)
	}
	if !parent.Log[len(parent.Log)-1].Equals(value.NewString("child-1")) {
		t.Fatalf("merged log entry = %v, want child-1", parent.Log[len(parent.Log)-1])
	}
}

func TestStoreAsk(t *testing.T) {
	s := NewStore()
	s.Env["name"] = value.NewString("effectvm")
	if got := s.Ask("name"); !got.Equals(value.NewString("effectvm")) {
		t.Fatalf("Ask(name) = %v, want effectvm", got)
	}
	if got := s.Ask("missing"); got != value.Nil {
		t.Fatalf("Ask on missing key = %v, want value.Nil", got)
	}
}
