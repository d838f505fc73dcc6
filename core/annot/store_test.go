package annot

import (
	"errors"
	"testing"

	"github.com/tierline/tierline/core/timespan"
)

func ann(id, tierName string, start, end int64) *Annotation {
	return &Annotation{
		ID:   id,
		Tier: tierName,
		Span: timespan.New(start, end),
	}
}

func ids(list []*Annotation) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

func strp(s string) *string { return &s }

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStoreInsertGet(t *testing.T) {
	s := NewStore()
	if err := s.Insert(ann("a1", "utt", 0, 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, ok := s.Get("a1")
	if !ok {
		t.Fatal("Get(a1) not found")
	}
	if got.ID != "a1" || got.Tier != "utt" {
		t.Errorf("Get(a1) = %s on %s, want a1 on utt", got.ID, got.Tier)
	}
	if _, ok := s.Get("a2"); ok {
		t.Error("Get(a2) should not resolve")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStoreInsertDuplicate(t *testing.T) {
	s := NewStore()
	if err := s.Insert(ann("a1", "utt", 0, 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := s.Insert(ann("a1", "word", 0, 500))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d after rejected insert, want 1", s.Len())
	}
}

func TestStoreRemove(t *testing.T) {
	s := NewStore()
	for _, a := range []*Annotation{
		ann("a1", "utt", 0, 1000),
		ann("a2", "utt", 1000, 2000),
		ann("a3", "utt", 2000, 3000),
	} {
		if err := s.Insert(a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := s.Remove("a2"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if got := ids(s.ByTier("utt")); !equalStrings(got, []string{"a1", "a3"}) {
		t.Errorf("ByTier after remove = %v, want [a1 a3]", got)
	}
	if _, ok := s.Get("a2"); ok {
		t.Error("removed annotation still resolvable")
	}

	if err := s.Remove("a2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestStoreByTierOrders(t *testing.T) {
	s := NewStore()
	// Inserted out of time order on purpose.
	for _, a := range []*Annotation{
		ann("a1", "utt", 3000, 4000),
		ann("a2", "utt", 0, 1000),
		ann("a3", "utt", 1000, 2000),
	} {
		if err := s.Insert(a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if got := ids(s.ByTier("utt")); !equalStrings(got, []string{"a1", "a2", "a3"}) {
		t.Errorf("ByTier = %v, want insertion order [a1 a2 a3]", got)
	}
	if got := ids(s.ByTierSorted("utt")); !equalStrings(got, []string{"a2", "a3", "a1"}) {
		t.Errorf("ByTierSorted = %v, want time order [a2 a3 a1]", got)
	}
	if got := s.ByTier("gesture"); len(got) != 0 {
		t.Errorf("ByTier(gesture) = %v, want empty", ids(got))
	}
}

func TestStoreChildrenOf(t *testing.T) {
	s := NewStore()
	w1 := ann("w1", "word", 0, 1000)
	w1.ParentID = strp("u1")
	w2 := ann("w2", "word", 1000, 2000)
	w2.ParentID = strp("u1")
	w3 := ann("w3", "word", 2000, 3000)
	w3.ParentID = strp("u9")
	for _, a := range []*Annotation{ann("u1", "utt", 0, 5000), w1, w2, w3} {
		if err := s.Insert(a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if got := ids(s.ChildrenOf("word", "u1")); !equalStrings(got, []string{"w1", "w2"}) {
		t.Errorf("ChildrenOf(word, u1) = %v, want [w1 w2]", got)
	}
	if got := s.ChildrenOf("word", "u2"); len(got) != 0 {
		t.Errorf("ChildrenOf(word, u2) = %v, want empty", ids(got))
	}
	if got := s.ChildrenOf("utt", "u1"); len(got) != 0 {
		t.Errorf("ChildrenOf(utt, u1) = %v, want empty", ids(got))
	}
}
