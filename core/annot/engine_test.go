package annot

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tierline/tierline/core/tier"
)

func testHierarchy(t *testing.T) *tier.Hierarchy {
	t.Helper()
	h, err := tier.NewHierarchy([]*tier.Tier{
		{
			Name: "utt",
			Kind: tier.Independent,
			Labels: []tier.Label{
				{Name: "speech", Color: "#4477aa"},
				{Name: "noise", Color: "#aa4444"},
			},
		},
		{Name: "word", Kind: tier.Dependent, ParentTier: "utt", Constraint: tier.IncludedIn},
		{Name: "phoneme", Kind: tier.Dependent, ParentTier: "word", Constraint: tier.TimeSubdivision},
	})
	if err != nil {
		t.Fatalf("NewHierarchy failed: %v", err)
	}
	return h
}

func mustCreate(t *testing.T, e *Engine, tierName string, start, end int64, label string) *Annotation {
	t.Helper()
	a, err := e.Create(tierName, start, end, label)
	if err != nil {
		t.Fatalf("Create(%s, %d, %d) failed: %v", tierName, start, end, err)
	}
	return a
}

func wantRemoved(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("removed %v, want %v", got, want)
	}
	set := make(map[string]bool, len(got))
	for _, id := range got {
		set[id] = true
	}
	for _, id := range want {
		if !set[id] {
			t.Errorf("removed set %v missing %s", got, id)
		}
	}
}

func TestCreateOnIndependentTier(t *testing.T) {
	e := NewEngine(testHierarchy(t))

	a, err := e.Create("utt", 0, 5000, "speech")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.ID == "" {
		t.Error("committed annotation has no id")
	}
	if a.Tier != "utt" {
		t.Errorf("Tier = %q, want utt", a.Tier)
	}
	if a.Start != 0 || a.End != 5000 {
		t.Errorf("bounds = [%d,%d), want [0,5000)", a.Start, a.End)
	}
	if a.ParentID != nil {
		t.Errorf("ParentID = %q, want nil on an independent tier", *a.ParentID)
	}
	if a.Color == nil || *a.Color != "#4477aa" {
		t.Errorf("Color = %v, want #4477aa copied from the vocabulary", a.Color)
	}
}

func TestCreateNested(t *testing.T) {
	e := NewEngine(testHierarchy(t))

	utt := mustCreate(t, e, "utt", 0, 5000, "Hello world")
	word, err := e.Create("word", 1000, 2000, "Hello")
	if err != nil {
		t.Fatalf("Create(word) failed: %v", err)
	}
	if word.ParentID == nil || *word.ParentID != utt.ID {
		t.Errorf("word.ParentID = %v, want %q", word.ParentID, utt.ID)
	}

	_, err = e.Create("word", 6000, 7000, "stranded")
	if !errors.Is(err, ErrNoCoveringParent) {
		t.Errorf("create outside parent: err = %v, want ErrNoCoveringParent", err)
	}
	if got := len(e.QueryTier("word")); got != 1 {
		t.Errorf("word tier has %d annotations after rejected create, want 1", got)
	}
}

func TestCreateUnknownTier(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	_, err := e.Create("gesture", 0, 1000, "wave")
	if !errors.Is(err, ErrUnknownTier) {
		t.Errorf("err = %v, want ErrUnknownTier", err)
	}
}

func TestCreateDegenerateInterval(t *testing.T) {
	e := NewEngine(testHierarchy(t))

	tests := []struct {
		name  string
		start int64
		end   int64
	}{
		{"negative start", -100, 1000},
		{"zero length", 1000, 1000},
		{"inverted", 2000, 1000},
		{"below minimum duration", 1000, 1049},
	}

	for _, tt := range tests {
		if _, err := e.Create("utt", tt.start, tt.end, "x"); !errors.Is(err, ErrDegenerateInterval) {
			t.Errorf("%s: err = %v, want ErrDegenerateInterval", tt.name, err)
		}
	}
	if e.Len() != 0 {
		t.Errorf("store has %d annotations after rejected creates, want 0", e.Len())
	}
}

func TestCreatePastDocumentEnd(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	e.SetDuration(10000)

	if _, err := e.Create("utt", 9000, 10001, "x"); !errors.Is(err, ErrDegenerateInterval) {
		t.Errorf("err = %v, want ErrDegenerateInterval", err)
	}
	if _, err := e.Create("utt", 9000, 10000, "x"); err != nil {
		t.Errorf("create ending exactly at the document end failed: %v", err)
	}
}

func TestCreateColorOnlyForKnownLabels(t *testing.T) {
	e := NewEngine(testHierarchy(t))

	a := mustCreate(t, e, "utt", 0, 5000, "freeform label")
	if a.Color != nil {
		t.Errorf("Color = %q, want nil for a label outside the vocabulary", *a.Color)
	}
}

func TestMoveWithinParent(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u := mustCreate(t, e, "utt", 0, 5000, "u")
	w := mustCreate(t, e, "word", 1000, 2000, "w")

	moved, err := e.Move(w.ID, 2500, 3500)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if moved.Start != 2500 || moved.End != 3500 {
		t.Errorf("bounds = [%d,%d), want [2500,3500)", moved.Start, moved.End)
	}
	if moved.ParentID == nil || *moved.ParentID != u.ID {
		t.Errorf("ParentID = %v, want %q", moved.ParentID, u.ID)
	}
}

func TestMoveRejectedLeavesStoreUnchanged(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	mustCreate(t, e, "utt", 0, 5000, "u")
	w := mustCreate(t, e, "word", 1000, 2000, "w")

	before, err := e.Serialize().ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	// The new bounds escape the only parent.
	if _, err := e.Move(w.ID, 1000, 6000); !errors.Is(err, ErrNoCoveringParent) {
		t.Fatalf("err = %v, want ErrNoCoveringParent", err)
	}

	after, err := e.Serialize().ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("store changed after a rejected move")
	}

	got, err := e.Annotation(w.ID)
	if err != nil {
		t.Fatalf("Annotation failed: %v", err)
	}
	if got.Start != 1000 || got.End != 2000 {
		t.Errorf("bounds = [%d,%d), want the original [1000,2000)", got.Start, got.End)
	}
}

func TestMoveDegenerateRejected(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u := mustCreate(t, e, "utt", 0, 5000, "u")

	if _, err := e.Move(u.ID, 3000, 3010); !errors.Is(err, ErrDegenerateInterval) {
		t.Errorf("err = %v, want ErrDegenerateInterval", err)
	}

	got, err := e.Annotation(u.ID)
	if err != nil {
		t.Fatalf("Annotation failed: %v", err)
	}
	if got.Start != 0 || got.End != 5000 {
		t.Errorf("bounds = [%d,%d), want the original [0,5000)", got.Start, got.End)
	}
}

func TestMoveReparents(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u1 := mustCreate(t, e, "utt", 0, 5000, "u1")
	u2 := mustCreate(t, e, "utt", 5000, 10000, "u2")
	w := mustCreate(t, e, "word", 1000, 2000, "w")

	if w.ParentID == nil || *w.ParentID != u1.ID {
		t.Fatalf("initial parent = %v, want %q", w.ParentID, u1.ID)
	}

	moved, err := e.Move(w.ID, 6000, 7000)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != u2.ID {
		t.Errorf("ParentID = %v, want %q after moving under the second parent", moved.ParentID, u2.ID)
	}
}

func TestMoveNotFound(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	if _, err := e.Move("a99", 0, 1000); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetValue(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u := mustCreate(t, e, "utt", 0, 5000, "u")

	updated, err := e.SetValue(u.ID, "hello world transcript")
	if err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if updated.Value != "hello world transcript" {
		t.Errorf("Value = %q", updated.Value)
	}
	if updated.Start != 0 || updated.End != 5000 {
		t.Errorf("bounds changed to [%d,%d)", updated.Start, updated.End)
	}

	if _, err := e.SetValue("a99", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u := mustCreate(t, e, "utt", 0, 5000, "u")
	w := mustCreate(t, e, "word", 1000, 2000, "w")

	removed, err := e.Delete(u.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	wantRemoved(t, removed, []string{u.ID, w.ID})
	if removed[0] != u.ID {
		t.Errorf("removed[0] = %s, want the target %s first", removed[0], u.ID)
	}

	if got := e.QueryTier("word"); len(got) != 0 {
		t.Errorf("word tier has %d annotations after cascade, want 0", len(got))
	}
	if e.Len() != 0 {
		t.Errorf("store has %d annotations, want 0", e.Len())
	}
}

func TestDeleteTransitiveClosure(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u1 := mustCreate(t, e, "utt", 0, 5000, "u1")
	u2 := mustCreate(t, e, "utt", 5000, 10000, "u2")
	w1 := mustCreate(t, e, "word", 1000, 3000, "w1")
	w2 := mustCreate(t, e, "word", 6000, 7000, "w2")
	p1 := mustCreate(t, e, "phoneme", 1000, 2000, "p1")
	p2 := mustCreate(t, e, "phoneme", 2000, 3000, "p2")

	removed, err := e.Delete(u1.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	wantRemoved(t, removed, []string{u1.ID, w1.ID, p1.ID, p2.ID})

	// The other branch is untouched.
	for _, id := range []string{u2.ID, w2.ID} {
		if _, err := e.Annotation(id); err != nil {
			t.Errorf("annotation %s should survive the cascade: %v", id, err)
		}
	}
}

func TestDeleteLeaf(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u := mustCreate(t, e, "utt", 0, 5000, "u")
	w := mustCreate(t, e, "word", 1000, 2000, "w")

	removed, err := e.Delete(w.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	wantRemoved(t, removed, []string{w.ID})

	if _, err := e.Annotation(u.ID); err != nil {
		t.Errorf("parent should survive a leaf delete: %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	if _, err := e.Delete("a99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryTierReturnsCopies(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	u := mustCreate(t, e, "utt", 0, 5000, "u")

	list := e.QueryTier("utt")
	list[0].Start = 999
	list[0].Label = "mutated"

	again, err := e.Annotation(u.ID)
	if err != nil {
		t.Fatalf("Annotation failed: %v", err)
	}
	if again.Start != 0 || again.Label != "u" {
		t.Error("mutating a query result leaked into the store")
	}
}

func TestQueryTierUnknown(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	if got := e.QueryTier("gesture"); len(got) != 0 {
		t.Errorf("QueryTier(gesture) returned %d annotations, want 0", len(got))
	}
}

func TestQueryTierSorted(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	mustCreate(t, e, "utt", 3000, 4000, "late")
	mustCreate(t, e, "utt", 0, 1000, "early")

	sorted := e.QueryTierSorted("utt")
	if len(sorted) != 2 || sorted[0].Label != "early" || sorted[1].Label != "late" {
		t.Errorf("QueryTierSorted order wrong: %v %v", sorted[0].Label, sorted[1].Label)
	}

	// Insertion order is preserved by the plain query.
	plain := e.QueryTier("utt")
	if plain[0].Label != "late" {
		t.Errorf("QueryTier order changed: first is %q, want %q", plain[0].Label, "late")
	}
}

func TestIDsNeverReused(t *testing.T) {
	e := NewEngine(testHierarchy(t))

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		a := mustCreate(t, e, "utt", int64(i*1000), int64(i*1000+500), "u")
		if seen[a.ID] {
			t.Fatalf("id %s handed out twice", a.ID)
		}
		seen[a.ID] = true
		if _, err := e.Delete(a.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	}
}
