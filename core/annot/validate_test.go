package annot

import (
	"errors"
	"strings"
	"testing"

	"github.com/tierline/tierline/core/timespan"
)

func TestCheckSpan(t *testing.T) {
	if err := CheckSpan(timespan.New(0, 1000), 0); err != nil {
		t.Errorf("valid span rejected: %v", err)
	}
	if err := CheckSpan(timespan.New(10, 10), 0); !errors.Is(err, ErrDegenerateInterval) {
		t.Errorf("err = %v, want ErrDegenerateInterval", err)
	}
	if err := CheckSpan(timespan.New(0, 2000), 1500); !errors.Is(err, ErrDegenerateInterval) {
		t.Errorf("bounded err = %v, want ErrDegenerateInterval", err)
	}
}

func TestResolveParentFirstMatchInStoreOrder(t *testing.T) {
	h := testHierarchy(t)
	wordTier, _ := h.ByName("word")

	s := NewStore()
	// Both parents cover the proposal. The one starting later was
	// inserted first, so it must win: resolution follows store order,
	// not time order.
	for _, a := range []*Annotation{
		ann("u1", "utt", 500, 6000),
		ann("u2", "utt", 0, 5000),
	} {
		if err := s.Insert(a); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := ResolveParent(wordTier, timespan.New(1000, 2000), s)
	if err != nil {
		t.Fatalf("ResolveParent failed: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("resolved parent = %s, want u1 (first in insertion order)", got.ID)
	}
}

func TestResolveParentIndependent(t *testing.T) {
	h := testHierarchy(t)
	uttTier, _ := h.ByName("utt")

	got, err := ResolveParent(uttTier, timespan.New(0, 1000), NewStore())
	if err != nil {
		t.Fatalf("ResolveParent failed: %v", err)
	}
	if got != nil {
		t.Errorf("independent tier resolved parent %s, want nil", got.ID)
	}
}

func TestResolveParentNone(t *testing.T) {
	h := testHierarchy(t)
	wordTier, _ := h.ByName("word")

	s := NewStore()
	if err := s.Insert(ann("u1", "utt", 0, 5000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Straddles the parent's end boundary.
	_, err := ResolveParent(wordTier, timespan.New(4000, 5500), s)
	if !errors.Is(err, ErrNoCoveringParent) {
		t.Errorf("err = %v, want ErrNoCoveringParent", err)
	}

	// Exactly the parent's bounds is covered.
	got, err := ResolveParent(wordTier, timespan.New(0, 5000), s)
	if err != nil {
		t.Fatalf("ResolveParent(exact bounds) failed: %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("resolved parent = %s, want u1", got.ID)
	}
}

func TestValidateDocumentClean(t *testing.T) {
	e := NewEngine(testHierarchy(t))
	mustCreate(t, e, "utt", 0, 5000, "u")
	mustCreate(t, e, "word", 1000, 2000, "w")

	if errs := ValidateDocument(e.Serialize(), e.Hierarchy()); len(errs) != 0 {
		t.Errorf("clean document has %d validation errors: %v", len(errs), errs)
	}
}

func TestValidateDocumentProblems(t *testing.T) {
	h := testHierarchy(t)

	doc := &Document{
		Annotations: map[string][]*Annotation{
			"utt": {
				{ID: "u1", Tier: "utt", Span: timespan.New(0, 5000), Label: "u"},
				{ID: "u1", Tier: "utt", Span: timespan.New(0, 40), Label: "dup"},
			},
			"word": {
				{ID: "w1", Tier: "word", Span: timespan.New(4000, 6000), Label: "w", ParentID: strp("u1")},
				{ID: "w2", Tier: "word", Span: timespan.New(0, 1000), Label: "w"},
			},
			"gesture": {
				{ID: "g1", Tier: "gesture", Span: timespan.New(0, 1000), Label: "g"},
			},
		},
		TimeSlots: map[string]int64{"ts1": 0},
	}

	errs := ValidateDocument(doc, h)
	if len(errs) == 0 {
		t.Fatal("corrupt document produced no validation errors")
	}

	// Expected, in order of appearance above: the duplicate id, the
	// sub-minimum duration, the broken containment, the missing parent
	// link, the unconfigured tier, and the stale slot table.
	joined := joinErrors(errs)
	for _, want := range []string{
		"already used",
		"below the 50ms",
		"escapes parent",
		"needs a parent_id",
		"not configured",
		"time_slots",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("validation errors missing %q:\n%s", want, joined)
		}
	}
}

func TestValidateDocumentParentIDOnIndependent(t *testing.T) {
	h := testHierarchy(t)

	doc := &Document{
		Annotations: map[string][]*Annotation{
			"utt": {
				{ID: "u1", Tier: "utt", Span: timespan.New(0, 5000), Label: "u", ParentID: strp("u0")},
			},
		},
		TimeSlots: map[string]int64{"ts1": 0, "ts2": 5000},
	}

	joined := joinErrors(ValidateDocument(doc, h))
	if !strings.Contains(joined, "independent tier cannot have a parent_id") {
		t.Errorf("validation errors missing the stray parent link:\n%s", joined)
	}
}

func joinErrors(errs []error) string {
	var sb strings.Builder
	for _, err := range errs {
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}
