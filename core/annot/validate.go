package annot

import (
	"fmt"

	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/core/timespan"
)

// CheckSpan runs the structural interval rules for a proposal: I1 plus the
// optional document duration bound (0 means unbounded).
func CheckSpan(span timespan.Span, durationMS int64) error {
	if err := span.ValidateWithin(durationMS); err != nil {
		return NewDegenerateInterval(span, err)
	}
	return nil
}

// ResolveParent locates the covering parent for a proposal on a dependent
// tier: the parent tier's annotations are scanned in store (insertion)
// order and the first whose span contains the proposal wins. The order is
// deliberate; it keeps validation a single O(n) scan with no secondary
// index, at the cost of an arbitrary-but-deterministic choice when several
// parents cover the proposal.
//
// On independent tiers the result is nil with no error.
func ResolveParent(t *tier.Tier, span timespan.Span, store *Store) (*Annotation, error) {
	if t.Kind != tier.Dependent {
		return nil, nil
	}
	for _, parent := range store.ByTier(t.ParentTier) {
		if covers(t.Constraint, parent.Span, span) {
			return parent, nil
		}
	}
	return nil, NewNoCoveringParent(t.Name, t.ParentTier, span)
}

// covers applies a constraint's containment rule. Both constraints test
// plain containment today; the switch stays so TimeSubdivision can grow an
// exact-tiling rule without touching callers.
func covers(c tier.Constraint, parent, child timespan.Span) bool {
	switch c {
	case tier.TimeSubdivision:
		return parent.Contains(child)
	case tier.IncludedIn:
		return parent.Contains(child)
	default:
		return false
	}
}

// ValidationError represents a document consistency problem with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// ValidateDocument checks a persisted document against a hierarchy and
// returns all consistency problems found. Loading does not run these
// checks (a saved document is trusted); this is the opt-in audit behind
// "doc validate".
func ValidateDocument(doc *Document, h *tier.Hierarchy) []error {
	var errs []error

	seen := make(map[string]string, 64) // id -> first tier seen on
	for _, name := range sortedTierNames(doc) {
		t, ok := h.ByName(name)
		if !ok {
			errs = append(errs, newValidationError(
				fmt.Sprintf("annotations[%s]", name), "tier is not configured"))
			continue
		}

		for i, a := range doc.Annotations[name] {
			path := fmt.Sprintf("annotations[%s][%d]", name, i)

			if a.ID == "" {
				errs = append(errs, newValidationError(path, "id is required"))
			} else if prev, dup := seen[a.ID]; dup {
				errs = append(errs, newValidationError(path,
					fmt.Sprintf("id %q already used on tier %q", a.ID, prev)))
			} else {
				seen[a.ID] = name
			}

			if a.Tier != name {
				errs = append(errs, newValidationError(path,
					fmt.Sprintf("tier field %q does not match group %q", a.Tier, name)))
			}

			if err := a.Span.Validate(); err != nil {
				errs = append(errs, newValidationError(path, err.Error()))
			}

			errs = append(errs, validateParentLink(doc, t, a, path)...)
		}
	}

	errs = append(errs, validateTimeSlots(doc)...)

	return errs
}

// validateParentLink checks the parent reference of one annotation against
// its tier kind: dependent annotations must name an existing parent whose
// span contains theirs, independent annotations must not carry one.
func validateParentLink(doc *Document, t *tier.Tier, a *Annotation, path string) []error {
	var errs []error

	if t.Kind != tier.Dependent {
		if a.ParentID != nil {
			errs = append(errs, newValidationError(path,
				"annotation on an independent tier cannot have a parent_id"))
		}
		return errs
	}

	if a.ParentID == nil {
		return append(errs, newValidationError(path,
			"annotation on a dependent tier needs a parent_id"))
	}

	parent := findInGroup(doc.Annotations[t.ParentTier], *a.ParentID)
	if parent == nil {
		return append(errs, newValidationError(path,
			fmt.Sprintf("parent_id %q not found on tier %q", *a.ParentID, t.ParentTier)))
	}
	if !parent.Span.Contains(a.Span) {
		errs = append(errs, newValidationError(path,
			fmt.Sprintf("interval %v escapes parent %s %v", a.Span, parent.ID, parent.Span)))
	}
	return errs
}

// validateTimeSlots recomputes the slot table and flags any divergence
// from the stored one.
func validateTimeSlots(doc *Document) []error {
	var errs []error

	want := TimeSlots(doc.Annotations)
	if len(doc.TimeSlots) != len(want) {
		errs = append(errs, newValidationError("time_slots",
			fmt.Sprintf("table has %d slots, annotations need %d", len(doc.TimeSlots), len(want))))
	}
	for slot, value := range want {
		got, ok := doc.TimeSlots[slot]
		if !ok {
			errs = append(errs, newValidationError("time_slots",
				fmt.Sprintf("missing slot %s (%dms)", slot, value)))
			continue
		}
		if got != value {
			errs = append(errs, newValidationError("time_slots",
				fmt.Sprintf("slot %s = %dms, want %dms", slot, got, value)))
		}
	}
	return errs
}

func findInGroup(group []*Annotation, id string) *Annotation {
	for _, a := range group {
		if a.ID == id {
			return a
		}
	}
	return nil
}
