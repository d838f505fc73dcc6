// Package tier defines the tier hierarchy of a document: named annotation
// tracks, their parent/child relationships, and the nesting constraints
// dependent tiers enforce. The hierarchy is resolved once at construction
// and never mutated at runtime.
package tier

import (
	"fmt"
)

// Kind distinguishes top-level tiers from tiers that nest under a parent.
type Kind string

// Tier kind constants.
const (
	Independent Kind = "INDEPENDENT"
	Dependent   Kind = "DEPENDENT"
)

// validKinds is the set of valid tier kinds.
var validKinds = map[Kind]bool{
	Independent: true,
	Dependent:   true,
}

// IsValid returns true if the tier kind is valid.
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// Constraint names the nesting rule a dependent tier enforces against its
// parent tier.
type Constraint string

// Constraint constants. Both constraints run the same containment test
// today. They stay distinct values so a stricter rule for TimeSubdivision
// (exact tiling of the parent interval) has a place to land; do not
// collapse them.
const (
	TimeSubdivision Constraint = "TIME_SUBDIVISION"
	IncludedIn      Constraint = "INCLUDED_IN"
)

// validConstraints is the set of valid constraints.
var validConstraints = map[Constraint]bool{
	TimeSubdivision: true,
	IncludedIn:      true,
}

// IsValid returns true if the constraint is valid.
func (c Constraint) IsValid() bool {
	return validConstraints[c]
}

// Label is one entry of a tier's controlled vocabulary: the label text and
// the display color annotations created with it receive.
type Label struct {
	// Name is the label text.
	Name string `json:"name"`

	// Color is the display hint (e.g. "#ff8800"), copied onto annotations
	// at creation time.
	Color string `json:"color,omitempty"`
}

// Tier is one named annotation track.
type Tier struct {
	// Name is the unique tier name within the hierarchy.
	Name string `json:"name"`

	// Kind is INDEPENDENT or DEPENDENT.
	Kind Kind `json:"kind"`

	// ParentTier names the tier this one nests under. Set iff Kind is
	// DEPENDENT.
	ParentTier string `json:"parent,omitempty"`

	// Constraint is the nesting rule against ParentTier. Set iff Kind is
	// DEPENDENT.
	Constraint Constraint `json:"constraint,omitempty"`

	// Labels is the ordered vocabulary for annotations on this tier.
	// Annotation labels are not strictly checked against it; it supplies
	// the color copied at creation.
	Labels []Label `json:"labels,omitempty"`
}

// ColorFor returns the configured color for a label name, or "" when the
// label is not in the vocabulary.
func (t *Tier) ColorFor(label string) string {
	for _, l := range t.Labels {
		if l.Name == label {
			return l.Color
		}
	}
	return ""
}

// Hierarchy is the resolved tier configuration of one document. It is
// immutable after construction; lookups are cheap map reads.
type Hierarchy struct {
	tiers    []*Tier
	byName   map[string]*Tier
	children map[string][]*Tier
}

// NewHierarchy validates and resolves a tier configuration. It rejects
// duplicate names, dependent tiers without a parent or constraint,
// independent tiers with either, references to undefined parents, and
// cycles in the parent graph.
func NewHierarchy(tiers []*Tier) (*Hierarchy, error) {
	h := &Hierarchy{
		tiers:    tiers,
		byName:   make(map[string]*Tier, len(tiers)),
		children: make(map[string][]*Tier),
	}

	for i, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("tier[%d]: name is required", i)
		}
		if _, dup := h.byName[t.Name]; dup {
			return nil, fmt.Errorf("tier %q: duplicate name", t.Name)
		}
		if !t.Kind.IsValid() {
			return nil, fmt.Errorf("tier %q: invalid kind %q", t.Name, t.Kind)
		}

		switch t.Kind {
		case Dependent:
			if t.ParentTier == "" {
				return nil, fmt.Errorf("tier %q: dependent tier needs a parent", t.Name)
			}
			if t.ParentTier == t.Name {
				return nil, fmt.Errorf("tier %q: tier cannot be its own parent", t.Name)
			}
			if !t.Constraint.IsValid() {
				return nil, fmt.Errorf("tier %q: invalid constraint %q", t.Name, t.Constraint)
			}
		case Independent:
			if t.ParentTier != "" {
				return nil, fmt.Errorf("tier %q: independent tier cannot have a parent", t.Name)
			}
			if t.Constraint != "" {
				return nil, fmt.Errorf("tier %q: independent tier cannot have a constraint", t.Name)
			}
		}

		h.byName[t.Name] = t
	}

	// Resolve parent references and build the child index.
	for _, t := range tiers {
		if t.Kind != Dependent {
			continue
		}
		if _, ok := h.byName[t.ParentTier]; !ok {
			return nil, fmt.Errorf("tier %q: parent tier %q is not defined", t.Name, t.ParentTier)
		}
		h.children[t.ParentTier] = append(h.children[t.ParentTier], t)
	}

	if err := h.checkAcyclic(); err != nil {
		return nil, err
	}

	return h, nil
}

// checkAcyclic walks each tier's parent chain. The chain length is bounded
// by the tier count, so a longer walk means a cycle.
func (h *Hierarchy) checkAcyclic() error {
	for _, t := range h.tiers {
		steps := 0
		for cur := t; cur.ParentTier != ""; cur = h.byName[cur.ParentTier] {
			steps++
			if steps > len(h.tiers) {
				return fmt.Errorf("tier %q: parent chain contains a cycle", t.Name)
			}
		}
	}
	return nil
}

// ByName returns the tier with the given name, or false when no such tier
// is configured.
func (h *Hierarchy) ByName(name string) (*Tier, bool) {
	t, ok := h.byName[name]
	return t, ok
}

// ChildrenOf returns the tiers whose parent is the named tier, in
// configuration order.
func (h *Hierarchy) ChildrenOf(name string) []*Tier {
	return h.children[name]
}

// Tiers returns all tiers in configuration order.
func (h *Hierarchy) Tiers() []*Tier {
	return h.tiers
}

// Names returns all tier names in configuration order.
func (h *Hierarchy) Names() []string {
	names := make([]string, len(h.tiers))
	for i, t := range h.tiers {
		names[i] = t.Name
	}
	return names
}
