// Package annot implements the annotation layer of a tiered timeline
// document: the store of committed annotations, the constraint validator
// for dependent tiers, the transactional edit engine, and the persisted
// document shape.
package annot

import (
	"github.com/tierline/tierline/core/timespan"
)

// Annotation is one labeled interval on a tier.
type Annotation struct {
	// ID is unique within the document and never reused, even after the
	// annotation is deleted.
	ID string `json:"id"`

	// Tier names the tier this annotation lives on. Fixed at creation.
	Tier string `json:"tier"`

	// Span is the occupied interval (start_time/end_time in the persisted
	// form).
	timespan.Span

	// Label is the display label, drawn from the tier's vocabulary.
	Label string `json:"label"`

	// Color is the display hint copied from the label's configured color
	// at creation time. It is never re-derived afterwards. Nil when the
	// label has no configured color.
	Color *string `json:"color"`

	// ParentID identifies the covering annotation on the parent tier.
	// Nil on independent tiers.
	ParentID *string `json:"parent_id"`

	// Value is the free-form payload, independent of the structural
	// fields.
	Value string `json:"value"`
}

// Clone returns an independent copy of the annotation.
func (a *Annotation) Clone() *Annotation {
	c := *a
	if a.Color != nil {
		v := *a.Color
		c.Color = &v
	}
	if a.ParentID != nil {
		v := *a.ParentID
		c.ParentID = &v
	}
	return &c
}
