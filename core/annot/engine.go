package annot

import (
	"fmt"
	"strconv"

	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/core/timespan"
)

// Engine applies edits to one document's annotation store. Every operation
// is atomic: all checks run before the first mutation, so a failed call
// leaves the store byte-for-byte unchanged and returns a typed error from
// the errors.go taxonomy.
//
// The engine is single-writer and does no locking. It exclusively owns its
// store; hosts that multiplex callers (the session server does) must
// serialize calls themselves. Returned annotations are always copies.
type Engine struct {
	hier     *tier.Hierarchy
	store    *Store
	counter  uint64
	duration int64
}

// NewEngine creates an engine with an empty store for the given hierarchy.
func NewEngine(h *tier.Hierarchy) *Engine {
	return &Engine{
		hier:  h,
		store: NewStore(),
	}
}

// NewEngineFromDocument restores an engine from a persisted document. The
// document is trusted: constraints are not re-checked on load. Annotation
// ids are preserved; annotations missing an id get a fresh one. A tier
// present in the document but absent from the hierarchy is an error, so a
// document/configuration mismatch surfaces here rather than on first edit.
func NewEngineFromDocument(doc *Document, h *tier.Hierarchy) (*Engine, error) {
	e := NewEngine(h)
	if err := e.load(doc); err != nil {
		return nil, err
	}
	return e, nil
}

// SetDuration bounds every subsequent proposal to end within the document
// duration in milliseconds. Zero removes the bound.
func (e *Engine) SetDuration(ms int64) {
	e.duration = ms
}

// Duration returns the configured document duration bound (0 = unbounded).
func (e *Engine) Duration() int64 {
	return e.duration
}

// Hierarchy returns the tier hierarchy this engine was built with.
func (e *Engine) Hierarchy() *tier.Hierarchy {
	return e.hier
}

// Len returns the number of committed annotations.
func (e *Engine) Len() int {
	return e.store.Len()
}

// Create validates and commits a new annotation on a tier. On a dependent
// tier the covering parent is resolved and recorded as the annotation's
// parent link. The label's configured color is copied onto the annotation.
// No mutation happens unless every check passes.
func (e *Engine) Create(tierName string, startMS, endMS int64, label string) (*Annotation, error) {
	t, ok := e.hier.ByName(tierName)
	if !ok {
		return nil, NewUnknownTier(tierName)
	}

	span := timespan.New(startMS, endMS)
	if err := CheckSpan(span, e.duration); err != nil {
		return nil, err
	}

	parent, err := ResolveParent(t, span, e.store)
	if err != nil {
		return nil, err
	}

	a := &Annotation{
		ID:    e.nextID(),
		Tier:  t.Name,
		Span:  span,
		Label: label,
	}
	if color := t.ColorFor(label); color != "" {
		a.Color = &color
	}
	if parent != nil {
		pid := parent.ID
		a.ParentID = &pid
	}

	if err := e.store.Insert(a); err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

// Move resizes or moves a committed annotation to new bounds. The same
// checks as Create run against the proposal before anything is written;
// on a dependent tier the covering parent is re-resolved for the new
// bounds and may differ from the original. On failure the store is
// unchanged and the caller must discard any optimistic preview state.
func (e *Engine) Move(id string, startMS, endMS int64) (*Annotation, error) {
	a, ok := e.store.Get(id)
	if !ok {
		return nil, NewNotFound(id)
	}
	t, ok := e.hier.ByName(a.Tier)
	if !ok {
		return nil, NewUnknownTier(a.Tier)
	}

	span := timespan.New(startMS, endMS)
	if err := CheckSpan(span, e.duration); err != nil {
		return nil, err
	}

	parent, err := ResolveParent(t, span, e.store)
	if err != nil {
		return nil, err
	}

	a.Span = span
	if parent != nil {
		pid := parent.ID
		a.ParentID = &pid
	}
	return a.Clone(), nil
}

// SetValue replaces the free-form payload of an annotation. The payload is
// not structural, so no constraint checks run.
func (e *Engine) SetValue(id, value string) (*Annotation, error) {
	a, ok := e.store.Get(id)
	if !ok {
		return nil, NewNotFound(id)
	}
	a.Value = value
	return a.Clone(), nil
}

// Delete removes an annotation together with its full transitive dependent
// closure, as one batch. It returns the removed ids, target first, in
// discovery order.
func (e *Engine) Delete(id string) ([]string, error) {
	if _, ok := e.store.Get(id); !ok {
		return nil, NewNotFound(id)
	}

	// Collect the closure with a worklist. The tier parent graph is
	// acyclic by construction, so each annotation is enqueued at most
	// once.
	removed := []string{id}
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		a, ok := e.store.Get(cur)
		if !ok {
			continue
		}
		for _, child := range e.hier.ChildrenOf(a.Tier) {
			for _, dep := range e.store.ChildrenOf(child.Name, cur) {
				if seen[dep.ID] {
					continue
				}
				seen[dep.ID] = true
				removed = append(removed, dep.ID)
				queue = append(queue, dep.ID)
			}
		}
	}

	for _, rid := range removed {
		if err := e.store.Remove(rid); err != nil {
			return nil, err
		}
	}
	return removed, nil
}

// QueryTier returns copies of the committed annotations on a tier in
// insertion order. An unknown or empty tier yields an empty result.
func (e *Engine) QueryTier(name string) []*Annotation {
	list := e.store.ByTier(name)
	out := make([]*Annotation, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}

// QueryTierSorted is QueryTier ordered by ascending start time.
func (e *Engine) QueryTierSorted(name string) []*Annotation {
	list := e.store.ByTierSorted(name)
	out := make([]*Annotation, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}

// Annotation returns a copy of the committed annotation with the given id.
func (e *Engine) Annotation(id string) (*Annotation, error) {
	a, ok := e.store.Get(id)
	if !ok {
		return nil, NewNotFound(id)
	}
	return a.Clone(), nil
}

// Serialize produces the persisted document for the current store state.
// Every configured tier appears in the output, empty tiers included.
func (e *Engine) Serialize() *Document {
	groups := make(map[string][]*Annotation, len(e.hier.Names()))
	for _, name := range e.hier.Names() {
		list := e.store.ByTier(name)
		group := make([]*Annotation, len(list))
		for i, a := range list {
			group[i] = a.Clone()
		}
		groups[name] = group
	}
	return &Document{
		Annotations: groups,
		TimeSlots:   TimeSlots(groups),
	}
}

// load fills the store from a document. Runs in two passes so fresh ids
// handed to id-less annotations can never collide with ids loaded later.
func (e *Engine) load(doc *Document) error {
	names := sortedTierNames(doc)

	for _, name := range names {
		if _, ok := e.hier.ByName(name); !ok {
			return NewUnknownTier(name)
		}
		for _, a := range doc.Annotations[name] {
			if n, ok := counterValue(a.ID); ok && n > e.counter {
				e.counter = n
			}
		}
	}

	for _, name := range names {
		for _, a := range doc.Annotations[name] {
			c := a.Clone()
			c.Tier = name
			if c.ID == "" {
				c.ID = e.nextID()
			}
			if err := e.store.Insert(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// nextID allocates a fresh annotation id. Ids count up monotonically and
// are never handed out twice for the lifetime of the document, including
// across save/load (load advances the counter past every loaded id).
func (e *Engine) nextID() string {
	e.counter++
	return fmt.Sprintf("a%d", e.counter)
}

// counterValue extracts n from an id of the form "a<n>". Ids from other
// tools may have any shape; those never advance the counter.
func counterValue(id string) (uint64, bool) {
	if len(id) < 2 || id[0] != 'a' {
		return 0, false
	}
	n, err := strconv.ParseUint(id[1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
