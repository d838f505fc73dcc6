package annot

import "sort"

// Store holds the committed annotations of one open document: per-tier
// lists in insertion order plus a global id index. The store does no
// constraint checking; legality is the validator's and engine's job.
//
// Lookup methods return values that alias store memory. Callers outside
// this package should go through an Engine, which hands out copies.
type Store struct {
	byTier map[string][]*Annotation
	byID   map[string]*Annotation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byTier: make(map[string][]*Annotation),
		byID:   make(map[string]*Annotation),
	}
}

// Insert adds an annotation to its tier's list. The store takes ownership
// of the value. Fails with a DuplicateIDError when the id is already
// committed.
func (s *Store) Insert(a *Annotation) error {
	if _, exists := s.byID[a.ID]; exists {
		return NewDuplicateID(a.ID)
	}
	s.byID[a.ID] = a
	s.byTier[a.Tier] = append(s.byTier[a.Tier], a)
	return nil
}

// Remove deletes the annotation with the given id, preserving the order of
// the remaining annotations on its tier.
func (s *Store) Remove(id string) error {
	a, ok := s.byID[id]
	if !ok {
		return NewNotFound(id)
	}
	delete(s.byID, id)

	list := s.byTier[a.Tier]
	for i, cur := range list {
		if cur.ID == id {
			s.byTier[a.Tier] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the annotation with the given id.
func (s *Store) Get(id string) (*Annotation, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// ByTier returns the annotations on a tier in insertion order. The slice
// is fresh; the annotations alias store memory.
func (s *Store) ByTier(name string) []*Annotation {
	list := s.byTier[name]
	out := make([]*Annotation, len(list))
	copy(out, list)
	return out
}

// ByTierSorted returns the annotations on a tier ordered by ascending
// start time. Annotations sharing a start keep their insertion order.
func (s *Store) ByTierSorted(name string) []*Annotation {
	out := s.ByTier(name)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// ChildrenOf returns the annotations on the named tier whose ParentID is
// id, in insertion order.
func (s *Store) ChildrenOf(tierName, id string) []*Annotation {
	var out []*Annotation
	for _, a := range s.byTier[tierName] {
		if a.ParentID != nil && *a.ParentID == id {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the total number of committed annotations.
func (s *Store) Len() int {
	return len(s.byID)
}
