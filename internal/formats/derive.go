package formats

import (
	"sort"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/tier"
)

// DeriveConfig reconstructs a tier configuration from a document's
// structure. Parent relationships are recovered from parent_id links and
// labels from the label/color pairs present on annotations. Constraint
// kinds are not recoverable, so every dependent tier derives as
// INCLUDED_IN. Tiers with no annotations derive as independent.
func DeriveConfig(doc *annot.Document) *tier.Config {
	byID := make(map[string]*annot.Annotation)
	for _, group := range doc.Annotations {
		for _, a := range group {
			byID[a.ID] = a
		}
	}

	var independent, dependent []*tier.Tier
	for _, name := range sortedNames(doc) {
		t := &tier.Tier{Name: name, Kind: tier.Independent}

		seen := make(map[string]bool)
		for _, a := range doc.Annotations[name] {
			if t.ParentTier == "" && a.ParentID != nil {
				if parent, ok := byID[*a.ParentID]; ok {
					t.Kind = tier.Dependent
					t.ParentTier = parent.Tier
					t.Constraint = tier.IncludedIn
				}
			}
			if a.Label != "" && !seen[a.Label] {
				seen[a.Label] = true
				label := tier.Label{Name: a.Label}
				if a.Color != nil {
					label.Color = *a.Color
				}
				t.Labels = append(t.Labels, label)
			}
		}

		if t.Kind == tier.Dependent {
			dependent = append(dependent, t)
		} else {
			independent = append(independent, t)
		}
	}

	return &tier.Config{Tiers: append(independent, dependent...)}
}

func sortedNames(doc *annot.Document) []string {
	names := make([]string, 0, len(doc.Annotations))
	for name := range doc.Annotations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
