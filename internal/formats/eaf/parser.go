package eaf

import (
	"fmt"
	"strconv"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/errors"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/core/timespan"
	"github.com/tierline/tierline/core/xml"
)

// ELAN constraint stereotypes, as they appear in LINGUISTIC_TYPE
// CONSTRAINTS attributes.
const (
	stereotypeTimeSubdivision     = "Time_Subdivision"
	stereotypeIncludedIn          = "Included_In"
	stereotypeSymbolicSubdivision = "Symbolic_Subdivision"
	stereotypeSymbolicAssociation = "Symbolic_Association"
)

// pendingRef is a REF_ANNOTATION waiting for its target to materialize.
// Symbolic annotations carry no time of their own; they take over the
// referenced annotation's span once it is known.
type pendingRef struct {
	id       string
	tierName string
	ref      string
	value    string
}

// parseEAF reads the supported subset of an ELAN .eaf file: the time-slot
// table, the tier declarations with their linguistic types, and both
// alignable and symbolic annotations. Symbolic annotations materialize
// with their referenced annotation's span and an explicit parent link.
func parseEAF(data []byte) (*annot.Document, *tier.Config, error) {
	if res := xml.Validate(data); !res.Valid {
		return nil, nil, errors.NewParse("eaf", "", fmt.Sprintf("not well-formed XML: %s", res.Errors[0].Message))
	}

	d, err := xml.Parse(data)
	if err != nil {
		return nil, nil, &errors.ParseError{Format: "eaf", Message: "not well-formed XML", Err: err}
	}

	root := d.Root()
	if root == nil || root.Name() != "ANNOTATION_DOCUMENT" {
		return nil, nil, errors.NewParse("eaf", "", "root element is not ANNOTATION_DOCUMENT")
	}

	if err := checkTimeUnits(d); err != nil {
		return nil, nil, err
	}

	slots, err := parseTimeSlots(d)
	if err != nil {
		return nil, nil, err
	}

	constraints, err := parseLinguisticTypes(d)
	if err != nil {
		return nil, nil, err
	}

	tierNodes, err := d.XPath("//TIER")
	if err != nil {
		return nil, nil, &errors.ParseError{Format: "eaf", Message: "cannot query tiers", Err: err}
	}

	var tiers []*tier.Tier
	groups := make(map[string][]*annot.Annotation)
	byID := make(map[string]*annot.Annotation)
	var pending []pendingRef

	for _, tn := range tierNodes {
		tierID := tn.Attr("TIER_ID")
		if tierID == "" {
			return nil, nil, errors.NewParse("eaf", "", "tier without TIER_ID")
		}

		t, err := tierFor(tierID, tn.Attr("PARENT_REF"), constraints[tn.Attr("LINGUISTIC_TYPE_REF")])
		if err != nil {
			return nil, nil, err
		}
		tiers = append(tiers, t)
		groups[tierID] = make([]*annot.Annotation, 0)

		for _, wrapper := range tn.Children() {
			if wrapper.Name() != "ANNOTATION" {
				continue
			}
			for _, an := range wrapper.Children() {
				switch an.Name() {
				case "ALIGNABLE_ANNOTATION":
					a, err := parseAlignable(an, tierID, slots)
					if err != nil {
						return nil, nil, err
					}
					if byID[a.ID] != nil {
						return nil, nil, errors.NewParse("eaf", "", fmt.Sprintf("duplicate annotation id %q", a.ID))
					}
					byID[a.ID] = a
					groups[tierID] = append(groups[tierID], a)

				case "REF_ANNOTATION":
					id := an.Attr("ANNOTATION_ID")
					ref := an.Attr("ANNOTATION_REF")
					if id == "" || ref == "" {
						return nil, nil, errors.NewParse("eaf", "", "ref annotation without ANNOTATION_ID or ANNOTATION_REF")
					}
					pending = append(pending, pendingRef{
						id:       id,
						tierName: tierID,
						ref:      ref,
						value:    annotationValueOf(an),
					})
				}
			}
		}
	}

	if err := materializeRefs(pending, byID, groups); err != nil {
		return nil, nil, err
	}

	cfg := &tier.Config{Tiers: tiers}
	hierarchy, err := cfg.Resolve()
	if err != nil {
		return nil, nil, &errors.ParseError{Format: "eaf", Message: "invalid tier structure", Err: err}
	}

	if err := linkParents(hierarchy, groups); err != nil {
		return nil, nil, err
	}

	doc := &annot.Document{
		Annotations: groups,
		TimeSlots:   annot.TimeSlots(groups),
	}
	return doc, cfg, nil
}

// checkTimeUnits rejects documents whose HEADER declares a time base other
// than milliseconds. ELAN also allows frame-based units; slot values in
// those documents would be misread as milliseconds.
func checkTimeUnits(d *xml.Document) error {
	header, err := d.XPathFirst("//HEADER")
	if err != nil || header == nil {
		return nil
	}
	if units := header.Attr("TIME_UNITS"); units != "" && units != "milliseconds" {
		return errors.NewUnsupported(
			fmt.Sprintf("time units %q", units),
			"only milliseconds are supported")
	}
	return nil
}

// parseTimeSlots reads the TIME_ORDER table into slot id -> milliseconds.
func parseTimeSlots(d *xml.Document) (map[string]int64, error) {
	nodes, err := d.XPath("//TIME_ORDER/TIME_SLOT")
	if err != nil {
		return nil, &errors.ParseError{Format: "eaf", Message: "cannot query time slots", Err: err}
	}

	slots := make(map[string]int64, len(nodes))
	for _, n := range nodes {
		id := n.Attr("TIME_SLOT_ID")
		if id == "" {
			return nil, errors.NewParse("eaf", "", "time slot without TIME_SLOT_ID")
		}
		raw := n.Attr("TIME_VALUE")
		if raw == "" {
			return nil, errors.NewParse("eaf", "", fmt.Sprintf("time slot %q has no TIME_VALUE; unaligned slots are not supported", id))
		}
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.NewParse("eaf", "", fmt.Sprintf("time slot %q has invalid TIME_VALUE %q", id, raw))
		}
		slots[id] = ms
	}
	return slots, nil
}

// parseLinguisticTypes reads LINGUISTIC_TYPE declarations into
// type id -> constraint stereotype (empty for unconstrained types).
func parseLinguisticTypes(d *xml.Document) (map[string]string, error) {
	nodes, err := d.XPath("//LINGUISTIC_TYPE")
	if err != nil {
		return nil, &errors.ParseError{Format: "eaf", Message: "cannot query linguistic types", Err: err}
	}

	constraints := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if id := n.Attr("LINGUISTIC_TYPE_ID"); id != "" {
			constraints[id] = n.Attr("CONSTRAINTS")
		}
	}
	return constraints, nil
}

// tierFor maps an EAF tier declaration onto the tier model. Symbolic
// stereotypes have no equivalent constraint, so they map to INCLUDED_IN
// and their annotations materialize as time-aligned intervals.
func tierFor(tierID, parentRef, stereotype string) (*tier.Tier, error) {
	if parentRef == "" {
		return &tier.Tier{Name: tierID, Kind: tier.Independent}, nil
	}

	t := &tier.Tier{Name: tierID, Kind: tier.Dependent, ParentTier: parentRef}
	switch stereotype {
	case stereotypeTimeSubdivision:
		t.Constraint = tier.TimeSubdivision
	case stereotypeIncludedIn, stereotypeSymbolicSubdivision, stereotypeSymbolicAssociation, "":
		t.Constraint = tier.IncludedIn
	default:
		return nil, errors.NewUnsupported(
			fmt.Sprintf("constraint stereotype %q on tier %q", stereotype, tierID),
			"only Time_Subdivision, Included_In and the symbolic stereotypes are supported")
	}
	return t, nil
}

// parseAlignable reads one ALIGNABLE_ANNOTATION into an annotation.
func parseAlignable(n *xml.Node, tierID string, slots map[string]int64) (*annot.Annotation, error) {
	id := n.Attr("ANNOTATION_ID")
	if id == "" {
		return nil, errors.NewParse("eaf", "", "alignable annotation without ANNOTATION_ID")
	}

	start, err := slotValue(n.Attr("TIME_SLOT_REF1"), id, slots)
	if err != nil {
		return nil, err
	}
	end, err := slotValue(n.Attr("TIME_SLOT_REF2"), id, slots)
	if err != nil {
		return nil, err
	}

	return &annot.Annotation{
		ID:    id,
		Tier:  tierID,
		Span:  timespan.New(start, end),
		Value: annotationValueOf(n),
	}, nil
}

func slotValue(ref, annotationID string, slots map[string]int64) (int64, error) {
	if ref == "" {
		return 0, errors.NewParse("eaf", "", fmt.Sprintf("annotation %q is missing a time slot reference", annotationID))
	}
	ms, ok := slots[ref]
	if !ok {
		return 0, errors.NewParse("eaf", "", fmt.Sprintf("annotation %q references undefined time slot %q", annotationID, ref))
	}
	return ms, nil
}

// annotationValueOf returns the text of the ANNOTATION_VALUE child.
func annotationValueOf(n *xml.Node) string {
	for _, c := range n.Children() {
		if c.Name() == "ANNOTATION_VALUE" {
			return c.InnerText()
		}
	}
	return ""
}

// materializeRefs resolves REF_ANNOTATIONs against their targets. Chains
// of references resolve over repeated passes; anything left after a pass
// with no progress is dangling.
func materializeRefs(pending []pendingRef, byID map[string]*annot.Annotation, groups map[string][]*annot.Annotation) error {
	for len(pending) > 0 {
		var unresolved []pendingRef
		for _, p := range pending {
			target, ok := byID[p.ref]
			if !ok {
				unresolved = append(unresolved, p)
				continue
			}
			if byID[p.id] != nil {
				return errors.NewParse("eaf", "", fmt.Sprintf("duplicate annotation id %q", p.id))
			}
			ref := p.ref
			a := &annot.Annotation{
				ID:       p.id,
				Tier:     p.tierName,
				Span:     target.Span,
				ParentID: &ref,
				Value:    p.value,
			}
			byID[p.id] = a
			groups[p.tierName] = append(groups[p.tierName], a)
		}
		if len(unresolved) == len(pending) {
			return errors.NewParse("eaf", "", fmt.Sprintf("annotation %q references unknown annotation %q", unresolved[0].id, unresolved[0].ref))
		}
		pending = unresolved
	}
	return nil
}

// linkParents assigns parent links to alignable annotations on dependent
// tiers: the first annotation in document order on the parent tier whose
// span contains the child's span. Symbolic annotations already carry
// their link from ANNOTATION_REF.
func linkParents(h *tier.Hierarchy, groups map[string][]*annot.Annotation) error {
	for _, t := range h.Tiers() {
		if t.Kind != tier.Dependent {
			continue
		}
		parents := groups[t.ParentTier]
		for _, a := range groups[t.Name] {
			if a.ParentID != nil {
				continue
			}
			parent := coveringParent(parents, a.Span)
			if parent == nil {
				return errors.NewParse("eaf", "",
					fmt.Sprintf("annotation %q on tier %q has no covering parent on tier %q", a.ID, t.Name, t.ParentTier))
			}
			id := parent.ID
			a.ParentID = &id
		}
	}
	return nil
}

func coveringParent(parents []*annot.Annotation, span timespan.Span) *annot.Annotation {
	for _, p := range parents {
		if p.Contains(span) {
			return p
		}
	}
	return nil
}
