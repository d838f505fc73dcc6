package eaf

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/errors"
	"github.com/tierline/tierline/core/tier"
)

// Linguistic type ids used in exported files.
const (
	typeDefault         = "default-lt"
	typeTimeSubdivision = "time-subdivision"
	typeIncludedIn      = "included-in"
)

// ELAN's standard descriptions for the constraint stereotypes we emit.
var stereotypeDescriptions = map[string]string{
	stereotypeTimeSubdivision: "Time subdivision of parent annotation's time interval, no time gaps allowed within this interval",
	stereotypeIncludedIn:      "Time alignable annotations within the parent annotation's time interval, gaps are allowed",
}

type xmlDocument struct {
	XMLName         xml.Name        `xml:"ANNOTATION_DOCUMENT"`
	Author          string          `xml:"AUTHOR,attr"`
	Date            string          `xml:"DATE,attr"`
	Format          string          `xml:"FORMAT,attr"`
	Version         string          `xml:"VERSION,attr"`
	Header          xmlHeader       `xml:"HEADER"`
	TimeOrder       xmlTimeOrder    `xml:"TIME_ORDER"`
	Tiers           []xmlTier       `xml:"TIER"`
	LinguisticTypes []xmlLingType   `xml:"LINGUISTIC_TYPE"`
	Constraints     []xmlConstraint `xml:"CONSTRAINT"`
}

type xmlHeader struct {
	MediaFile string `xml:"MEDIA_FILE,attr"`
	TimeUnits string `xml:"TIME_UNITS,attr"`
}

type xmlTimeOrder struct {
	Slots []xmlTimeSlot `xml:"TIME_SLOT"`
}

type xmlTimeSlot struct {
	ID    string `xml:"TIME_SLOT_ID,attr"`
	Value int64  `xml:"TIME_VALUE,attr"`
}

type xmlTier struct {
	ID          string          `xml:"TIER_ID,attr"`
	ParentRef   string          `xml:"PARENT_REF,attr,omitempty"`
	TypeRef     string          `xml:"LINGUISTIC_TYPE_REF,attr"`
	Annotations []xmlAnnotation `xml:"ANNOTATION"`
}

type xmlAnnotation struct {
	Alignable xmlAlignable `xml:"ALIGNABLE_ANNOTATION"`
}

type xmlAlignable struct {
	ID    string `xml:"ANNOTATION_ID,attr"`
	Ref1  string `xml:"TIME_SLOT_REF1,attr"`
	Ref2  string `xml:"TIME_SLOT_REF2,attr"`
	Value string `xml:"ANNOTATION_VALUE"`
}

type xmlLingType struct {
	ID            string `xml:"LINGUISTIC_TYPE_ID,attr"`
	TimeAlignable bool   `xml:"TIME_ALIGNABLE,attr"`
	Constraints   string `xml:"CONSTRAINTS,attr,omitempty"`
}

type xmlConstraint struct {
	Description string `xml:"DESCRIPTION,attr"`
	Stereotype  string `xml:"STEREOTYPE,attr"`
}

// writeEAF renders a document as ELAN XML. Every annotation is emitted as
// an ALIGNABLE_ANNOTATION over the deduplicated time-slot table; tier
// structure comes from cfg. Values fall back to the label when the
// annotation has no free-form value.
func writeEAF(doc *annot.Document, cfg *tier.Config) ([]byte, error) {
	slots := annot.TimeSlots(doc.Annotations)
	slotID := make(map[int64]string, len(slots))
	ordered := make([]xmlTimeSlot, len(slots))
	for i := 1; i <= len(slots); i++ {
		id := fmt.Sprintf("ts%d", i)
		v := slots[id]
		ordered[i-1] = xmlTimeSlot{ID: id, Value: v}
		slotID[v] = id
	}

	configured := make(map[string]bool, len(cfg.Tiers))
	for _, t := range cfg.Tiers {
		configured[t.Name] = true
	}
	for name, group := range doc.Annotations {
		if len(group) > 0 && !configured[name] {
			return nil, errors.NewValidation("tier", fmt.Sprintf("tier %q is not in the configuration", name))
		}
	}

	out := &xmlDocument{
		Author:  "",
		Date:    time.Now().UTC().Format(time.RFC3339),
		Format:  "3.0",
		Version: "3.0",
		Header:  xmlHeader{MediaFile: "", TimeUnits: "milliseconds"},
		TimeOrder: xmlTimeOrder{
			Slots: ordered,
		},
	}

	usedTypes := make(map[string]bool)
	for _, t := range cfg.Tiers {
		typeRef := lingTypeFor(t)
		usedTypes[typeRef] = true

		xt := xmlTier{
			ID:        t.Name,
			ParentRef: t.ParentTier,
			TypeRef:   typeRef,
		}

		group := append([]*annot.Annotation(nil), doc.Annotations[t.Name]...)
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Start != group[j].Start {
				return group[i].Start < group[j].Start
			}
			return group[i].End < group[j].End
		})

		for _, a := range group {
			value := a.Value
			if value == "" {
				value = a.Label
			}
			xt.Annotations = append(xt.Annotations, xmlAnnotation{
				Alignable: xmlAlignable{
					ID:    a.ID,
					Ref1:  slotID[a.Start],
					Ref2:  slotID[a.End],
					Value: value,
				},
			})
		}

		out.Tiers = append(out.Tiers, xt)
	}

	for _, lt := range []xmlLingType{
		{ID: typeDefault, TimeAlignable: true},
		{ID: typeTimeSubdivision, TimeAlignable: true, Constraints: stereotypeTimeSubdivision},
		{ID: typeIncludedIn, TimeAlignable: true, Constraints: stereotypeIncludedIn},
	} {
		if usedTypes[lt.ID] {
			out.LinguisticTypes = append(out.LinguisticTypes, lt)
			if lt.Constraints != "" {
				out.Constraints = append(out.Constraints, xmlConstraint{
					Description: stereotypeDescriptions[lt.Constraints],
					Stereotype:  lt.Constraints,
				})
			}
		}
	}

	data, err := xml.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize EAF: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

// lingTypeFor maps a tier onto its exported linguistic type id.
func lingTypeFor(t *tier.Tier) string {
	if t.Kind != tier.Dependent {
		return typeDefault
	}
	if t.Constraint == tier.TimeSubdivision {
		return typeTimeSubdivision
	}
	return typeIncludedIn
}
