package annot

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Document is the persisted shape of an annotated timeline: annotations
// grouped per tier in store order, plus a deduplicated time-slot table
// over every interval boundary. Field names are the interchange contract;
// other tools read and write this shape.
type Document struct {
	// Annotations maps tier name to that tier's annotations in store
	// order. Every configured tier appears, empty tiers as empty lists.
	Annotations map[string][]*Annotation `json:"annotations"`

	// TimeSlots maps slot ids (ts1..tsN) to boundary values in
	// milliseconds. Ids are assigned in ascending value order.
	TimeSlots map[string]int64 `json:"time_slots"`
}

// TimeSlots computes the slot table for grouped annotations: every start
// and end value is collected, deduplicated, sorted ascending, and assigned
// ts1..tsN in sorted order. Assignment is a pure function of the distinct
// value set, so re-serializing an unchanged store reproduces the table.
func TimeSlots(groups map[string][]*Annotation) map[string]int64 {
	seen := make(map[int64]bool)
	var values []int64
	for _, group := range groups {
		for _, a := range group {
			for _, v := range [2]int64{a.Start, a.End} {
				if !seen[v] {
					seen[v] = true
					values = append(values, v)
				}
			}
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	slots := make(map[string]int64, len(values))
	for i, v := range values {
		slots[fmt.Sprintf("ts%d", i+1)] = v
	}
	return slots
}

// ToJSON serializes the document to indented JSON.
func (d *Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ParseDocument parses a persisted document from JSON.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if d.Annotations == nil {
		d.Annotations = make(map[string][]*Annotation)
	}
	if d.TimeSlots == nil {
		d.TimeSlots = make(map[string]int64)
	}
	return &d, nil
}

// LoadDocument reads a persisted document from a JSON file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	d, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// SaveDocument writes a document to a JSON file.
func SaveDocument(path string, d *Document) error {
	data, err := d.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// sortedTierNames returns the document's tier names in lexical order, for
// deterministic iteration over the annotations map.
func sortedTierNames(d *Document) []string {
	names := make([]string, 0, len(d.Annotations))
	for name := range d.Annotations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
