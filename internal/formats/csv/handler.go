// Package csv provides the embedded handler for flat CSV exports, one
// annotation per row. CSV is an export format for spreadsheets; it does
// not carry enough structure to rebuild a document, so import is not
// supported.
package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/errors"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/internal/formats"
)

// header is the exported column set.
var header = []string{"tier", "id", "start_ms", "end_ms", "label", "color", "value", "parent_id"}

// Handler implements formats.Handler for CSV exports.
type Handler struct{}

// Register adds this handler to the format registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

// Name implements formats.Handler.
func (h *Handler) Name() string { return "csv" }

// Extensions implements formats.Handler.
func (h *Handler) Extensions() []string { return []string{".csv"} }

// Detect implements formats.Handler. Only files carrying the exported
// header row are claimed; arbitrary CSV data is left alone.
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: fmt.Sprintf("cannot stat: %v", err)}, nil
	}
	if info.IsDir() {
		return &formats.DetectResult{Detected: false, Reason: "path is a directory, not a file"}, nil
	}

	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return &formats.DetectResult{Detected: false, Reason: "not a .csv file"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: fmt.Sprintf("cannot read: %v", err)}, nil
	}
	defer f.Close()

	first, err := csv.NewReader(f).Read()
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: "not valid CSV"}, nil
	}
	if len(first) < len(header) || first[0] != "tier" || first[2] != "start_ms" {
		return &formats.DetectResult{Detected: false, Reason: "not an annotation export header"}, nil
	}

	return &formats.DetectResult{
		Detected: true,
		Format:   "csv",
		Reason:   "annotation CSV export detected",
	}, nil
}

// Import implements formats.Handler.
func (h *Handler) Import(_ []byte) (*formats.ImportResult, error) {
	return nil, errors.NewUnsupported("csv import", "csv files are flat exports; import a tierdoc or eaf file instead")
}

// Export implements formats.Handler. Rows are grouped by tier in
// configuration order and sorted by start time within each tier.
func (h *Handler) Export(doc *annot.Document, cfg *tier.Config) ([]byte, error) {
	var order []string
	if cfg != nil {
		for _, t := range cfg.Tiers {
			order = append(order, t.Name)
		}
	} else {
		for name := range doc.Annotations {
			order = append(order, name)
		}
		sort.Strings(order)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, name := range order {
		group := append([]*annot.Annotation(nil), doc.Annotations[name]...)
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Start != group[j].Start {
				return group[i].Start < group[j].Start
			}
			return group[i].End < group[j].End
		})

		for _, a := range group {
			color := ""
			if a.Color != nil {
				color = *a.Color
			}
			parent := ""
			if a.ParentID != nil {
				parent = *a.ParentID
			}
			row := []string{
				a.Tier,
				a.ID,
				strconv.FormatInt(a.Start, 10),
				strconv.FormatInt(a.End, 10),
				a.Label,
				color,
				a.Value,
				parent,
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
