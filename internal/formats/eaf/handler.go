// Package eaf provides the embedded handler for the ELAN .eaf interchange
// format. Import covers the pragmatic subset of EAF the document model can
// express: millisecond time slots, alignable and symbolic annotations, and
// the Time_Subdivision / Included_In constraint stereotypes.
package eaf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/core/xml"
	"github.com/tierline/tierline/internal/formats"
)

// Handler implements formats.Handler for ELAN EAF files.
type Handler struct{}

// Register adds this handler to the format registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

// Name implements formats.Handler.
func (h *Handler) Name() string { return "eaf" }

// Extensions implements formats.Handler.
func (h *Handler) Extensions() []string { return []string{".eaf", ".xml"} }

// Detect implements formats.Handler.
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: fmt.Sprintf("cannot stat: %v", err)}, nil
	}
	if info.IsDir() {
		return &formats.DetectResult{Detected: false, Reason: "path is a directory, not a file"}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: fmt.Sprintf("cannot read: %v", err)}, nil
	}

	if strings.Contains(string(data), "<ANNOTATION_DOCUMENT") {
		return &formats.DetectResult{
			Detected: true,
			Format:   "eaf",
			Reason:   "ELAN annotation document detected",
		}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".eaf" || ext == ".xml" {
		if d, err := xml.Parse(data); err == nil {
			if root := d.Root(); root != nil && root.Name() == "ANNOTATION_DOCUMENT" {
				return &formats.DetectResult{
					Detected: true,
					Format:   "eaf",
					Reason:   "valid EAF structure",
				}, nil
			}
		}
	}

	return &formats.DetectResult{Detected: false, Reason: "not an EAF file"}, nil
}

// Import implements formats.Handler.
func (h *Handler) Import(data []byte) (*formats.ImportResult, error) {
	doc, cfg, err := parseEAF(data)
	if err != nil {
		return nil, err
	}
	return &formats.ImportResult{Document: doc, Config: cfg}, nil
}

// Export implements formats.Handler.
func (h *Handler) Export(doc *annot.Document, cfg *tier.Config) ([]byte, error) {
	if cfg == nil {
		cfg = formats.DeriveConfig(doc)
	}
	return writeEAF(doc, cfg)
}
