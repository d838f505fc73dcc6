// Package tierdoc provides the embedded handler for the native JSON
// document format.
package tierdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/internal/formats"
)

// Handler implements formats.Handler for the native document format.
type Handler struct{}

// Register adds this handler to the format registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

// Name implements formats.Handler.
func (h *Handler) Name() string { return "tierdoc" }

// Extensions implements formats.Handler.
func (h *Handler) Extensions() []string { return []string{".tierdoc", ".json"} }

// probe is the minimal shape Detect checks for. A document file always
// carries the annotations key, even when every tier is empty.
type probe struct {
	Annotations map[string]json.RawMessage `json:"annotations"`
}

// Detect implements formats.Handler.
func (h *Handler) Detect(path string) (*formats.DetectResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: fmt.Sprintf("cannot stat: %v", err)}, nil
	}
	if info.IsDir() {
		return &formats.DetectResult{Detected: false, Reason: "path is a directory, not a file"}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".tierdoc" && ext != ".json" {
		return &formats.DetectResult{Detected: false, Reason: "not a .tierdoc or .json file"}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &formats.DetectResult{Detected: false, Reason: fmt.Sprintf("cannot read: %v", err)}, nil
	}

	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return &formats.DetectResult{Detected: false, Reason: "not valid JSON"}, nil
	}
	if p.Annotations == nil {
		return &formats.DetectResult{Detected: false, Reason: "no annotations key"}, nil
	}

	return &formats.DetectResult{
		Detected: true,
		Format:   "tierdoc",
		Reason:   "tierdoc document detected",
	}, nil
}

// Import implements formats.Handler.
func (h *Handler) Import(data []byte) (*formats.ImportResult, error) {
	doc, err := annot.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return &formats.ImportResult{
		Document: doc,
		Config:   formats.DeriveConfig(doc),
	}, nil
}

// Export implements formats.Handler. The native format does not embed the
// tier configuration, so cfg is ignored.
func (h *Handler) Export(doc *annot.Document, _ *tier.Config) ([]byte, error) {
	return doc.ToJSON()
}
