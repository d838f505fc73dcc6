// Package formats provides the registry of embedded format handlers used
// for document interchange. Each handler lives in its own subpackage and
// registers itself at init time; importing internal/formats/all pulls in
// every built-in handler.
package formats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/internal/validation"
)

// DetectResult is the outcome of probing a file for a format.
type DetectResult struct {
	Detected bool   `json:"detected"`
	Format   string `json:"format,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ImportResult is the outcome of importing a native file: the document and
// the tier configuration that governs it. Formats that do not carry tier
// structure derive the configuration from the document.
type ImportResult struct {
	Document *annot.Document
	Config   *tier.Config
}

// Handler converts between a native file format and the document model.
type Handler interface {
	// Name is the registry key ("tierdoc", "eaf", "csv").
	Name() string

	// Extensions lists the file extensions this format claims.
	Extensions() []string

	// Detect checks whether the given path is handled by this format.
	// A negative result is reported in the DetectResult, not as an error.
	Detect(path string) (*DetectResult, error)

	// Import parses native bytes into a document and tier configuration.
	// Export-only formats return an UnsupportedError.
	Import(data []byte) (*ImportResult, error)

	// Export renders a document to native bytes. cfg may be nil; formats
	// that need tier structure derive it from the document.
	Export(doc *annot.Document, cfg *tier.Config) ([]byte, error)
}

// registry holds all registered handlers by name.
var registry = make(map[string]Handler)

// Register adds a handler to the registry. Later registrations under the
// same name replace earlier ones.
func Register(h Handler) {
	if h != nil && h.Name() != "" {
		registry[h.Name()] = h
	}
}

// Get returns the handler with the given name.
func Get(name string) (Handler, bool) {
	h, ok := registry[name]
	return h, ok
}

// Names returns the registered format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers returns the registered handlers sorted by name.
func Handlers() []Handler {
	names := Names()
	handlers := make([]Handler, len(names))
	for i, name := range names {
		handlers[i] = registry[name]
	}
	return handlers
}

// DetectFile probes a file against every registered handler and returns the
// first positive result. The file's magic bytes are checked against its
// extension first, so a mislabeled file (say a gzip stream named doc.eaf)
// is rejected before any handler parses it.
func DetectFile(path string) (*DetectResult, error) {
	if info, err := os.Stat(path); err == nil && info.Size() > validation.MaxFileSize {
		return &DetectResult{Detected: false, Reason: "file exceeds the size limit"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &DetectResult{Detected: false, Reason: fmt.Sprintf("cannot open: %v", err)}, nil
	}
	_, verr := validation.ValidateFileType(f, filepath.Base(path))
	f.Close()
	if verr != nil {
		return &DetectResult{Detected: false, Reason: verr.Error()}, nil
	}

	for _, h := range Handlers() {
		result, err := h.Detect(path)
		if err != nil {
			return nil, fmt.Errorf("%s detect: %w", h.Name(), err)
		}
		if result.Detected {
			return result, nil
		}
	}

	return &DetectResult{Detected: false, Reason: "no registered format matched"}, nil
}
