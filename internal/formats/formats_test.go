package formats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/core/timespan"
)

// stubHandler claims files whose name contains its marker, so stubs
// registered by different tests stay out of each other's way.
type stubHandler struct {
	name   string
	marker string
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) Extensions() []string { return []string{".json"} }

func (s *stubHandler) Detect(path string) (*DetectResult, error) {
	if strings.Contains(filepath.Base(path), s.marker) {
		return &DetectResult{Detected: true, Format: s.name, Reason: "marker matched"}, nil
	}
	return &DetectResult{Detected: false, Reason: "no marker"}, nil
}

func (s *stubHandler) Import(data []byte) (*ImportResult, error) {
	return &ImportResult{Document: &annot.Document{}}, nil
}

func (s *stubHandler) Export(doc *annot.Document, cfg *tier.Config) ([]byte, error) {
	return []byte(s.name), nil
}

func TestRegisterAndGet(t *testing.T) {
	Register(&stubHandler{name: "stub-a", marker: "aaa"})

	h, ok := Get("stub-a")
	if !ok {
		t.Fatal("Get() did not find registered handler")
	}
	if h.Name() != "stub-a" {
		t.Errorf("Name() = %q, want stub-a", h.Name())
	}

	if _, ok := Get("no-such-format"); ok {
		t.Error("Get() found a handler that was never registered")
	}
}

func TestNamesSorted(t *testing.T) {
	Register(&stubHandler{name: "stub-z", marker: "zzz"})
	Register(&stubHandler{name: "stub-b", marker: "bbb"})

	names := Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names() not sorted: %v", names)
		}
	}
}

func TestDetectFile(t *testing.T) {
	Register(&stubHandler{name: "stub-detect", marker: "claimme"})

	dir := t.TempDir()
	path := filepath.Join(dir, "claimme.json")
	if err := os.WriteFile(path, []byte(`{"ok": true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := DetectFile(path)
	if err != nil {
		t.Fatalf("DetectFile() error: %v", err)
	}
	if !result.Detected {
		t.Fatalf("DetectFile() not detected: %s", result.Reason)
	}
	if result.Format != "stub-detect" {
		t.Errorf("Format = %q, want stub-detect", result.Format)
	}
}

func TestDetectFileNoMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nobody-claims-this.json")
	if err := os.WriteFile(path, []byte(`{"ok": true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := DetectFile(path)
	if err != nil {
		t.Fatalf("DetectFile() error: %v", err)
	}
	if result.Detected {
		t.Errorf("DetectFile() detected %q, want no match", result.Format)
	}
}

func TestDetectFileRejectsMislabeledContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claimme.json")
	// Gzip magic bytes in a file claiming to be JSON.
	if err := os.WriteFile(path, []byte{0x1f, 0x8b, 0x08, 0x00}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := DetectFile(path)
	if err != nil {
		t.Fatalf("DetectFile() error: %v", err)
	}
	if result.Detected {
		t.Error("DetectFile() detected a mislabeled file")
	}
	if !strings.Contains(result.Reason, "mismatch") {
		t.Errorf("Reason = %q, want a type mismatch reason", result.Reason)
	}
}

func TestDetectFileMissing(t *testing.T) {
	result, err := DetectFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("DetectFile() error: %v", err)
	}
	if result.Detected {
		t.Error("DetectFile() detected a missing file")
	}
}

func strptr(s string) *string { return &s }

func TestDeriveConfig(t *testing.T) {
	doc := &annot.Document{
		Annotations: map[string][]*annot.Annotation{
			"utterance": {
				{ID: "a1", Tier: "utterance", Span: timespan.New(0, 1200), Label: "speech", Color: strptr("#4477aa")},
				{ID: "a2", Tier: "utterance", Span: timespan.New(1500, 2000), Label: "pause"},
				{ID: "a4", Tier: "utterance", Span: timespan.New(2500, 3000), Label: "speech", Color: strptr("#4477aa")},
			},
			"word": {
				{ID: "a3", Tier: "word", Span: timespan.New(100, 600), Label: "token", ParentID: strptr("a1"), Value: "hello"},
			},
			"notes": {},
		},
	}

	cfg := DeriveConfig(doc)
	if len(cfg.Tiers) != 3 {
		t.Fatalf("derived %d tiers, want 3", len(cfg.Tiers))
	}

	byName := make(map[string]*tier.Tier)
	for _, tr := range cfg.Tiers {
		byName[tr.Name] = tr
	}

	utterance := byName["utterance"]
	if utterance == nil || utterance.Kind != tier.Independent {
		t.Fatalf("utterance tier not derived as independent: %+v", utterance)
	}
	if len(utterance.Labels) != 2 {
		t.Fatalf("utterance labels = %d, want 2 distinct", len(utterance.Labels))
	}
	if utterance.Labels[0].Name != "speech" || utterance.Labels[0].Color != "#4477aa" {
		t.Errorf("first label = %+v, want speech/#4477aa", utterance.Labels[0])
	}

	word := byName["word"]
	if word == nil || word.Kind != tier.Dependent {
		t.Fatalf("word tier not derived as dependent: %+v", word)
	}
	if word.ParentTier != "utterance" {
		t.Errorf("word parent = %q, want utterance", word.ParentTier)
	}
	if word.Constraint != tier.IncludedIn {
		t.Errorf("word constraint = %q, want %q", word.Constraint, tier.IncludedIn)
	}

	notes := byName["notes"]
	if notes == nil || notes.Kind != tier.Independent {
		t.Fatalf("empty tier not derived as independent: %+v", notes)
	}

	// Independent tiers come first so the config reads top-down.
	if cfg.Tiers[len(cfg.Tiers)-1].Name != "word" {
		t.Errorf("dependent tier not last: %v", tierNames(cfg))
	}

	if _, err := cfg.Resolve(); err != nil {
		t.Fatalf("derived config does not resolve: %v", err)
	}
}

func tierNames(cfg *tier.Config) []string {
	names := make([]string, len(cfg.Tiers))
	for i, tr := range cfg.Tiers {
		names[i] = tr.Name
	}
	return names
}
