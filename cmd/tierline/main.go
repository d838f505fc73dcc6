// Command tierline is the CLI for the tierline annotation engine.
// It provides commands for editing documents, managing the project
// library, packing bundles, and format interchange.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/bundle"
	"github.com/tierline/tierline/core/sqlite"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/core/timespan"
	"github.com/tierline/tierline/internal/formats"
	"github.com/tierline/tierline/internal/logging"
	"github.com/tierline/tierline/internal/project"
	"github.com/tierline/tierline/internal/server"
	"github.com/tierline/tierline/internal/validation"

	// Import the aggregator to register all built-in format handlers.
	_ "github.com/tierline/tierline/internal/formats/all"
)

const version = "0.1.0"

// CLI defines the command-line interface for tierline.
var CLI struct {
	// Command groups (noun-first organization)
	Doc     DocGroup     `cmd:"" help:"Document operations (init, show, validate)"`
	Ann     AnnGroup     `cmd:"" help:"Annotation edits against a document file"`
	Project ProjectGroup `cmd:"" help:"Project library operations"`
	Bundle  BundleGroup  `cmd:"" help:"Bundle archive operations (pack, unpack, verify)"`
	Format  FormatGroup  `cmd:"" help:"Format detection and interchange"`
	Serve   ServeCmd     `cmd:"" help:"Start the live-edit session server"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

// DocGroup contains document lifecycle operations.
type DocGroup struct {
	Init     DocInitCmd     `cmd:"" help:"Create an empty document from a tier configuration"`
	Show     DocShowCmd     `cmd:"" help:"Summarize a document"`
	Validate DocValidateCmd `cmd:"" help:"Check a document against its tier configuration"`
}

// AnnGroup contains annotation edit operations. Every subcommand loads
// the document, applies one edit, and writes the document back.
type AnnGroup struct {
	Doc   string `required:"" help:"Document path" type:"existingfile"`
	Tiers string `required:"" help:"Tier configuration JSON path" type:"existingfile"`

	Create   AnnCreateCmd   `cmd:"" help:"Create an annotation"`
	Move     AnnMoveCmd     `cmd:"" help:"Move an annotation to a new span"`
	SetValue AnnSetValueCmd `cmd:"" help:"Set an annotation's transcription value"`
	Delete   AnnDeleteCmd   `cmd:"" help:"Delete an annotation and its dependents"`
	List     AnnListCmd     `cmd:"" help:"List annotations"`
}

// ProjectGroup contains project library operations.
type ProjectGroup struct {
	DB string `help:"Library database path" default:"tierline.db" type:"path"`

	Save      ProjectSaveCmd      `cmd:"" help:"Save a document into the library"`
	Load      ProjectLoadCmd      `cmd:"" help:"Load a document from the library"`
	List      ProjectListCmd      `cmd:"" help:"List documents in the library"`
	Delete    ProjectDeleteCmd    `cmd:"" help:"Delete a document and its history"`
	Revisions ProjectRevisionsCmd `cmd:"" help:"List or restore saved revisions"`
}

// BundleGroup contains bundle archive operations.
type BundleGroup struct {
	Pack   BundlePackCmd   `cmd:"" help:"Pack a document and its companions into a bundle"`
	Unpack BundleUnpackCmd `cmd:"" help:"Unpack a bundle into a directory"`
	Verify BundleVerifyCmd `cmd:"" help:"Verify bundle integrity"`
}

// FormatGroup contains format detection and interchange operations.
type FormatGroup struct {
	Detect DetectCmd       `cmd:"" help:"Probe a file against all format handlers"`
	Import FormatImportCmd `cmd:"" help:"Import a native file into a document"`
	Export FormatExportCmd `cmd:"" help:"Export a document to a native format"`
	List   FormatListCmd   `cmd:"" help:"List registered format handlers"`
}

// DocInitCmd creates an empty document from a tier configuration.
type DocInitCmd struct {
	Tiers string `required:"" help:"Tier configuration JSON path" type:"existingfile"`
	Out   string `required:"" help:"Output document path" type:"path"`
}

func (c *DocInitCmd) Run() error {
	h, err := tier.LoadConfig(c.Tiers)
	if err != nil {
		return fmt.Errorf("failed to load tier config: %w", err)
	}

	eng := annot.NewEngine(h)
	if err := annot.SaveDocument(c.Out, eng.Serialize()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	fmt.Printf("Created: %s\n", c.Out)
	for _, t := range h.Tiers() {
		if t.Kind == tier.Dependent {
			fmt.Printf("  %s (%s of %s)\n", t.Name, t.Kind, t.ParentTier)
		} else {
			fmt.Printf("  %s (%s)\n", t.Name, t.Kind)
		}
	}
	return nil
}

// DocShowCmd summarizes a document.
type DocShowCmd struct {
	Path string `arg:"" help:"Document path" type:"existingfile"`
	JSON bool   `help:"Output the raw document JSON"`
}

func (c *DocShowCmd) Run() error {
	doc, err := annot.LoadDocument(c.Path)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if c.JSON {
		data, err := doc.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize document: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	names := make([]string, 0, len(doc.Annotations))
	for name := range doc.Annotations {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	var minStart, maxEnd int64
	for _, list := range doc.Annotations {
		for _, a := range list {
			if total == 0 || a.Start < minStart {
				minStart = a.Start
			}
			if a.End > maxEnd {
				maxEnd = a.End
			}
			total++
		}
	}

	fmt.Printf("Document: %s\n", c.Path)
	fmt.Printf("  Tiers: %d\n", len(names))
	for _, name := range names {
		fmt.Printf("    %-20s %d annotation(s)\n", name, len(doc.Annotations[name]))
	}
	fmt.Printf("  Annotations: %d\n", total)
	fmt.Printf("  Time slots: %d\n", len(doc.TimeSlots))
	if total > 0 {
		fmt.Printf("  Extent: %s .. %s\n",
			timespan.FormatTimecode(minStart), timespan.FormatTimecode(maxEnd))
	}
	return nil
}

// DocValidateCmd checks a document against its tier configuration.
type DocValidateCmd struct {
	Path  string `arg:"" help:"Document path" type:"existingfile"`
	Tiers string `required:"" help:"Tier configuration JSON path" type:"existingfile"`
}

func (c *DocValidateCmd) Run() error {
	h, err := tier.LoadConfig(c.Tiers)
	if err != nil {
		return fmt.Errorf("failed to load tier config: %w", err)
	}
	doc, err := annot.LoadDocument(c.Path)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	problems := annot.ValidateDocument(doc, h)

	fmt.Printf("Document: %s\n", c.Path)
	if len(problems) == 0 {
		fmt.Println("  [OK] all annotations satisfy the tier configuration")
		return nil
	}
	for _, p := range problems {
		fmt.Printf("  [FAIL] %v\n", p)
	}
	return fmt.Errorf("validation failed: %d problem(s)", len(problems))
}

// openAnnEngine loads the document and tier configuration named by the
// ann group flags into an engine.
func openAnnEngine() (*annot.Engine, error) {
	h, err := tier.LoadConfig(CLI.Ann.Tiers)
	if err != nil {
		return nil, fmt.Errorf("failed to load tier config: %w", err)
	}
	doc, err := annot.LoadDocument(CLI.Ann.Doc)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	eng, err := annot.NewEngineFromDocument(doc, h)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return eng, nil
}

// saveAnnEngine writes the engine state back to the ann group document.
func saveAnnEngine(eng *annot.Engine) error {
	if err := annot.SaveDocument(CLI.Ann.Doc, eng.Serialize()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// AnnCreateCmd creates an annotation.
type AnnCreateCmd struct {
	Tier  string `arg:"" help:"Tier name"`
	Start string `arg:"" help:"Start timecode (e.g. 1:02.500)"`
	End   string `arg:"" help:"End timecode"`
	Label string `help:"Label text"`
	Value string `help:"Transcription value"`
}

func (c *AnnCreateCmd) Run() error {
	startMS, err := timespan.ParseTimecode(c.Start)
	if err != nil {
		return err
	}
	endMS, err := timespan.ParseTimecode(c.End)
	if err != nil {
		return err
	}

	eng, err := openAnnEngine()
	if err != nil {
		return err
	}

	a, err := eng.Create(c.Tier, startMS, endMS, c.Label)
	if err != nil {
		return err
	}
	if c.Value != "" {
		if a, err = eng.SetValue(a.ID, c.Value); err != nil {
			return err
		}
	}
	if err := saveAnnEngine(eng); err != nil {
		return err
	}

	fmt.Printf("Created: %s\n", a.ID)
	fmt.Printf("  Tier: %s\n", a.Tier)
	fmt.Printf("  Span: %s .. %s\n", timespan.FormatTimecode(a.Start), timespan.FormatTimecode(a.End))
	if a.ParentID != nil {
		fmt.Printf("  Parent: %s\n", *a.ParentID)
	}
	return nil
}

// AnnMoveCmd moves an annotation to a new span.
type AnnMoveCmd struct {
	ID    string `arg:"" help:"Annotation id"`
	Start string `arg:"" help:"New start timecode"`
	End   string `arg:"" help:"New end timecode"`
}

func (c *AnnMoveCmd) Run() error {
	startMS, err := timespan.ParseTimecode(c.Start)
	if err != nil {
		return err
	}
	endMS, err := timespan.ParseTimecode(c.End)
	if err != nil {
		return err
	}

	eng, err := openAnnEngine()
	if err != nil {
		return err
	}
	a, err := eng.Move(c.ID, startMS, endMS)
	if err != nil {
		return err
	}
	if err := saveAnnEngine(eng); err != nil {
		return err
	}

	fmt.Printf("Moved: %s\n", a.ID)
	fmt.Printf("  Span: %s .. %s\n", timespan.FormatTimecode(a.Start), timespan.FormatTimecode(a.End))
	return nil
}

// AnnSetValueCmd sets an annotation's transcription value.
type AnnSetValueCmd struct {
	ID    string `arg:"" help:"Annotation id"`
	Value string `arg:"" help:"New transcription value"`
}

func (c *AnnSetValueCmd) Run() error {
	eng, err := openAnnEngine()
	if err != nil {
		return err
	}
	a, err := eng.SetValue(c.ID, c.Value)
	if err != nil {
		return err
	}
	if err := saveAnnEngine(eng); err != nil {
		return err
	}

	fmt.Printf("Updated: %s\n", a.ID)
	fmt.Printf("  Value: %s\n", a.Value)
	return nil
}

// AnnDeleteCmd deletes an annotation and everything nested under it.
type AnnDeleteCmd struct {
	ID string `arg:"" help:"Annotation id"`
}

func (c *AnnDeleteCmd) Run() error {
	eng, err := openAnnEngine()
	if err != nil {
		return err
	}
	removed, err := eng.Delete(c.ID)
	if err != nil {
		return err
	}
	if err := saveAnnEngine(eng); err != nil {
		return err
	}

	fmt.Printf("Deleted: %s\n", c.ID)
	if len(removed) > 1 {
		fmt.Printf("  Cascade removed: %s\n", strings.Join(removed[1:], ", "))
	}
	return nil
}

// AnnListCmd lists annotations, sorted by start time within each tier.
type AnnListCmd struct {
	Tier string `arg:"" optional:"" help:"Tier to list (default: all tiers)"`
}

func (c *AnnListCmd) Run() error {
	eng, err := openAnnEngine()
	if err != nil {
		return err
	}

	names := eng.Hierarchy().Names()
	if c.Tier != "" {
		if _, ok := eng.Hierarchy().ByName(c.Tier); !ok {
			return fmt.Errorf("unknown tier: %s", c.Tier)
		}
		names = []string{c.Tier}
	}

	for _, name := range names {
		list := eng.QueryTierSorted(name)
		fmt.Printf("%s (%d):\n", name, len(list))
		for _, a := range list {
			span := fmt.Sprintf("%s .. %s", timespan.FormatTimecode(a.Start), timespan.FormatTimecode(a.End))
			text := a.Value
			if text == "" {
				text = a.Label
			}
			fmt.Printf("  %-6s %-24s %s\n", a.ID, span, text)
		}
	}
	return nil
}

// openLibrary opens the project library named by the project group flag.
func openLibrary() (*project.Library, error) {
	lib, err := project.Open(CLI.Project.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, nil
}

// loadTierConfig reads and parses a tier configuration file.
func loadTierConfig(path string) (*tier.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier config: %w", err)
	}
	cfg, err := tier.ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tier config: %w", err)
	}
	return cfg, nil
}

// ProjectSaveCmd saves a document into the library.
type ProjectSaveCmd struct {
	Name     string `arg:"" help:"Document name in the library"`
	Doc      string `required:"" help:"Document path" type:"existingfile"`
	Tiers    string `help:"Tier configuration JSON path" type:"existingfile"`
	Media    string `help:"Media file the timeline annotates" type:"path"`
	Duration string `help:"Media duration timecode"`
}

func (c *ProjectSaveCmd) Run() error {
	doc, err := annot.LoadDocument(c.Doc)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	var cfg *tier.Config
	if c.Tiers != "" {
		if cfg, err = loadTierConfig(c.Tiers); err != nil {
			return err
		}
	}

	var durationMS int64
	if c.Duration != "" {
		if durationMS, err = timespan.ParseTimecode(c.Duration); err != nil {
			return err
		}
	}

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	entry, err := lib.Save(context.Background(), project.SaveParams{
		Name:       c.Name,
		Document:   doc,
		Config:     cfg,
		MediaPath:  c.Media,
		DurationMS: durationMS,
	})
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	fmt.Printf("Saved: %s\n", entry.Name)
	fmt.Printf("  UUID: %s\n", entry.UUID)
	fmt.Printf("  SHA-256: %s\n", entry.SHA256)
	fmt.Printf("  Updated: %s\n", entry.UpdatedAt.Format(time.RFC3339))
	return nil
}

// ProjectLoadCmd loads a document from the library.
type ProjectLoadCmd struct {
	Name     string `arg:"" help:"Document name in the library"`
	Out      string `required:"" help:"Output document path" type:"path"`
	TiersOut string `help:"Output tier configuration path" type:"path"`
}

func (c *ProjectLoadCmd) Run() error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	stored, err := lib.Load(context.Background(), c.Name)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	if err := annot.SaveDocument(c.Out, stored.Document); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	fmt.Printf("Loaded: %s\n", stored.Name)
	fmt.Printf("  Output: %s\n", c.Out)

	if c.TiersOut != "" {
		if stored.Config == nil {
			return fmt.Errorf("document %q was saved without a tier configuration", c.Name)
		}
		data, err := stored.Config.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize tier config: %w", err)
		}
		if err := os.WriteFile(c.TiersOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write tier config: %w", err)
		}
		fmt.Printf("  Tiers: %s\n", c.TiersOut)
	}
	if stored.MediaPath != "" {
		fmt.Printf("  Media: %s\n", stored.MediaPath)
	}
	return nil
}

// ProjectListCmd lists documents in the library.
type ProjectListCmd struct{}

func (c *ProjectListCmd) Run() error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	entries, err := lib.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(entries) == 0 {
		fmt.Printf("No documents in %s\n", CLI.Project.DB)
		return nil
	}

	fmt.Printf("Documents in %s:\n\n", CLI.Project.DB)
	fmt.Printf("%-20s %-12s %-20s %s\n", "NAME", "DURATION", "UPDATED", "MEDIA")
	for _, e := range entries {
		duration := "-"
		if e.DurationMS > 0 {
			duration = timespan.FormatTimecode(e.DurationMS)
		}
		media := e.MediaPath
		if media == "" {
			media = "-"
		}
		fmt.Printf("%-20s %-12s %-20s %s\n",
			e.Name, duration, e.UpdatedAt.Format("2006-01-02 15:04:05"), media)
	}
	fmt.Printf("\nTotal: %d document(s)\n", len(entries))
	return nil
}

// ProjectDeleteCmd deletes a document and its revision history.
type ProjectDeleteCmd struct {
	Name string `arg:"" help:"Document name in the library"`
}

func (c *ProjectDeleteCmd) Run() error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	if err := lib.Delete(context.Background(), c.Name); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	fmt.Printf("Deleted: %s\n", c.Name)
	return nil
}

// ProjectRevisionsCmd lists a document's saved revisions, or restores one.
type ProjectRevisionsCmd struct {
	Name string `arg:"" help:"Document name in the library"`
	Seq  int    `help:"Restore this revision instead of listing"`
	Out  string `help:"Output path for the restored revision" type:"path"`
}

func (c *ProjectRevisionsCmd) Run() error {
	lib, err := openLibrary()
	if err != nil {
		return err
	}
	defer lib.Close()

	ctx := context.Background()

	if c.Seq > 0 {
		if c.Out == "" {
			return fmt.Errorf("--out is required when restoring a revision")
		}
		doc, err := lib.LoadRevision(ctx, c.Name, c.Seq)
		if err != nil {
			return fmt.Errorf("failed to load revision: %w", err)
		}
		if err := annot.SaveDocument(c.Out, doc); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
		fmt.Printf("Restored: %s revision %d\n", c.Name, c.Seq)
		fmt.Printf("  Output: %s\n", c.Out)
		return nil
	}

	revisions, err := lib.Revisions(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("failed to list revisions: %w", err)
	}

	fmt.Printf("Revisions of %s:\n\n", c.Name)
	fmt.Printf("%-5s %-22s %s\n", "SEQ", "SAVED", "UUID")
	for _, r := range revisions {
		fmt.Printf("%-5d %-22s %s\n", r.Seq, r.SavedAt.Format(time.RFC3339), r.UUID)
	}
	fmt.Printf("\nTotal: %d revision(s)\n", len(revisions))
	return nil
}

// BundlePackCmd packs a document and its companions into a bundle archive.
type BundlePackCmd struct {
	Doc         string   `required:"" help:"Document path" type:"existingfile"`
	Tiers       string   `help:"Tier configuration JSON path" type:"existingfile"`
	Media       string   `help:"Media file to ingest" type:"existingfile"`
	Export      []string `help:"Also render these formats into the bundle (e.g. eaf,csv)"`
	Out         string   `required:"" help:"Output archive path" type:"path"`
	Compression string   `help:"Compression algorithm" enum:"xz,gzip" default:"xz"`
}

func (c *BundlePackCmd) Run() error {
	if err := validation.ValidatePath(c.Doc); err != nil {
		return fmt.Errorf("invalid document path: %w", err)
	}
	if err := validation.ValidatePath(c.Out); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "tierline-pack-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	b, err := bundle.New(tempDir)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}

	doc, err := annot.LoadDocument(c.Doc)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	art, err := b.AddDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	fmt.Printf("Added: %s (%d bytes)\n", art.ID, art.SizeBytes)

	var cfg *tier.Config
	if c.Tiers != "" {
		if cfg, err = loadTierConfig(c.Tiers); err != nil {
			return err
		}
		if art, err = b.AddTierConfig(cfg); err != nil {
			return fmt.Errorf("failed to add tier config: %w", err)
		}
		fmt.Printf("Added: %s (%d bytes)\n", art.ID, art.SizeBytes)
	}

	if c.Media != "" {
		if art, err = b.IngestFile(c.Media); err != nil {
			return fmt.Errorf("failed to ingest media: %w", err)
		}
		fmt.Printf("Added: %s (%d bytes)\n", art.ID, art.SizeBytes)
	}

	base := strings.TrimSuffix(filepath.Base(c.Doc), filepath.Ext(c.Doc))
	for _, name := range c.Export {
		h, ok := formats.Get(name)
		if !ok {
			return fmt.Errorf("unknown format: %s", name)
		}
		data, err := h.Export(doc, cfg)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", name, err)
		}
		if art, err = b.AddExport(base+h.Extensions()[0], name, data); err != nil {
			return fmt.Errorf("failed to add %s export: %w", name, err)
		}
		fmt.Printf("Added: %s (%d bytes)\n", art.ID, art.SizeBytes)
	}

	if err := b.SaveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}

	opts := &bundle.PackOptions{Compression: bundle.CompressionType(c.Compression)}
	if err := b.PackWithOptions(c.Out, opts); err != nil {
		return fmt.Errorf("failed to pack bundle: %w", err)
	}

	fmt.Printf("Created: %s (%s)\n", c.Out, c.Compression)
	return nil
}

// BundleUnpackCmd unpacks a bundle archive into a directory.
type BundleUnpackCmd struct {
	Archive string `arg:"" help:"Path to bundle archive" type:"existingfile"`
	Out     string `required:"" help:"Output directory" type:"path"`
}

func (c *BundleUnpackCmd) Run() error {
	b, err := bundle.Unpack(c.Archive, c.Out)
	if err != nil {
		return fmt.Errorf("failed to unpack bundle: %w", err)
	}

	fmt.Printf("Unpacked: %s\n", c.Archive)
	fmt.Printf("  Version: %s\n", b.Manifest.BundleVersion)
	fmt.Printf("  Created: %s\n", b.Manifest.CreatedAt)
	fmt.Printf("  Artifacts: %d\n", len(b.Manifest.Artifacts))
	for _, id := range sortedArtifactIDs(b.Manifest) {
		a := b.Manifest.Artifacts[id]
		fmt.Printf("    [%s] %s (%d bytes)\n", a.Kind, id, a.SizeBytes)
	}
	fmt.Printf("  Output: %s\n", c.Out)
	return nil
}

// BundleVerifyCmd verifies bundle integrity.
type BundleVerifyCmd struct {
	Archive string `arg:"" help:"Path to bundle archive" type:"existingfile"`
}

func (c *BundleVerifyCmd) Run() error {
	tempDir, err := os.MkdirTemp("", "tierline-verify-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	b, err := bundle.Unpack(c.Archive, tempDir)
	if err != nil {
		return fmt.Errorf("failed to unpack bundle: %w", err)
	}

	fmt.Printf("Bundle: %s\n", c.Archive)
	fmt.Printf("  Version: %s\n", b.Manifest.BundleVersion)
	fmt.Printf("  Created: %s\n", b.Manifest.CreatedAt)
	fmt.Printf("  Artifacts: %d\n", len(b.Manifest.Artifacts))

	if errs := b.Verify(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("  [FAIL] %v\n", e)
		}
		return fmt.Errorf("verification failed: %d error(s)", len(errs))
	}

	for _, id := range sortedArtifactIDs(b.Manifest) {
		a := b.Manifest.Artifacts[id]
		fmt.Printf("  [OK] %s (%d bytes)\n", id, a.SizeBytes)
	}
	fmt.Println("Verification passed!")
	return nil
}

func sortedArtifactIDs(m *bundle.Manifest) []string {
	ids := make([]string, 0, len(m.Artifacts))
	for id := range m.Artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DetectCmd probes a file against every registered format handler.
type DetectCmd struct {
	Path string `arg:"" help:"Path to file to detect" type:"existingpath"`
}

func (c *DetectCmd) Run() error {
	path, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	fmt.Printf("Detecting format of: %s\n\n", path)

	for _, h := range formats.Handlers() {
		result, err := h.Detect(path)
		if err != nil {
			fmt.Printf("  %s: error (%v)\n", h.Name(), err)
			continue
		}
		if result.Detected {
			fmt.Printf("  [MATCH] %s\n", h.Name())
		} else {
			fmt.Printf("  [no]    %s: %s\n", h.Name(), result.Reason)
		}
	}
	return nil
}

// FormatImportCmd imports a native file into a document.
type FormatImportCmd struct {
	Path     string `arg:"" help:"Path to file to import" type:"existingfile"`
	From     string `help:"Format handler to use (default: detect)"`
	Out      string `required:"" help:"Output document path" type:"path"`
	TiersOut string `help:"Output tier configuration path" type:"path"`
}

func (c *FormatImportCmd) Run() error {
	name := c.From
	if name == "" {
		result, err := formats.DetectFile(c.Path)
		if err != nil {
			return fmt.Errorf("failed to detect format: %w", err)
		}
		if !result.Detected {
			return fmt.Errorf("no format handler claims %s: %s", c.Path, result.Reason)
		}
		name = result.Format
	}

	h, ok := formats.Get(name)
	if !ok {
		return fmt.Errorf("unknown format: %s", name)
	}

	if info, err := os.Stat(c.Path); err == nil && info.Size() > validation.MaxFileSize {
		return fmt.Errorf("%s exceeds the %d MB import limit", c.Path, validation.MaxFileSize>>20)
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	result, err := h.Import(data)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if err := annot.SaveDocument(c.Out, result.Document); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	total := 0
	for _, list := range result.Document.Annotations {
		total += len(list)
	}

	fmt.Printf("Imported: %s (%s)\n", c.Path, name)
	if result.Config != nil {
		fmt.Printf("  Tiers: %d\n", len(result.Config.Tiers))
	}
	fmt.Printf("  Annotations: %d\n", total)
	fmt.Printf("  Output: %s\n", c.Out)

	if c.TiersOut != "" {
		if result.Config == nil {
			return fmt.Errorf("format %s carries no tier configuration", name)
		}
		cfgData, err := result.Config.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize tier config: %w", err)
		}
		if err := os.WriteFile(c.TiersOut, cfgData, 0o644); err != nil {
			return fmt.Errorf("failed to write tier config: %w", err)
		}
		fmt.Printf("  Tiers out: %s\n", c.TiersOut)
	}
	return nil
}

// FormatExportCmd exports a document to a native format.
type FormatExportCmd struct {
	Doc   string `required:"" help:"Document path" type:"existingfile"`
	Tiers string `help:"Tier configuration JSON path" type:"existingfile"`
	To    string `required:"" help:"Target format"`
	Out   string `required:"" help:"Output path" type:"path"`
}

func (c *FormatExportCmd) Run() error {
	doc, err := annot.LoadDocument(c.Doc)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	var cfg *tier.Config
	if c.Tiers != "" {
		if cfg, err = loadTierConfig(c.Tiers); err != nil {
			return err
		}
	}

	h, ok := formats.Get(c.To)
	if !ok {
		return fmt.Errorf("unknown format: %s", c.To)
	}

	data, err := h.Export(doc, cfg)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := os.WriteFile(c.Out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Exported: %s\n", c.Out)
	fmt.Printf("  Format: %s\n", c.To)
	fmt.Printf("  Size: %d bytes\n", len(data))
	return nil
}

// FormatListCmd lists registered format handlers.
type FormatListCmd struct{}

func (c *FormatListCmd) Run() error {
	fmt.Println("Registered formats:")
	for _, h := range formats.Handlers() {
		fmt.Printf("  %-10s %s\n", h.Name(), strings.Join(h.Extensions(), ", "))
	}
	return nil
}

// ServeCmd starts the live-edit session server.
type ServeCmd struct {
	Port      int    `help:"HTTP server port" default:"8080"`
	Tiers     string `required:"" help:"Tier configuration JSON path" type:"existingfile"`
	Doc       string `help:"Document to edit (created on save if missing)" type:"path"`
	Duration  string `help:"Media duration timecode bounding annotations"`
	LogLevel  string `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `help:"Log output format" enum:"json,text" default:"json"`
}

func (c *ServeCmd) Run() error {
	logging.InitLogger(logging.ParseLevel(c.LogLevel), logging.ParseFormat(c.LogFormat))

	h, err := tier.LoadConfig(c.Tiers)
	if err != nil {
		return fmt.Errorf("failed to load tier config: %w", err)
	}

	var doc *annot.Document
	if c.Doc != "" {
		if _, err := os.Stat(c.Doc); err == nil {
			if doc, err = annot.LoadDocument(c.Doc); err != nil {
				return fmt.Errorf("failed to load document: %w", err)
			}
		}
	}

	var durationMS int64
	if c.Duration != "" {
		if durationMS, err = timespan.ParseTimecode(c.Duration); err != nil {
			return err
		}
	}

	srv, err := server.New(server.Config{
		Port:       c.Port,
		DocPath:    c.Doc,
		Hierarchy:  h,
		Document:   doc,
		DurationMS: durationMS,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := sqlite.GetInfo()
	fmt.Printf("tierline version %s\n", version)
	fmt.Printf("  SQLite driver: %s (%s)\n", info.Package, info.DriverType)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("tierline"),
		kong.Description("Tiered interval annotation engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
