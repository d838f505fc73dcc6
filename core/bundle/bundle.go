package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/blob"
	"github.com/tierline/tierline/core/errors"
	"github.com/tierline/tierline/core/tier"
	"github.com/ulikunitz/xz"
)

// Injectable for tests.
var (
	manifestToJSON = (*Manifest).ToJSON
	xzNewWriter    = xz.NewWriter
)

// CompressionType specifies the compression algorithm for bundle archives.
type CompressionType string

const (
	// CompressionXZ uses XZ/LZMA2 compression (default, best ratio).
	CompressionXZ CompressionType = "xz"
	// CompressionGzip uses gzip compression (stdlib, faster).
	CompressionGzip CompressionType = "gzip"
)

// PackOptions configures bundle packing behavior.
type PackOptions struct {
	// Compression specifies the compression algorithm. Defaults to XZ.
	Compression CompressionType
}

// DefaultPackOptions returns the default packing options (XZ compression).
func DefaultPackOptions() *PackOptions {
	return &PackOptions{
		Compression: CompressionXZ,
	}
}

// Bundle is an unpacked bundle workspace: a root directory holding the
// manifest and the blob store the artifacts point into.
type Bundle struct {
	root     string
	Manifest *Manifest
	store    *blob.Store
}

// New creates a new empty bundle workspace at the given root directory.
func New(root string) (*Bundle, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.NewIO("create directory", root, err)
	}

	store, err := blob.NewStore(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create blob store")
	}

	return &Bundle{
		root:     root,
		Manifest: NewManifest(),
		store:    store,
	}, nil
}

// Open opens an existing bundle workspace by reading its manifest.json.
func Open(root string) (*Bundle, error) {
	manifestPath := filepath.Join(root, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.NewIO("read", manifestPath, err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, errors.NewParse("manifest", manifestPath, err.Error())
	}

	store, err := blob.NewStore(root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open blob store")
	}

	return &Bundle{
		root:     root,
		Manifest: manifest,
		store:    store,
	}, nil
}

// Root returns the workspace directory of the bundle.
func (b *Bundle) Root() string {
	return b.root
}

// Store returns the underlying blob store.
func (b *Bundle) Store() *blob.Store {
	return b.store
}

// AddDocument stores a session document as the bundle's document artifact.
func (b *Bundle) AddDocument(doc *annot.Document) (*Artifact, error) {
	data, err := doc.ToJSON()
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize document")
	}
	return b.add(DocumentArtifactID, KindDocument, "document.json", "tierdoc", "application/json", data)
}

// AddTierConfig stores the tier configuration the document was edited under.
func (b *Bundle) AddTierConfig(cfg *tier.Config) (*Artifact, error) {
	data, err := cfg.ToJSON()
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize tier config")
	}
	return b.add(TierConfigArtifactID, KindTierConfig, "tiers.json", "", "application/json", data)
}

// AddExport stores an exported rendition of the document under the given
// file name and format id.
func (b *Bundle) AddExport(name, format string, data []byte) (*Artifact, error) {
	return b.add("export-"+artifactIDFor(name), KindExport, name, format, mimeFor(format), data)
}

// IngestFile stores a media sidecar or other loose file from disk.
func (b *Bundle) IngestFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	base := filepath.Base(path)
	return b.add(artifactIDFor(base), KindMedia, base, "", "", data)
}

// add stores data in the blob store and records it in the manifest. When
// the requested id is taken a numeric suffix is appended.
func (b *Bundle) add(id, kind, name, format, mime string, data []byte) (*Artifact, error) {
	d, err := b.store.Put(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to store payload")
	}

	b.Manifest.Blobs.BySHA256[d.SHA256] = &BlobRecord{
		SHA256:    d.SHA256,
		BLAKE3:    d.BLAKE3,
		SizeBytes: int64(len(data)),
		Path:      fmt.Sprintf("blobs/sha256/%s/%s", d.SHA256[:2], d.SHA256),
		MIME:      mime,
	}

	artifact := &Artifact{
		ID:           b.uniqueID(id),
		Kind:         kind,
		OriginalName: name,
		Format:       format,
		Hashes:       d,
		SizeBytes:    int64(len(data)),
	}
	b.Manifest.Artifacts[artifact.ID] = artifact
	return artifact, nil
}

func (b *Bundle) uniqueID(id string) string {
	if _, exists := b.Manifest.Artifacts[id]; !exists {
		return id
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", id, i)
		if _, exists := b.Manifest.Artifacts[candidate]; !exists {
			return candidate
		}
	}
}

// Artifact returns the manifest entry with the given id.
func (b *Bundle) Artifact(id string) (*Artifact, error) {
	a, ok := b.Manifest.Artifacts[id]
	if !ok {
		return nil, errors.NewNotFound("artifact", id)
	}
	return a, nil
}

// Data returns the payload bytes of an artifact.
func (b *Bundle) Data(id string) ([]byte, error) {
	a, err := b.Artifact(id)
	if err != nil {
		return nil, err
	}
	return b.store.Get(a.Hashes.SHA256)
}

// Document loads the bundled session document.
func (b *Bundle) Document() (*annot.Document, error) {
	data, err := b.Data(DocumentArtifactID)
	if err != nil {
		return nil, err
	}
	doc, err := annot.ParseDocument(data)
	if err != nil {
		return nil, errors.NewParse("document", "", err.Error())
	}
	return doc, nil
}

// TierConfig loads the bundled tier configuration.
func (b *Bundle) TierConfig() (*tier.Config, error) {
	data, err := b.Data(TierConfigArtifactID)
	if err != nil {
		return nil, err
	}
	cfg, err := tier.ParseConfig(data)
	if err != nil {
		return nil, errors.NewParse("tier config", "", err.Error())
	}
	return cfg, nil
}

// SaveManifest writes manifest.json into the bundle root.
func (b *Bundle) SaveManifest() error {
	data, err := manifestToJSON(b.Manifest)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	manifestPath := filepath.Join(b.root, "manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return errors.NewIO("write", manifestPath, err)
	}
	return nil
}

// Verify re-hashes every artifact payload against the manifest and
// returns one error per missing or corrupted payload.
func (b *Bundle) Verify() []error {
	ids := make([]string, 0, len(b.Manifest.Artifacts))
	for id := range b.Manifest.Artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var problems []error
	for _, id := range ids {
		a := b.Manifest.Artifacts[id]
		data, err := b.store.Get(a.Hashes.SHA256)
		if err != nil {
			problems = append(problems, fmt.Errorf("artifact %s: %w", id, err))
			continue
		}
		if got := blob.SHA256Of(data); got != a.Hashes.SHA256 {
			problems = append(problems, fmt.Errorf("artifact %s: payload hashes to %s, manifest says %s", id, got, a.Hashes.SHA256))
			continue
		}
		if a.Hashes.BLAKE3 != "" {
			if got := blob.Blake3Of(data); got != a.Hashes.BLAKE3 {
				problems = append(problems, fmt.Errorf("artifact %s: blake3 hashes to %s, manifest says %s", id, got, a.Hashes.BLAKE3))
			}
		}
	}
	return problems
}

// Pack packs the bundle into a tar.xz archive (default compression).
func (b *Bundle) Pack(archivePath string) error {
	return b.PackWithOptions(archivePath, DefaultPackOptions())
}

// PackWithOptions packs the bundle with the specified options.
func (b *Bundle) PackWithOptions(archivePath string, opts *PackOptions) error {
	if opts == nil {
		opts = DefaultPackOptions()
	}

	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer file.Close()

	var compressWriter io.WriteCloser
	switch opts.Compression {
	case CompressionGzip:
		compressWriter, err = gzip.NewWriterLevel(file, gzip.BestCompression)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
	case CompressionXZ:
		fallthrough
	default:
		compressWriter, err = xzNewWriter(file)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
	}
	defer compressWriter.Close()

	tarWriter := tar.NewWriter(compressWriter)
	defer tarWriter.Close()

	// manifest.json goes first so unpacking can stream.
	manifestData, err := manifestToJSON(b.Manifest)
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := writeToTar(tarWriter, "manifest.json", manifestData); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	blobsDir := filepath.Join(b.root, "blobs")
	if _, err := os.Stat(blobsDir); err == nil {
		if err := filepath.Walk(blobsDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			relPath, err := filepath.Rel(b.root, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return writeToTar(tarWriter, relPath, data)
		}); err != nil {
			return fmt.Errorf("failed to write payloads: %w", err)
		}
	}

	return nil
}

// DetectCompression detects the compression type of a bundle archive.
func DetectCompression(archivePath string) (CompressionType, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", errors.NewIO("open", archivePath, err)
	}
	defer file.Close()

	magic := make([]byte, 6)
	n, err := file.Read(magic)
	if err != nil {
		return "", errors.NewIO("read magic bytes", archivePath, err)
	}
	if n < 2 {
		return "", errors.NewValidation("archive", "file too small to detect compression")
	}

	// gzip magic: 1f 8b
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return CompressionGzip, nil
	}

	// XZ magic: fd 37 7a 58 5a 00
	if n >= 6 && magic[0] == 0xfd && magic[1] == 0x37 && magic[2] == 0x7a &&
		magic[3] == 0x58 && magic[4] == 0x5a && magic[5] == 0x00 {
		return CompressionXZ, nil
	}

	return "", errors.NewUnsupported("compression format", "unknown magic bytes")
}

// Unpack unpacks a bundle archive to the given directory, auto-detecting
// the compression format.
func Unpack(archivePath, destDir string) (*Bundle, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	compression, err := DetectCompression(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect compression: %w", err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	var decompressReader io.Reader
	switch compression {
	case CompressionGzip:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		decompressReader = gzReader
	case CompressionXZ:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		decompressReader = xzReader
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}

	tarReader := tar.NewReader(decompressReader)

	var manifest *Manifest

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}

		// Never extract outside the destination.
		cleanPath := filepath.Clean(header.Name)
		if strings.HasPrefix(cleanPath, "..") {
			continue
		}

		destPath := filepath.Join(destDir, cleanPath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create parent directory: %w", err)
			}

			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, fmt.Errorf("failed to read file data: %w", err)
			}
			if err := os.WriteFile(destPath, data, 0o644); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}

			if header.Name == "manifest.json" {
				manifest, err = ParseManifest(data)
				if err != nil {
					return nil, fmt.Errorf("failed to parse manifest: %w", err)
				}
			}
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("archive does not contain manifest.json")
	}

	store, err := blob.NewStore(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	return &Bundle{
		root:     destDir,
		Manifest: manifest,
		store:    store,
	}, nil
}

// writeToTar writes one file entry into the tar archive.
func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// artifactIDFor derives a manifest id from a file name.
func artifactIDFor(name string) string {
	id := strings.TrimSuffix(name, filepath.Ext(name))
	var result strings.Builder
	for _, c := range id {
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') || c == '.' || c == '_' || c == '-' || c == ':' {
			result.WriteRune(c)
		} else {
			result.WriteRune('_')
		}
	}
	if result.Len() == 0 {
		return "artifact"
	}
	return result.String()
}

func mimeFor(format string) string {
	switch format {
	case "tierdoc":
		return "application/json"
	case "eaf":
		return "application/xml"
	case "csv":
		return "text/csv"
	default:
		return ""
	}
}
