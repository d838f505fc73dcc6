// Package bundle packs an annotation session into a portable archive.
// A bundle is a tar archive (XZ by default, gzip optionally) holding a
// manifest.json and a content-addressed blobs/ tree with the session's
// document, tier configuration, exports, and media sidecars.
package bundle

import (
	"encoding/json"
	"time"

	"github.com/tierline/tierline/core/blob"
)

// Version is the current bundle format version.
const Version = "1.0.0"

// Artifact kinds recorded in the manifest.
const (
	KindDocument   = "document"
	KindTierConfig = "tier-config"
	KindExport     = "export"
	KindMedia      = "media"
)

// Fixed artifact IDs for the two singleton payloads of a session.
const (
	DocumentArtifactID   = "document"
	TierConfigArtifactID = "tiers"
)

// Manifest describes the contents of a bundle (manifest.json).
type Manifest struct {
	BundleVersion string               `json:"bundle_version"`
	CreatedAt     string               `json:"created_at"`
	Tool          ToolInfo             `json:"tool"`
	Blobs         BlobIndex            `json:"blobs"`
	Artifacts     map[string]*Artifact `json:"artifacts"`
}

// ToolInfo names the tool that wrote the bundle.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BlobIndex indexes stored payloads by their SHA-256 digest.
type BlobIndex struct {
	BySHA256 map[string]*BlobRecord `json:"by_sha256"`
}

// BlobRecord describes one stored payload.
type BlobRecord struct {
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Path      string `json:"path"`
	MIME      string `json:"mime,omitempty"`
}

// Artifact is a named entry in the bundle backed by one stored payload.
type Artifact struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind"`
	OriginalName string      `json:"original_name,omitempty"`
	Format       string      `json:"format,omitempty"`
	Hashes       blob.Digest `json:"hashes"`
	SizeBytes    int64       `json:"size_bytes,omitempty"`
}

// NewManifest creates an empty manifest stamped with the current time.
func NewManifest() *Manifest {
	return &Manifest{
		BundleVersion: Version,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Tool: ToolInfo{
			Name:    "tierline",
			Version: Version,
		},
		Blobs: BlobIndex{
			BySHA256: make(map[string]*BlobRecord),
		},
		Artifacts: make(map[string]*Artifact),
	}
}

// ToJSON serializes the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Blobs.BySHA256 == nil {
		m.Blobs.BySHA256 = make(map[string]*BlobRecord)
	}
	if m.Artifacts == nil {
		m.Artifacts = make(map[string]*Artifact)
	}
	return &m, nil
}
