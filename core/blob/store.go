// Package blob provides content-addressed storage for bundle payloads.
// Payloads are keyed by their SHA-256 digest, so identical content is
// stored once no matter how many artifacts reference it. Every stored
// payload also gets a BLAKE3 pointer file, letting callers resolve a
// payload by either digest.
package blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var (
	// ErrBlobNotFound is returned when no payload matches the digest.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidHash is returned when a digest is not 64 lowercase hex chars.
	ErrInvalidHash = errors.New("invalid hash format")
)

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

func validHash(hash string) bool {
	return hashPattern.MatchString(hash)
}

// Store is a content-addressed payload store rooted at a directory.
// Payloads live under blobs/sha256/, BLAKE3 pointers under blobs/blake3/.
type Store struct {
	root string
}

// NewStore opens (creating if needed) a blob store rooted at root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{
		filepath.Join(root, "blobs", "sha256"),
		filepath.Join(root, "blobs", "blake3"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Put stores a payload and returns its digests. Content already present
// is not rewritten.
func (s *Store) Put(data []byte) (Digest, error) {
	d := DigestOf(data)

	path := s.pathFor(d.SHA256)
	if _, err := os.Stat(path); err != nil {
		if err := writeAtomic(path, data); err != nil {
			return Digest{}, err
		}
	}

	if err := s.writePointer(d); err != nil {
		return Digest{}, err
	}
	return d, nil
}

// PutFile stores the contents of the file at path.
func (s *Store) PutFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Digest{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Put(data)
}

// Get returns the payload with the given SHA-256 digest.
func (s *Store) Get(sha string) ([]byte, error) {
	if !validHash(sha) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.pathFor(sha))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// GetByBlake3 resolves a BLAKE3 digest through its pointer file and
// returns the payload.
func (s *Store) GetByBlake3(b3 string) ([]byte, error) {
	sha, err := s.lookupPointer(b3)
	if err != nil {
		return nil, err
	}
	return s.Get(sha)
}

// Has reports whether a payload with the given SHA-256 digest is stored.
func (s *Store) Has(sha string) bool {
	if !validHash(sha) {
		return false
	}
	_, err := os.Stat(s.pathFor(sha))
	return err == nil
}

// Verify re-hashes the stored payload and fails when the content no
// longer matches its digest.
func (s *Store) Verify(sha string) error {
	data, err := s.Get(sha)
	if err != nil {
		return err
	}
	if got := SHA256Of(data); got != sha {
		return fmt.Errorf("blob %s is corrupt: content hashes to %s", sha, got)
	}
	return nil
}

// pointer is the payload of a BLAKE3 pointer file.
type pointer struct {
	SHA256 string `json:"sha256"`
}

func (s *Store) writePointer(d Digest) error {
	path := s.pointerPathFor(d.BLAKE3)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.Marshal(pointer{SHA256: d.SHA256})
	if err != nil {
		return fmt.Errorf("failed to marshal pointer: %w", err)
	}
	return writeAtomic(path, data)
}

func (s *Store) lookupPointer(b3 string) (string, error) {
	if !validHash(b3) {
		return "", ErrInvalidHash
	}
	raw, err := os.ReadFile(s.pointerPathFor(b3))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrBlobNotFound
		}
		return "", fmt.Errorf("failed to read pointer: %w", err)
	}
	var p pointer
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("failed to parse pointer: %w", err)
	}
	return p.SHA256, nil
}

// pathFor returns the storage path for a SHA-256 digest, sharded by the
// first two hex characters.
func (s *Store) pathFor(sha string) string {
	return filepath.Join(s.root, "blobs", "sha256", sha[:2], sha)
}

func (s *Store) pointerPathFor(b3 string) string {
	return filepath.Join(s.root, "blobs", "blake3", b3[:2], b3+".json")
}

// writeAtomic writes data to a temp file in the target directory and
// renames it into place, so a crash never leaves a partial payload at
// its final name.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s into place: %w", path, err)
	}
	return nil
}
