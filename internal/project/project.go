// Package project stores named annotation documents in a SQLite library.
// Every save keeps a bounded history of revisions, so an earlier state of
// a document can be inspected or restored after a bad edit session.
package project

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/errors"
	"github.com/tierline/tierline/core/sqlite"
	"github.com/tierline/tierline/core/tier"
)

// DefaultMaxRevisions is the per-document revision history bound used when
// Options.MaxRevisions is zero.
const DefaultMaxRevisions = 20

// Options configures a Library.
type Options struct {
	// MaxRevisions bounds the saved history per document. Zero means
	// DefaultMaxRevisions; a negative value keeps every revision.
	MaxRevisions int
}

// Library is a SQLite-backed collection of named annotation documents.
type Library struct {
	db           *sql.DB
	maxRevisions int
}

// Entry describes one stored document without its content.
type Entry struct {
	Name       string    `json:"name"`
	UUID       string    `json:"uuid"`
	MediaPath  string    `json:"media_path,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	SHA256     string    `json:"content_sha256"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stored is a loaded document together with its library entry. Config is
// nil when the document was saved without a tier configuration.
type Stored struct {
	Entry
	Document *annot.Document
	Config   *tier.Config
}

// SaveParams are the inputs to Save.
type SaveParams struct {
	// Name identifies the document within the library.
	Name string

	// Document is the state to save.
	Document *annot.Document

	// Config is the tier configuration, stored alongside the document.
	// Optional.
	Config *tier.Config

	// MediaPath records the media file the timeline annotates. Optional.
	MediaPath string

	// DurationMS records the media duration bound. Zero means unbounded.
	DurationMS int64
}

// Open opens or creates a library database at the given path.
func Open(dbPath string) (*Library, error) {
	return OpenWithOptions(dbPath, Options{})
}

// OpenWithOptions opens or creates a library database with explicit
// options.
func OpenWithOptions(dbPath string, opts Options) (*Library, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}

	max := opts.MaxRevisions
	if max == 0 {
		max = DefaultMaxRevisions
	}

	l := &Library{db: db, maxRevisions: max}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate library: %w", err)
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Library) Close() error {
	return l.db.Close()
}

func (l *Library) migrate() error {
	// Pragmas run as statements because the DSN syntax for them differs
	// between the two drivers.
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA foreign_keys=ON`,
	} {
		if _, err := l.db.Exec(pragma); err != nil {
			return err
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name           TEXT PRIMARY KEY,
		uuid           TEXT NOT NULL UNIQUE,
		tiers_json     TEXT,
		doc_json       TEXT NOT NULL,
		media_path     TEXT,
		duration_ms    INTEGER NOT NULL DEFAULT 0,
		content_sha256 TEXT NOT NULL,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS revisions (
		uuid          TEXT PRIMARY KEY,
		document_uuid TEXT NOT NULL REFERENCES documents(uuid),
		seq           INTEGER NOT NULL,
		doc_json      TEXT NOT NULL,
		saved_at      TEXT NOT NULL,
		UNIQUE (document_uuid, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_revisions_document ON revisions(document_uuid, seq DESC);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Save upserts a document under its name and appends a revision. The
// revision history is pruned to the configured bound.
func (l *Library) Save(ctx context.Context, p SaveParams) (*Entry, error) {
	if p.Name == "" {
		return nil, errors.NewValidation("name", "document name is required")
	}
	if p.Document == nil {
		return nil, errors.NewValidation("document", "document is required")
	}

	docJSON, err := p.Document.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	sum := sha256.Sum256(docJSON)
	contentHash := hex.EncodeToString(sum[:])

	var tiersJSON *string
	if p.Config != nil {
		b, err := p.Config.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("serialize tier config: %w", err)
		}
		s := string(b)
		tiersJSON = &s
	}

	var mediaPath *string
	if p.MediaPath != "" {
		mediaPath = &p.MediaPath
	}

	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var docUUID, createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT uuid, created_at FROM documents WHERE name = ?`, p.Name).
		Scan(&docUUID, &createdAt)
	switch {
	case err == sql.ErrNoRows:
		docUUID = uuid.New().String()
		createdAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (name, uuid, tiers_json, doc_json, media_path, duration_ms, content_sha256, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, docUUID, tiersJSON, string(docJSON), mediaPath, p.DurationMS, contentHash, createdAt, now)
		if err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET tiers_json = ?, doc_json = ?, media_path = ?, duration_ms = ?, content_sha256 = ?, updated_at = ?
			 WHERE name = ?`,
			tiersJSON, string(docJSON), mediaPath, p.DurationMS, contentHash, now, p.Name)
		if err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
	}

	var lastSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM revisions WHERE document_uuid = ?`, docUUID).
		Scan(&lastSeq); err != nil {
		return nil, err
	}
	seq := lastSeq + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO revisions (uuid, document_uuid, seq, doc_json, saved_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), docUUID, seq, string(docJSON), now)
	if err != nil {
		return nil, fmt.Errorf("insert revision: %w", err)
	}

	if l.maxRevisions > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM revisions WHERE document_uuid = ? AND seq <= ?`,
			docUUID, seq-l.maxRevisions)
		if err != nil {
			return nil, fmt.Errorf("prune revisions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created, _ := time.Parse(time.RFC3339, createdAt)
	updated, _ := time.Parse(time.RFC3339, now)
	return &Entry{
		Name:       p.Name,
		UUID:       docUUID,
		MediaPath:  p.MediaPath,
		DurationMS: p.DurationMS,
		SHA256:     contentHash,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}, nil
}

// Load returns a stored document by name.
func (l *Library) Load(ctx context.Context, name string) (*Stored, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT name, uuid, tiers_json, doc_json, media_path, duration_ms, content_sha256, created_at, updated_at
		 FROM documents WHERE name = ?`, name)

	var entry Entry
	var tiersJSON, mediaPath sql.NullString
	var docJSON, createdAt, updatedAt string
	err := row.Scan(&entry.Name, &entry.UUID, &tiersJSON, &docJSON, &mediaPath,
		&entry.DurationMS, &entry.SHA256, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("document", name)
	}
	if err != nil {
		return nil, err
	}

	entry.MediaPath = mediaPath.String
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	entry.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	doc, err := annot.ParseDocument([]byte(docJSON))
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", name, err)
	}

	stored := &Stored{Entry: entry, Document: doc}
	if tiersJSON.Valid {
		cfg, err := tier.ParseConfig([]byte(tiersJSON.String))
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", name, err)
		}
		stored.Config = cfg
	}
	return stored, nil
}

// List returns the library entries ordered by name.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT name, uuid, media_path, duration_ms, content_sha256, created_at, updated_at
		 FROM documents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var mediaPath sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&e.Name, &e.UUID, &mediaPath, &e.DurationMS, &e.SHA256, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.MediaPath = mediaPath.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes a document and its revision history.
func (l *Library) Delete(ctx context.Context, name string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var docUUID string
	err = tx.QueryRowContext(ctx,
		`SELECT uuid FROM documents WHERE name = ?`, name).Scan(&docUUID)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("document", name)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM revisions WHERE document_uuid = ?`, docUUID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE name = ?`, name); err != nil {
		return err
	}
	return tx.Commit()
}
