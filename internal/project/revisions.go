package project

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/errors"
)

// Revision describes one saved snapshot of a document.
type Revision struct {
	UUID    string    `json:"uuid"`
	Seq     int       `json:"seq"`
	SavedAt time.Time `json:"saved_at"`
}

// Revisions lists a document's saved history, newest first.
func (l *Library) Revisions(ctx context.Context, name string) ([]Revision, error) {
	docUUID, err := l.uuidOf(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT uuid, seq, saved_at FROM revisions
		 WHERE document_uuid = ? ORDER BY seq DESC`, docUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []Revision
	for rows.Next() {
		var r Revision
		var savedAt string
		if err := rows.Scan(&r.UUID, &r.Seq, &savedAt); err != nil {
			return nil, err
		}
		r.SavedAt, _ = time.Parse(time.RFC3339, savedAt)
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// LoadRevision returns the document state saved as the given revision.
func (l *Library) LoadRevision(ctx context.Context, name string, seq int) (*annot.Document, error) {
	docUUID, err := l.uuidOf(ctx, name)
	if err != nil {
		return nil, err
	}

	var docJSON string
	err = l.db.QueryRowContext(ctx,
		`SELECT doc_json FROM revisions WHERE document_uuid = ? AND seq = ?`,
		docUUID, seq).Scan(&docJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("revision", fmt.Sprintf("%s#%d", name, seq))
	}
	if err != nil {
		return nil, err
	}

	doc, err := annot.ParseDocument([]byte(docJSON))
	if err != nil {
		return nil, fmt.Errorf("revision %s#%d: %w", name, seq, err)
	}
	return doc, nil
}

func (l *Library) uuidOf(ctx context.Context, name string) (string, error) {
	var docUUID string
	err := l.db.QueryRowContext(ctx,
		`SELECT uuid FROM documents WHERE name = ?`, name).Scan(&docUUID)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFound("document", name)
	}
	if err != nil {
		return "", err
	}
	return docUUID, nil
}
