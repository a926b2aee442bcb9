package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const documentColumns = `id, collection_name, file_name, stored_name, storage_url, content_type, summary, chunk_count, created_at`

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	q := c.q(`
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.CollectionName, doc.FileName, doc.StoredName, doc.StorageURL,
		doc.ContentType, doc.Summary, doc.ChunkCount, toNanos(doc.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := c.q(`SELECT ` + documentColumns + ` FROM documents WHERE id = ?`)
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns documents newest first; an empty collection lists all.
func (c *DatabaseClient) ListDocuments(ctx context.Context, collection string) ([]models.Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if collection == "" {
		rows, err = c.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	} else {
		q := c.q(`SELECT ` + documentColumns + ` FROM documents WHERE collection_name = ? ORDER BY created_at DESC`)
		rows, err = c.db.QueryContext(ctx, q, collection)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentSummary(ctx context.Context, id, summary string) error {
	res, err := c.db.ExecContext(ctx, c.q(`UPDATE documents SET summary = ? WHERE id = ?`), summary, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (c *DatabaseClient) ReplaceDocumentSummary(ctx context.Context, id, from, to string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		c.q(`UPDATE documents SET summary = ? WHERE id = ? AND summary = ?`), to, id, from)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *DatabaseClient) DeleteDocumentsByCollection(ctx context.Context, collection string) (int64, error) {
	res, err := c.db.ExecContext(ctx, c.q(`DELETE FROM documents WHERE collection_name = ?`), collection)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *DatabaseClient) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (*models.Document, error) {
	var (
		d       models.Document
		created int64
	)
	if err := r.Scan(&d.ID, &d.CollectionName, &d.FileName, &d.StoredName, &d.StorageURL,
		&d.ContentType, &d.Summary, &d.ChunkCount, &created); err != nil {
		return nil, err
	}
	d.CreatedAt = fromNanos(created)
	return &d, nil
}
