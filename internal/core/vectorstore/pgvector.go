package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

var _ core.VectorStore = (*PgVectorStore)(nil)

const pgvectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_collections (
    name       TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_chunks (
    collection_name TEXT NOT NULL REFERENCES vector_collections (name) ON DELETE CASCADE,
    id              TEXT NOT NULL,
    document_id     TEXT NOT NULL,
    text            TEXT NOT NULL,
    embedding       vector NOT NULL,
    metadata        JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (collection_name, id)
);
`

// PgVectorStore keeps chunk embeddings in Postgres next to the relational
// tables, sharing the same pool.
type PgVectorStore struct {
	db *sql.DB
}

func NewPgVectorStore(ctx context.Context, db *sql.DB) (*PgVectorStore, error) {
	if _, err := db.ExecContext(ctx, pgvectorSchema); err != nil {
		return nil, fmt.Errorf("pgvector schema: %w", err)
	}
	return &PgVectorStore{db: db}, nil
}

func (s *PgVectorStore) CreateCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	return err
}

func (s *PgVectorStore) DeleteCollection(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vector_collections WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrCollectionNotFound
	}
	return nil
}

func (s *PgVectorStore) ListCollections(ctx context.Context) ([]models.CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, COUNT(d.id)
		FROM vector_collections c
		LEFT JOIN document_chunks d ON d.collection_name = c.name
		GROUP BY c.name
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CollectionInfo
	for rows.Next() {
		var ci models.CollectionInfo
		if err := rows.Scan(&ci.Name, &ci.Count); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

// Upsert writes chunks in a single transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vector_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, collection); err != nil {
		_ = tx.Rollback()
		return err
	}

	const q = `
		INSERT INTO document_chunks (collection_name, id, document_id, text, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collection_name, id) DO UPDATE
		SET document_id = EXCLUDED.document_id, text = EXCLUDED.text,
		    embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata())
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			collection, ch.ID, ch.DocumentID, ch.Text, pgvector.NewVector(ch.Embedding), string(meta),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// Query finds the top-k chunks by cosine distance.
func (s *PgVectorStore) Query(ctx context.Context, collection string, vec []float32, k int) ([]models.RetrievedChunk, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`, collection).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, core.ErrCollectionNotFound
	}

	const q = `
		SELECT id, text, metadata, 1 - (embedding <=> $2) AS score
		FROM document_chunks
		WHERE collection_name = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, collection, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetrievedChunk
	for rows.Next() {
		var (
			hit   models.RetrievedChunk
			meta  []byte
			score float64
		)
		if err := rows.Scan(&hit.ID, &hit.Text, &meta, &score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", hit.ID, err)
		}
		hit.Score = float32(score)
		out = append(out, hit)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool belongs to the database client.
func (s *PgVectorStore) Close() error {
	return nil
}
