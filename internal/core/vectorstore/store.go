package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/core"
)

// New opens the vector store selected by VECTOR_BACKEND. pg is the shared
// Postgres pool and is only used by the pgvector backend.
func New(ctx context.Context, cfg *config.Config, pg *sql.DB) (core.VectorStore, error) {
	switch cfg.VectorBackend {
	case "bolt":
		return NewBoltStore(cfg.BoltPath)
	case "qdrant":
		return NewQdrantStore(ctx, cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantAPIKey, cfg.EmbedDim)
	case "pgvector":
		if pg == nil {
			return nil, fmt.Errorf("pgvector backend needs a postgres connection")
		}
		return NewPgVectorStore(ctx, pg)
	default:
		return nil, fmt.Errorf("unsupported VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}
