package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	db "github.com/markdave123-py/ragdesk/internal/core/database"
	"github.com/markdave123-py/ragdesk/internal/core/vectorstore"
)

func newStores(t *testing.T) (*db.DatabaseClient, *vectorstore.BoltStore) {
	t.Helper()
	dir := t.TempDir()

	client, err := db.OpenSqlite(context.Background(), filepath.Join(dir, "ragdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	vectors, err := vectorstore.NewBoltStore(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	return client, vectors
}
