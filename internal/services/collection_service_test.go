package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

func TestSanitizeCollectionName(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "My Notes", want: "My_Notes"},
		{in: "  a!!b  ", want: "a_b"},
		{in: "__x__", want: "x"},
		{in: "ok-name_1", want: "ok-name_1"},
		{in: "résumé 2024", want: "r_sum_2024"},
		{in: "%%%", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeCollectionName(tt.in), tt.in)
	}
}

func TestCollectionServiceFlow(t *testing.T) {
	store, vectors := newStores(t)
	svc := NewCollectionService(vectors, store, store)
	ctx := context.Background()

	name, err := svc.Create(ctx, "Team Docs!")
	require.NoError(t, err)
	assert.Equal(t, "Team_Docs", name)

	_, err = svc.Create(ctx, "***")
	assert.ErrorIs(t, err, ErrInvalidCollectionName)

	require.NoError(t, store.CreateDocument(ctx, &models.Document{
		ID: "d1", CollectionName: name, FileName: "a.pdf", StoredName: "a_Team_Docs_1.pdf",
		Summary: models.SummaryInProgress, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.CreateDocument(ctx, &models.Document{
		ID: "d2", CollectionName: name, FileName: "b.pdf", StoredName: "b_Team_Docs_1.pdf", CreatedAt: time.Now(),
	}))

	sum, err := svc.Summary(ctx, name)
	require.NoError(t, err)
	require.Len(t, sum.Documents, 2)
	byName := map[string]string{}
	for _, d := range sum.Documents {
		byName[d.FileName] = d.Summary
	}
	assert.Equal(t, models.SummaryInProgress, byName["a.pdf"])
	assert.Equal(t, noSummary, byName["b.pdf"])

	_, err = NewSessionService(store).Create(ctx, "chat")
	require.NoError(t, err)
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProfileStats{TotalChats: 1, ArchivedChats: 0, FilesUploaded: 2, Collections: 1}, *stats)

	require.NoError(t, svc.Delete(ctx, name))
	docs, err := store.ListDocuments(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.ErrorIs(t, svc.Delete(ctx, name), core.ErrCollectionNotFound)
}
