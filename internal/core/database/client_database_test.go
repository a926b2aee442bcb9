package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

func newTestClient(t *testing.T) *DatabaseClient {
	t.Helper()
	c, err := OpenSqlite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	assert.Equal(t, q, dialectSqlite.rebind(q))
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, dialectPostgres.rebind(q))
}

func TestBootstrapIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.db")
	ctx := context.Background()

	c1, err := OpenSqlite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, c1.CreateDocument(ctx, &models.Document{ID: "d1", CollectionName: "c", FileName: "a.txt", StoredName: "a"}))
	require.NoError(t, c1.Close())

	c2, err := OpenSqlite(ctx, path)
	require.NoError(t, err)
	defer c2.Close()

	doc, err := c2.GetDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", doc.FileName)
}

func TestDocuments(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	older := &models.Document{ID: "d1", CollectionName: "legal", FileName: "a.pdf", StoredName: "a_legal_1",
		Summary: models.SummaryInProgress, ChunkCount: 3, CreatedAt: time.Now().Add(-time.Minute)}
	newer := &models.Document{ID: "d2", CollectionName: "legal", FileName: "b.pdf", StoredName: "b_legal_2",
		Summary: models.SummaryNotRequested, ChunkCount: 1}
	other := &models.Document{ID: "d3", CollectionName: "hr", FileName: "c.pdf", StoredName: "c_hr_3"}
	for _, d := range []*models.Document{older, newer, other} {
		require.NoError(t, c.CreateDocument(ctx, d))
	}

	docs, err := c.ListDocuments(ctx, "legal")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d2", docs[0].ID)
	assert.Equal(t, 3, docs[1].ChunkCount)

	all, err := c.ListDocuments(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ok, err := c.ReplaceDocumentSummary(ctx, "d1", models.SummaryInProgress, models.SummaryCancelled)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.ReplaceDocumentSummary(ctx, "d2", models.SummaryInProgress, models.SummaryCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.UpdateDocumentSummary(ctx, "d2", "done"))
	got, err := c.GetDocumentByID(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, "done", got.Summary)

	assert.ErrorIs(t, c.UpdateDocumentSummary(ctx, "missing", "x"), core.ErrNotFound)
	_, err = c.GetDocumentByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	n, err := c.DeleteDocumentsByCollection(ctx, "legal")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	count, err := c.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTasks(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, c.CreateTask(ctx, &models.Task{
			ID: id, DocumentID: "doc-" + id, Message: "Summarization started for " + id,
			Category: models.CategoryInfo, Status: models.StatusProcessing,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	ok, err := c.UpdateTask(ctx, "t1", models.TaskUpdate{Progress: 40})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.UpdateTask(ctx, "nope", models.TaskUpdate{Progress: 40})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.UpdateTask(ctx, "t2", models.TaskUpdate{
		Progress: 100, Status: models.StatusCompleted, Message: "Summary ready: t2", Category: models.CategorySuccess,
	})
	require.NoError(t, err)

	t1, err := c.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 40, t1.Progress)
	assert.Equal(t, models.StatusProcessing, t1.Status)
	assert.Equal(t, "Summarization started for t1", t1.Message)

	list, err := c.ListTasks(ctx, 50)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "t3", list[0].ID)

	failed, err := c.FailProcessingTasks(ctx, " (interrupted)")
	require.NoError(t, err)
	require.Len(t, failed, 2)
	for _, f := range failed {
		assert.Equal(t, models.StatusFailed, f.Status)
		assert.Contains(t, f.Message, " (interrupted)")
	}

	t3, err := c.GetTask(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, "Summarization started for t3 (interrupted)", t3.Message)
	assert.Equal(t, models.CategoryError, t3.Category)

	t2, err := c.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, t2.Status)

	require.NoError(t, c.MarkTaskRead(ctx, "t2"))
	require.NoError(t, c.MarkTaskRead(ctx, "t3"))
	cleared, err := c.ClearTasks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared)

	list, err = c.ListTasks(ctx, 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].ID)
}

func TestClearKeepsProcessingTasks(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateTask(ctx, &models.Task{ID: "p", Message: "m", Category: models.CategoryInfo, Status: models.StatusProcessing}))
	require.NoError(t, c.MarkTaskRead(ctx, "p"))

	n, err := c.ClearTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateSession(ctx, &models.ChatSession{ID: "s1", Title: "New Chat", CreatedAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, c.CreateSession(ctx, &models.ChatSession{ID: "s2", Title: "Quarterly Budget"}))

	for _, m := range []models.ChatMessage{
		{SessionID: "s1", Role: models.RoleUser, Content: "hello"},
		{SessionID: "s1", Role: models.RoleAssistant, Content: "hi there"},
	} {
		msg := m
		require.NoError(t, c.AddMessage(ctx, &msg))
		assert.NotZero(t, msg.ID)
	}

	msgs, err := c.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)

	found, err := c.ListSessions(ctx, false, "budget")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "s2", found[0].ID)

	require.NoError(t, c.UpdateSessionTitle(ctx, "s1", "hello..."))
	require.NoError(t, c.SetSessionArchived(ctx, "s1", true))
	assert.ErrorIs(t, c.UpdateSessionTitle(ctx, "zzz", "x"), core.ErrNotFound)

	archived, err := c.ListSessions(ctx, true, "")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "hello...", archived[0].Title)

	total, nArchived, err := c.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, nArchived)

	require.NoError(t, c.DeleteSession(ctx, "s1"))
	msgs, err = c.ListMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, c.DeleteSession(ctx, "s1"), core.ErrNotFound)
}
