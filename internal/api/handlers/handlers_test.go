package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core/chat"
	db "github.com/markdave123-py/ragdesk/internal/core/database"
	ingestion "github.com/markdave123-py/ragdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/ragdesk/internal/core/vectorstore"
	"github.com/markdave123-py/ragdesk/internal/models"
	"github.com/markdave123-py/ragdesk/internal/services"
)

type fakeChat struct {
	frags []string
	got   chat.Request
}

func (f *fakeChat) Stream(_ context.Context, req chat.Request) iter.Seq[string] {
	f.got = req
	return func(yield func(string) bool) {
		for _, s := range f.frags {
			if !yield(s) {
				return
			}
		}
	}
}

type scriptedIngestor struct {
	collection string
	files      []models.SavedFile
}

func (s *scriptedIngestor) Run(_ context.Context, collection string, files []models.SavedFile, _ bool) iter.Seq[ingestion.ProgressEvent] {
	s.collection, s.files = collection, files
	return func(yield func(ingestion.ProgressEvent) bool) {
		for _, f := range files {
			if !yield(ingestion.ProgressEvent{Status: ingestion.EventCompleted, File: f.OriginalName, Message: "done"}) {
				return
			}
		}
		yield(ingestion.ProgressEvent{Status: ingestion.EventAllCompleted, Message: "all done"})
	}
}

type fixture struct {
	client   *db.DatabaseClient
	sessions *services.SessionService
	chat     *fakeChat
	ingest   *scriptedIngestor
	upload   string
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	client, err := db.OpenSqlite(context.Background(), filepath.Join(dir, "ragdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	vectors, err := vectorstore.NewBoltStore(filepath.Join(dir, "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	f := &fixture{
		client:   client,
		sessions: services.NewSessionService(client),
		chat:     &fakeChat{},
		ingest:   &scriptedIngestor{},
		upload:   filepath.Join(dir, "uploads"),
	}
	docs := services.NewDocumentService(client, f.ingest, nil, "", f.upload)
	collections := services.NewCollectionService(vectors, client, client)

	chatH := NewChatHandler(f.chat, f.sessions)
	sessionH := NewSessionHandler(f.sessions)
	docH := NewDocumentHandler(docs)
	colH := NewCollectionHandler(collections)

	r := chi.NewRouter()
	r.Post("/api/chat", chatH.Chat)
	r.Post("/api/upload", docH.Upload)
	r.Get("/api/history/{id}", sessionH.History)
	r.Patch("/api/sessions/{id}", sessionH.Update)
	r.Get("/api/sessions/archived", sessionH.Archived)
	r.Post("/api/collections", colH.Create)
	r.Get("/api/collections", colH.List)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestChatStreamsAndStoresReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.sessions.Create(ctx, "")
	require.NoError(t, err)

	f.chat.frags = []string{"Hel", "lo", chat.Trailer(2*time.Second, 2)}
	rec := f.do(http.MethodPost, "/api/chat", ChatRequest{
		SessionID:      sess.ID,
		CollectionName: "notes",
		Messages:       []models.Turn{{Role: "user", Content: "hi there"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Hello"+chat.Trailer(2*time.Second, 2), rec.Body.String())
	assert.Equal(t, "notes", f.chat.got.Collection)

	history, err := f.sessions.History(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi there", history[0].Content)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Equal(t, "Hello", history[1].Content)

	got, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi there", got.Title)
}

func TestChatWithoutStreaming(t *testing.T) {
	f := newFixture(t)
	f.chat.frags = []string{"four", chat.Trailer(1500*time.Millisecond, 1)}

	off := false
	rec := f.do(http.MethodPost, "/api/chat", ChatRequest{
		Messages: []models.Turn{{Role: "user", Content: "2+2?"}},
		Stream:   &off,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "four", resp.Content)
	assert.Equal(t, 1, resp.TokenCount)
	assert.InDelta(t, 1.5, resp.TimeTaken, 1e-9)
}

func TestChatRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/chat", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/chat", ChatRequest{
		SessionID: "missing",
		Messages:  []models.Turn{{Role: "user", Content: "hello"}},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionPatchArchivesAndRenames(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), "draft")
	require.NoError(t, err)

	title, archive := "final", true
	rec := f.do(http.MethodPatch, "/api/sessions/"+sess.ID, map[string]any{"title": title, "archive": archive})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/sessions/archived", nil)
	var archived []models.ChatSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &archived))
	require.Len(t, archived, 1)
	assert.Equal(t, "final", archived[0].Title)

	rec = f.do(http.MethodPatch, "/api/sessions/nope", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryOfUnknownSessionIsEmptyList(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/history/unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreateCollectionSanitizes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/collections", map[string]string{"name": " my docs!! "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","name":"my_docs"}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/collections", map[string]string{"name": "!!!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/collections", nil)
	assert.Contains(t, rec.Body.String(), `"my_docs"`)
}

func TestUploadStreamsNDJSON(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("collection_name", "notes"))
	require.NoError(t, mw.WriteField("summarize", "true"))
	for _, name := range []string{"a.txt", "b.txt"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var events []ingestion.ProgressEvent
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var ev ingestion.ProgressEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, "a.txt", events[0].File)
	assert.Equal(t, ingestion.EventAllCompleted, events[2].Status)

	require.Len(t, f.ingest.files, 2)
	for _, sf := range f.ingest.files {
		assert.True(t, strings.HasPrefix(filepath.Base(sf.Path), strings.TrimSuffix(sf.OriginalName, ".txt")+"_notes_"))
		data, err := os.ReadFile(sf.Path)
		require.NoError(t, err)
		assert.Equal(t, "content of "+sf.OriginalName, string(data))
	}
}

func TestUploadRequiresCollection(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "a.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadSanitizesCollectionName(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("collection_name", "x/../../escaped"))
	fw, err := mw.CreateFormFile("files", "a.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.ingest.files, 1)
	assert.Equal(t, "x_escaped", f.ingest.collection)
	rel, err := filepath.Rel(f.upload, f.ingest.files[0].Path)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rel, ".."), rel)
}
