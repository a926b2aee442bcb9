package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/models"
)

type fragStream struct {
	frags  []string
	err    error
	closed bool
}

func (s *fragStream) Next() (string, error) {
	if len(s.frags) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	f := s.frags[0]
	s.frags = s.frags[1:]
	return f, nil
}

func (s *fragStream) Close() error { s.closed = true; return nil }

type fakeLLM struct {
	core.LLMProvider
	stream   *fragStream
	startErr error
	got      core.ChatRequest
}

func (f *fakeLLM) ChatStream(_ context.Context, req core.ChatRequest) (core.TokenStream, error) {
	f.got = req
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.stream, nil
}

type fakeEmbedder struct {
	texts []string
	err   error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	return [][]float32{{1, 0}}, nil
}

type fakeVectors struct {
	core.VectorStore
	hits       []models.RetrievedChunk
	err        error
	collection string
	k          int
}

func (f *fakeVectors) Query(_ context.Context, collection string, _ []float32, k int) ([]models.RetrievedChunk, error) {
	f.collection, f.k = collection, k
	return f.hits, f.err
}

type historyOnly struct{}

func (historyOnly) Classify(context.Context, string) Intent { return IntentHistory }

func collect(seq func(func(string) bool)) []string {
	var out []string
	seq(func(s string) bool {
		out = append(out, s)
		return true
	})
	return out
}

func userTurn(s string) models.Turn { return models.Turn{Role: "user", Content: s} }

func TestStreamWithoutCollection(t *testing.T) {
	llm := &fakeLLM{stream: &fragStream{frags: []string{"Hello", " there"}}}
	emb := &fakeEmbedder{}
	o := NewOrchestrator(llm, emb, &fakeVectors{}, Config{})

	out := collect(o.Stream(context.Background(), Request{Turns: []models.Turn{userTurn("hi")}}))

	require.Len(t, out, 3)
	assert.Equal(t, []string{"Hello", " there"}, out[:2])
	m, ok := ParseMetrics(strings.Join(out, ""))
	require.True(t, ok)
	assert.Equal(t, 2, m.Tokens)
	assert.Empty(t, emb.texts)
	assert.Equal(t, systemPrompt, llm.got.System)
	assert.Equal(t, "hi", llm.got.Turns[0].Content)
	assert.True(t, llm.stream.closed)
}

func TestStreamSplicesContextIntoUserTurn(t *testing.T) {
	llm := &fakeLLM{stream: &fragStream{frags: []string{"ok"}}}
	emb := &fakeEmbedder{}
	vec := &fakeVectors{hits: []models.RetrievedChunk{{Text: "alpha"}, {Text: "beta"}}}
	o := NewOrchestrator(llm, emb, vec, Config{RetrievedDocs: 4})

	collect(o.Stream(context.Background(), Request{
		Turns:      []models.Turn{userTurn("what is alpha?")},
		Collection: "notes",
	}))

	assert.Equal(t, []string{"what is alpha?"}, emb.texts)
	assert.Equal(t, "notes", vec.collection)
	assert.Equal(t, 4, vec.k)
	require.Len(t, llm.got.Turns, 1)
	assert.Equal(t,
		"Context:\nRefer to the following context:\nalpha\nbeta\n\nQuestion:\nwhat is alpha?",
		llm.got.Turns[0].Content)
}

func TestStreamAppendsContextToAssistantTurn(t *testing.T) {
	got := splice([]models.Turn{{Role: models.RoleAssistant, Content: "earlier"}}, "ctx")
	assert.Equal(t, "earlier\n\nContext:\nctx", got[0].Content)
}

func TestStreamWindowAndRoles(t *testing.T) {
	llm := &fakeLLM{stream: &fragStream{}}
	o := NewOrchestrator(llm, &fakeEmbedder{}, &fakeVectors{}, Config{HistoryWindow: 3})

	req := Request{Turns: []models.Turn{
		{Role: "user", Content: "one"},
		{Role: "ai", Content: "two"},
		{Role: "system", Content: "ignored"},
		{Role: "Human", Content: "three"},
		{Role: "bot", Content: "four"},
	}}
	collect(o.Stream(context.Background(), req))

	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Content: "three"},
		{Role: models.RoleAssistant, Content: "four"},
	}, llm.got.Turns)
	assert.Equal(t, "ignored", req.Turns[2].Content)
}

func TestStreamRetrievalFailureDegrades(t *testing.T) {
	for name, o := range map[string]*Orchestrator{
		"embed": NewOrchestrator(&fakeLLM{stream: &fragStream{frags: []string{"x"}}},
			&fakeEmbedder{err: errors.New("embed down")}, &fakeVectors{}, Config{}),
		"query": NewOrchestrator(&fakeLLM{stream: &fragStream{frags: []string{"x"}}},
			&fakeEmbedder{}, &fakeVectors{err: core.ErrCollectionNotFound}, Config{}),
	} {
		t.Run(name, func(t *testing.T) {
			out := collect(o.Stream(context.Background(), Request{
				Turns: []models.Turn{userTurn("q")}, Collection: "gone",
			}))
			assert.Equal(t, "x", out[0])
			assert.Equal(t, "q", o.llm.(*fakeLLM).got.Turns[0].Content)
		})
	}
}

func TestStreamHistoryIntentSkipsRetrieval(t *testing.T) {
	emb := &fakeEmbedder{}
	o := NewOrchestrator(&fakeLLM{stream: &fragStream{}}, emb, &fakeVectors{}, Config{}, WithClassifier(historyOnly{}))

	collect(o.Stream(context.Background(), Request{Turns: []models.Turn{userTurn("hello again")}, Collection: "notes"}))
	assert.Empty(t, emb.texts)
}

func TestStreamInferenceErrorsStillEmitTrailer(t *testing.T) {
	mid := &fakeLLM{stream: &fragStream{frags: []string{"par", "tial"}, err: errors.New("connection reset")}}
	out := collect(NewOrchestrator(mid, &fakeEmbedder{}, &fakeVectors{}, Config{}).
		Stream(context.Background(), Request{Turns: []models.Turn{userTurn("q")}}))
	require.Len(t, out, 3)
	assert.True(t, strings.HasSuffix(out[2], "| Tokens: 2"))

	dead := &fakeLLM{startErr: errors.New("no model")}
	out = collect(NewOrchestrator(dead, &fakeEmbedder{}, &fakeVectors{}, Config{}).
		Stream(context.Background(), Request{Turns: []models.Turn{userTurn("q")}}))
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], MetricsMarker))
	assert.True(t, strings.HasSuffix(out[0], "| Tokens: 0"))
}

func TestStreamEmptyTurns(t *testing.T) {
	llm := &fakeLLM{stream: &fragStream{frags: []string{"never"}}}
	out := collect(NewOrchestrator(llm, &fakeEmbedder{}, &fakeVectors{}, Config{}).
		Stream(context.Background(), Request{Turns: []models.Turn{{Role: "system", Content: "x"}}}))
	require.Len(t, out, 1)
	assert.Empty(t, llm.got.Turns)
}

func TestStreamConsumerStopsEarly(t *testing.T) {
	llm := &fakeLLM{stream: &fragStream{frags: []string{"a", "b", "c"}}}
	o := NewOrchestrator(llm, &fakeEmbedder{}, &fakeVectors{}, Config{})

	var got []string
	o.Stream(context.Background(), Request{Turns: []models.Turn{userTurn("q")}})(func(s string) bool {
		got = append(got, s)
		return false
	})
	assert.Equal(t, []string{"a"}, got)
	assert.True(t, llm.stream.closed)
}
