package chat

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
	"github.com/markdave123-py/ragdesk/internal/models"
)

const (
	DefaultRetrievedDocs = 3
	DefaultHistoryWindow = 2
)

const systemPrompt = "You are an intelligent AI assistant. You have access to the conversation history in the order the messages were sent. " +
	"Always answer based on the context of the previous messages. " +
	"If the user asks about previous topics or questions, refer to the history to provide the correct answer. " +
	"Respond to the user in a clear, concise and professional manner."

type Config struct {
	RetrievedDocs int
	HistoryWindow int
	Params        core.DecodingParams
}

type Request struct {
	Turns      []models.Turn
	Collection string
}

// Orchestrator answers a chat turn, optionally grounded in chunks retrieved
// from a collection, and streams the reply.
type Orchestrator struct {
	llm        core.LLMProvider
	embedder   core.EmbeddingProvider
	vectors    core.VectorStore
	classifier IntentClassifier
	cfg        Config
	log        *slog.Logger
}

type Option func(*Orchestrator)

func WithClassifier(c IntentClassifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

func NewOrchestrator(llm core.LLMProvider, embedder core.EmbeddingProvider, vectors core.VectorStore, cfg Config, opts ...Option) *Orchestrator {
	if cfg.RetrievedDocs <= 0 {
		cfg.RetrievedDocs = DefaultRetrievedDocs
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	o := &Orchestrator{
		llm:        llm,
		embedder:   embedder,
		vectors:    vectors,
		classifier: AlwaysRetrieve{},
		cfg:        cfg,
		log:        logger.NewModuleLogger("chat", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stream yields reply fragments as the model produces them, then exactly one
// metrics trailer. It never fails: retrieval problems drop the context and
// inference problems end the reply early.
func (o *Orchestrator) Stream(ctx context.Context, req Request) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := time.Now()
		tokens := 0

		turns := Window(req.Turns, o.cfg.HistoryWindow)
		if len(turns) == 0 {
			o.log.Warn("no usable turns in request", "turns", len(req.Turns))
			yield(Trailer(time.Since(start), tokens))
			return
		}

		if block := o.retrieve(ctx, req); block != "" {
			turns = splice(turns, block)
		}

		o.log.Info("sending chat request", "turns", len(turns), "collection", req.Collection)
		stream, err := o.llm.ChatStream(ctx, core.ChatRequest{
			System: systemPrompt,
			Turns:  turns,
			Params: o.cfg.Params,
		})
		if err != nil {
			o.log.Error("chat stream failed to start", "error", err)
			yield(Trailer(time.Since(start), tokens))
			return
		}
		defer stream.Close()

		for {
			frag, err := stream.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				o.log.Error("chat stream interrupted", "error", err, "tokens", tokens)
				break
			}
			tokens++
			if !yield(frag) {
				return
			}
		}

		elapsed := time.Since(start)
		o.log.Info("chat reply done", "tokens", tokens, "elapsed", elapsed)
		yield(Trailer(elapsed, tokens))
	}
}

// retrieve returns the context block for the latest user message, or "" when
// nothing should or could be retrieved.
func (o *Orchestrator) retrieve(ctx context.Context, req Request) string {
	if req.Collection == "" {
		return ""
	}
	question, ok := latestUserMessage(req.Turns)
	if !ok {
		return ""
	}
	if intent := o.classifier.Classify(ctx, question); intent != IntentKnowledge {
		o.log.Info("skipping retrieval", "intent", intent)
		return ""
	}

	vecs, err := o.embedder.EmbedTexts(ctx, []string{question})
	if err != nil || len(vecs) != 1 {
		o.log.Error("embed question failed, answering without context", "error", err)
		return ""
	}
	hits, err := o.vectors.Query(ctx, req.Collection, vecs[0], o.cfg.RetrievedDocs)
	if err != nil {
		o.log.Error("query collection failed, answering without context", "collection", req.Collection, "error", err)
		return ""
	}
	if len(hits) == 0 {
		o.log.Info("no chunks retrieved", "collection", req.Collection)
		return ""
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	o.log.Info("retrieved chunks", "collection", req.Collection, "count", len(hits))
	return "Refer to the following context:\n" + strings.Join(texts, "\n")
}

// splice places the context into the last turn: as a framed question when it
// is the user's, appended otherwise.
func splice(turns []models.Turn, block string) []models.Turn {
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	last := &out[len(out)-1]
	if last.Role == models.RoleUser {
		last.Content = "Context:\n" + block + "\n\nQuestion:\n" + last.Content
	} else {
		last.Content += "\n\nContext:\n" + block
	}
	return out
}
