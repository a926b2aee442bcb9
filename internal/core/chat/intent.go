package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

type Intent string

const (
	IntentKnowledge Intent = "knowledge"
	IntentHistory   Intent = "history"
)

// IntentClassifier decides whether a message needs a knowledge-base lookup.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) Intent
}

// AlwaysRetrieve treats every message as a knowledge question.
type AlwaysRetrieve struct{}

func (AlwaysRetrieve) Classify(context.Context, string) Intent { return IntentKnowledge }

// LLMClassifier asks the model. Unclear answers and errors fall back to
// knowledge so a misfire costs a lookup, not context.
type LLMClassifier struct {
	llm core.LLMProvider
	log *slog.Logger
}

func NewLLMClassifier(llm core.LLMProvider) *LLMClassifier {
	return &LLMClassifier{llm: llm, log: logger.NewModuleLogger("chat", "intent")}
}

func (c *LLMClassifier) Classify(ctx context.Context, message string) Intent {
	out, err := c.llm.Complete(ctx, core.CompletionRequest{
		Prompt: fmt.Sprintf(`Classify the user message into one of two categories:
1. "history": greetings, chitchat, or questions about earlier parts of this conversation.
2. "knowledge": questions that need documents or a knowledge base lookup.

User message: %q

Reply ONLY with "history" or "knowledge".
Classification:`, message),
		Params: core.DecodingParams{Temperature: 0.1, MaxTokens: 10, Stop: []string{"\n"}},
	})
	if err != nil {
		c.log.Warn("intent classification failed", "error", err)
		return IntentKnowledge
	}
	intent := Intent(strings.Trim(strings.ToLower(strings.TrimSpace(out)), `".`))
	c.log.Debug("intent classified", "intent", intent)
	if intent == IntentHistory {
		return IntentHistory
	}
	return IntentKnowledge
}

// NewClassifier picks a classifier by name: "always" (or "") or "llm".
func NewClassifier(name string, llm core.LLMProvider) (IntentClassifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "always":
		return AlwaysRetrieve{}, nil
	case "llm":
		return NewLLMClassifier(llm), nil
	default:
		return nil, fmt.Errorf("unsupported intent classifier %q", name)
	}
}

var (
	_ IntentClassifier = AlwaysRetrieve{}
	_ IntentClassifier = (*LLMClassifier)(nil)
)
