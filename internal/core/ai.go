package core

import (
	"context"

	"github.com/markdave123-py/ragdesk/internal/models"
)

// DecodingParams are the sampling knobs forwarded to the inference engine.
// Zero values mean "engine default". Backends ignore knobs they lack.
type DecodingParams struct {
	Temperature     float64
	TopP            float64
	MaxTokens       int
	Stop            []string
	PresencePenalty float64
	RepeatPenalty   float64
}

type CompletionRequest struct {
	System string
	Prompt string
	Params DecodingParams
}

type ChatRequest struct {
	System string
	Turns  []models.Turn
	Params DecodingParams
}

// TokenStream yields reply fragments. Next returns io.EOF after the last one.
type TokenStream interface {
	Next() (string, error)
	Close() error
}

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	ChatStream(ctx context.Context, req ChatRequest) (TokenStream, error)
}
