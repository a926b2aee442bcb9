package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/markdave123-py/ragdesk/internal/config"
	"github.com/markdave123-py/ragdesk/internal/core"
)

// Providers bundles the inference backends chosen by LLM_BACKEND and
// EMBED_BACKEND.
type Providers struct {
	LLM      core.LLMProvider
	Embedder core.EmbeddingProvider
	closers  []io.Closer
}

func NewProviders(ctx context.Context, cfg *config.Config) (*Providers, error) {
	p := &Providers{}

	var openai *OpenAIClient
	openaiClient := func() (*OpenAIClient, error) {
		if openai != nil {
			return openai, nil
		}
		c, err := NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.GenModel, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		openai = c
		p.closers = append(p.closers, c)
		return c, nil
	}

	switch cfg.LLMBackend {
	case "gemini":
		g, err := NewGeminiLLM(ctx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			return nil, fmt.Errorf("gemini llm: %w", err)
		}
		p.LLM = g
		p.closers = append(p.closers, g)
	case "openai":
		c, err := openaiClient()
		if err != nil {
			return nil, err
		}
		p.LLM = c
	default:
		return nil, fmt.Errorf("unsupported LLM_BACKEND %q", cfg.LLMBackend)
	}

	var emb core.EmbeddingProvider
	switch cfg.EmbedBackend {
	case "gemini":
		g, err := NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("gemini embedder: %w", err)
		}
		emb = g
		p.closers = append(p.closers, g)
	case "openai":
		c, err := openaiClient()
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		emb = c
	default:
		_ = p.Close()
		return nil, fmt.Errorf("unsupported EMBED_BACKEND %q", cfg.EmbedBackend)
	}
	p.Embedder = WithRateLimit(emb, cfg.EmbedRPS, cfg.EmbedBurst)

	return p, nil
}

func (p *Providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
