package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/ragdesk/internal/core"
)

// RateLimitedEmbedder spaces out embedding requests so bulk uploads stay under
// a provider quota. Each call consumes one token, whatever the batch size.
type RateLimitedEmbedder struct {
	inner   core.EmbeddingProvider
	limiter *rate.Limiter
}

// WithRateLimit wraps inner when rps is positive and returns it unchanged otherwise.
func WithRateLimit(inner core.EmbeddingProvider, rps float64, burst int) core.EmbeddingProvider {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedTexts(ctx, texts)
}

var _ core.EmbeddingProvider = (*RateLimitedEmbedder)(nil)
