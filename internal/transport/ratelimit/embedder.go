// Package ratelimit paces embedding requests so the provider's quota is
// consumed smoothly instead of in bursts.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/knowd-io/knowd/internal/domain"
)

// Embedder is a pacing decorator around an inner embedder. Wait blocks
// until the token bucket allows the call or the context is cancelled.
type Embedder struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

// New creates a pacing decorator. rps is the sustained request rate,
// burst the bucket capacity; rps <= 0 disables pacing.
func New(inner domain.Embedder, rps float64, burst int) *Embedder {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Embedder{inner: inner, limiter: limiter}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	return e.inner.Embed(ctx, text)
}
