package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// RateLimited throttles outbound oracle calls. Callers wait for a token
// rather than being rejected, so a burst of turns queues up behind the limit
// until the caller's context gives up.
type RateLimited struct {
	next    domain.Oracle
	limiter *rate.Limiter
}

func NewRateLimited(next domain.Oracle, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle rate limit: %w", err)
	}
	return r.next.Generate(ctx, prompt, opts)
}
