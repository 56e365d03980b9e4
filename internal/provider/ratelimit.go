package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited wraps a provider with a requests-per-minute cap and a minimum
// delay between consecutive calls.
type RateLimited struct {
	Provider

	limiter  *rate.Limiter
	minDelay time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewRateLimited wraps p. A non-positive rpm disables the per-minute cap.
func NewRateLimited(p Provider, rpm int, minDelay time.Duration) *RateLimited {
	limit := rate.Inf
	burst := 1
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
		burst = rpm
	}
	return &RateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(limit, burst),
		minDelay: minDelay,
	}
}

// Chat waits for a slot and forwards the request.
func (r *RateLimited) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := r.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.Provider.Chat(ctx, req)
}

func (r *RateLimited) wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.minDelay > 0 && !r.last.IsZero() {
		if d := r.minDelay - time.Since(r.last); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	r.last = time.Now()
	return nil
}
