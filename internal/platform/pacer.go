package platform

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out page requests to stay inside the platform's rate limit.
// This is fixed pacing, not adaptive backoff.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing one request per interval. Burst of one
// means the first request is never delayed.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Wait blocks until the next request is allowed or the context is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
