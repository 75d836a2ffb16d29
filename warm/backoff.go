package warm

import (
	"context"

	"golang.org/x/time/rate"
)

// Backoff paces a delta producer that keeps hitting a full ring segment.
// Wrapping a token bucket keeps retry storms off the consumers without
// the producer inventing its own sleep loop.
type Backoff struct {
	lim *rate.Limiter
}

// NewBackoff allows retriesPerSec retry attempts with the given burst.
func NewBackoff(retriesPerSec float64, burst int) *Backoff {
	if retriesPerSec <= 0 {
		retriesPerSec = 1000
	}
	if burst <= 0 {
		burst = 1
	}
	return &Backoff{lim: rate.NewLimiter(rate.Limit(retriesPerSec), burst)}
}

// Wait blocks until the next retry is allowed or the context ends.
// Nil-receiver safe: no backoff configured means no pacing.
func (b *Backoff) Wait(ctx context.Context) error {
	if b == nil || b.lim == nil {
		return nil
	}
	return b.lim.Wait(ctx)
}
